package transport

import (
	"fmt"
	"io"

	"github.com/Dhole/client-urpc-test/message"
	"github.com/Dhole/client-urpc-test/protocol"
	"github.com/Dhole/client-urpc-test/session"
)

// Waiter blocks on a stream until the reply to one encoded request is complete.
type Waiter[R any] struct {
	id     protocol.ID
	sess   *session.Session
	parser *Parser[R]
}

// NewWaiter prepares to receive the reply to req, which must already be
// encoded (and so outstanding) in s.
func NewWaiter[A, R any](req *message.Request[A, R], s *session.Session) *Waiter[R] {
	d := req.Descriptor()
	return &Waiter[R]{
		id:     d.ID(),
		sess:   s,
		parser: NewParser[R](d.Codec(), s),
	}
}

// BlockRcvReply reads the reply from r into a bufLen-byte receive buffer.
//
// Each read asks r for exactly the bytes the parser needs next, so nothing
// past the end of the reply is consumed. Short reads, EOF and timeouts are
// returned as ErrTransport without retrying: how long to wait is the stream's
// business (e.g. the serial port read timeout).
func (w *Waiter[R]) BlockRcvReply(r io.Reader, bufLen int) (message.Reply[R], error) {
	var zero message.Reply[R]
	if id, ok := w.sess.Outstanding(); !ok || id != w.id {
		return zero, fmt.Errorf("%w: waiting for reply to request %d, which is not outstanding", protocol.ErrProtocolMisuse, w.id)
	}

	recvBuf := make([]byte, bufLen)
	pos := 0
	for !w.parser.Done() {
		readLen := w.parser.Need()
		if pos+readLen > len(recvBuf) {
			return zero, fmt.Errorf("%w: reply needs %d bytes, receive buffer holds %d", protocol.ErrEncoding, pos+readLen, len(recvBuf))
		}

		buf := recvBuf[pos : pos+readLen]
		if _, err := io.ReadFull(r, buf); err != nil {
			return zero, protocol.TransportError("read reply", err)
		}
		pos += readLen

		if _, err := w.parser.Feed(buf); err != nil {
			return zero, err
		}
	}
	return w.parser.Reply()
}
