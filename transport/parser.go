// Package transport assembles uRPC replies from a byte stream and drives
// single-request calls over it.
//
// A reply is read in two phases. The first read is always RepHeaderLen bytes;
// decoding the header tells how many more bytes complete the frame:
//
//	read(RepHeaderLen) ──► Parser.Feed ──► Need() = fixed reply size (+ bufLen)
//	read(Need())       ──► Parser.Feed ──► Done(), Reply()
//
// Parser holds the state machine and never touches the stream; Waiter owns
// the read loop. Conn and Pool wrap both for repeated calls on one link.
package transport

import (
	"fmt"

	"github.com/Dhole/client-urpc-test/codec"
	"github.com/Dhole/client-urpc-test/message"
	"github.com/Dhole/client-urpc-test/protocol"
	"github.com/Dhole/client-urpc-test/session"
)

type parserState int

const (
	awaitingHeader parserState = iota
	awaitingBody
	complete
	failed
)

// Parser is the reply-assembly state machine for one reply with fixed
// payload type R. Bytes may be fed in chunks of any size.
type Parser[R any] struct {
	sess      *session.Session
	codec     codec.Codec
	replySize int

	state   parserState
	acc     []byte // Bytes received for the current phase
	need    int    // Bytes still missing from the current phase
	header  *protocol.ReplyHeader
	withBuf bool
	reply   message.Reply[R]
	err     error
}

// NewParser returns a parser for a reply to the request outstanding in s.
func NewParser[R any](c codec.Codec, s *session.Session) *Parser[R] {
	var r R
	return &Parser[R]{
		sess:      s,
		codec:     c,
		replySize: c.Size(&r),
		acc:       make([]byte, 0, protocol.RepHeaderLen),
		need:      protocol.RepHeaderLen,
	}
}

// Need returns how many bytes complete the current phase. It is 0 once the
// reply is complete or the parser has failed.
func (p *Parser[R]) Need() int {
	return p.need
}

// Done reports whether a reply has been fully decoded.
func (p *Parser[R]) Done() bool {
	return p.state == complete
}

// Feed consumes bytes from b, at most up to the end of the frame, and returns
// how many it used. Bytes past the end of the frame are left to the caller.
func (p *Parser[R]) Feed(b []byte) (int, error) {
	switch p.state {
	case complete:
		return 0, fmt.Errorf("%w: reply already complete", protocol.ErrProtocolMisuse)
	case failed:
		return 0, p.err
	}

	consumed := 0
	for {
		if p.need > 0 {
			if len(b) == 0 {
				return consumed, nil
			}
			n := min(p.need, len(b))
			p.acc = append(p.acc, b[:n]...)
			b = b[n:]
			p.need -= n
			consumed += n
			if p.need > 0 {
				return consumed, nil
			}
		}

		// Phase satisfied; a zero-length body completes without more input
		if err := p.advance(); err != nil {
			p.state = failed
			p.need = 0
			p.err = err
			return consumed, err
		}
		if p.state == complete {
			return consumed, nil
		}
	}
}

func (p *Parser[R]) advance() error {
	switch p.state {
	case awaitingHeader:
		return p.parseHeader()
	case awaitingBody:
		return p.parseBody()
	}
	return nil
}

func (p *Parser[R]) parseHeader() error {
	header, err := protocol.ParseReplyHeader(p.acc)
	if err != nil {
		return err
	}
	withBuf, err := p.sess.Validate(header)
	if err != nil {
		return err
	}

	var bodyLen int
	switch {
	case header.Status != protocol.StatusOK:
		bodyLen = int(header.BufLen)
	case withBuf:
		bodyLen = p.replySize + int(header.BufLen)
	default:
		// The length field means nothing to a kind without a reply buffer
		bodyLen = p.replySize
	}

	p.header = header
	p.withBuf = withBuf
	p.state = awaitingBody
	p.acc = make([]byte, 0, bodyLen)
	p.need = bodyLen
	return nil
}

func (p *Parser[R]) parseBody() error {
	// The whole frame is off the stream now, whatever the outcome
	defer p.sess.Complete()

	if p.header.Status != protocol.StatusOK {
		return &protocol.RemoteError{
			ID:      p.header.ID,
			Status:  p.header.Status,
			Message: string(p.acc),
		}
	}

	var reply message.Reply[R]
	if err := p.codec.Decode(p.acc[:p.replySize], &reply.Payload); err != nil {
		return fmt.Errorf("%w: reply %d: %v", protocol.ErrEncoding, p.header.ID, err)
	}
	if p.withBuf {
		reply.Buf = make([]byte, len(p.acc)-p.replySize)
		copy(reply.Buf, p.acc[p.replySize:])
	}

	p.reply = reply
	p.state = complete
	p.need = 0
	p.acc = nil
	return nil
}

// Reply returns the decoded reply. It fails unless Done reports true.
func (p *Parser[R]) Reply() (message.Reply[R], error) {
	switch p.state {
	case complete:
		return p.reply, nil
	case failed:
		return message.Reply[R]{}, p.err
	}
	return message.Reply[R]{}, fmt.Errorf("%w: reply not complete, %d bytes still needed", protocol.ErrProtocolMisuse, p.need)
}
