package transport

import (
	"context"
	"io"
	"time"

	"github.com/Dhole/client-urpc-test/message"
	"github.com/Dhole/client-urpc-test/protocol"
	"github.com/Dhole/client-urpc-test/session"
)

const (
	DefaultSendBufLen = 32
	DefaultRecvBufLen = 32
)

// Conn is one uRPC link: a byte stream, its session, and a send buffer
// reused across calls. Calls on a Conn must not overlap.
type Conn struct {
	rw      io.ReadWriter
	sess    *session.Session
	sendBuf []byte
	recvLen int
}

// NewConn wraps rw. Non-positive lengths select the defaults.
func NewConn(rw io.ReadWriter, sendLen, recvLen int) *Conn {
	if sendLen <= 0 {
		sendLen = DefaultSendBufLen
	}
	if recvLen <= 0 {
		recvLen = DefaultRecvBufLen
	}
	return &Conn{
		rw:      rw,
		sess:    session.New(),
		sendBuf: make([]byte, sendLen),
		recvLen: recvLen,
	}
}

func (c *Conn) Session() *session.Session {
	return c.sess
}

// Close closes the underlying stream if it can be closed.
func (c *Conn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Do sends req and blocks until its reply is decoded.
//
// The stream is the only thing that can interrupt a blocked read. If it
// supports deadlines (net.Conn does), the context deadline is applied to it
// and cancelling the context expires it immediately.
func Do[A, R any](ctx context.Context, c *Conn, req *message.Request[A, R]) (message.Reply[R], error) {
	var zero message.Reply[R]
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if d, ok := c.rw.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			if err := d.SetDeadline(deadline); err != nil {
				return zero, protocol.TransportError("set deadline", err)
			}
		}
		// Errors here surface as the read or write failing
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetDeadline(time.Now())
		})
		defer func() {
			stop()
			_ = d.SetDeadline(time.Time{})
		}()
	}

	n, err := req.Encode(c.sess, c.sendBuf)
	if err != nil {
		return zero, err
	}
	if _, err := c.rw.Write(c.sendBuf[:n]); err != nil {
		return zero, protocol.TransportError("write request", err)
	}

	return NewWaiter(req, c.sess).BlockRcvReply(c.rw, c.recvLen)
}
