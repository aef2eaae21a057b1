package message

import (
	"fmt"

	"github.com/Dhole/client-urpc-test/protocol"
	"github.com/Dhole/client-urpc-test/session"
)

// Request is one live invocation of a request kind. It is consumed by Encode
// and cannot be sent twice.
type Request[A, R any] struct {
	desc    *Descriptor[A, R]
	arg     A
	buf     []byte
	withBuf bool
	encoded bool
}

// New creates a request carrying only the fixed argument.
func (d *Descriptor[A, R]) New(arg A) *Request[A, R] {
	return &Request[A, R]{desc: d, arg: arg}
}

// NewWithBuf creates a request that attaches buf as the outbound buffer.
// The kind must be declared WithRequestBuf.
func (d *Descriptor[A, R]) NewWithBuf(arg A, buf []byte) *Request[A, R] {
	return &Request[A, R]{desc: d, arg: arg, buf: buf, withBuf: true}
}

func (r *Request[A, R]) Descriptor() *Descriptor[A, R] {
	return r.desc
}

// Arg returns the fixed argument value.
func (r *Request[A, R]) Arg() A {
	return r.arg
}

// Buf returns the outbound buffer, nil if none.
func (r *Request[A, R]) Buf() []byte {
	return r.buf
}

// Encode serializes the complete request frame into dst and returns the
// number of bytes written. On success the request becomes the outstanding
// request of s. Nothing is recorded in s when Encode fails.
func (r *Request[A, R]) Encode(s *session.Session, dst []byte) (int, error) {
	d := r.desc
	if r.encoded {
		return 0, fmt.Errorf("%w: request %s already encoded", protocol.ErrProtocolMisuse, d)
	}
	if r.withBuf && !d.reqBuf {
		return 0, fmt.Errorf("%w: request %s takes no outbound buffer", protocol.ErrProtocolMisuse, d)
	}
	if len(r.buf) > protocol.MaxBufLen {
		return 0, fmt.Errorf("%w: outbound buffer of %d bytes exceeds %d", protocol.ErrEncoding, len(r.buf), protocol.MaxBufLen)
	}

	total := d.FrameLen(len(r.buf))
	if len(dst) < total {
		return 0, fmt.Errorf("%w: send buffer of %d bytes, frame needs %d", protocol.ErrEncoding, len(dst), total)
	}
	if id, ok := s.Outstanding(); ok {
		return 0, fmt.Errorf("%w: request %s issued while request %d is outstanding", protocol.ErrProtocolMisuse, d, id)
	}

	// Payload first: the session is only touched once nothing else can fail
	offset := protocol.ReqHeaderLen
	n, err := d.codec.Encode(dst[offset:offset+d.argSize], &r.arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", protocol.ErrEncoding, d, err)
	}
	offset += n
	offset += copy(dst[offset:], r.buf)

	chanID, err := s.Begin(d.id, d.repBuf)
	if err != nil {
		return 0, err
	}
	protocol.PutRequestHeader(dst, &protocol.RequestHeader{
		ID:     d.id,
		Chan:   chanID,
		ArgLen: uint16(d.argSize),
		BufLen: uint16(len(r.buf)),
	})

	r.encoded = true
	return offset, nil
}
