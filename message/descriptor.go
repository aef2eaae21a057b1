// Package message declares uRPC request kinds and encodes their requests.
//
// A request kind is a Descriptor, declared once at package level and shared
// by every call of that kind:
//
//	var Add = message.NewDescriptor[AddArgs, uint8]("add", 2)
//	var SendBytes = message.NewDescriptor[struct{}, struct{}]("send_bytes", 1,
//		message.WithRequestBuf(), message.WithReplyBuf())
//
// The fixed argument type A and fixed reply type R must be fixed-size
// (see package codec). Each call creates a Request from the descriptor,
// encodes it into a caller-owned send buffer, and then waits for the Reply.
package message

import (
	"fmt"

	"github.com/Dhole/client-urpc-test/codec"
	"github.com/Dhole/client-urpc-test/protocol"
)

// Descriptor describes one request kind. It is immutable once created.
type Descriptor[A, R any] struct {
	name      string
	id        protocol.ID
	reqBuf    bool // Request carries an outbound variable buffer
	repBuf    bool // Reply carries an inbound variable buffer
	codec     codec.Codec
	argSize   int
	replySize int
}

type Option func(*options)

type options struct {
	reqBuf bool
	repBuf bool
	codec  codec.Codec
}

// WithRequestBuf declares that requests of this kind attach an outbound buffer.
func WithRequestBuf() Option {
	return func(o *options) { o.reqBuf = true }
}

// WithReplyBuf declares that replies of this kind carry an inbound buffer.
func WithReplyBuf() Option {
	return func(o *options) { o.repBuf = true }
}

// WithCodec overrides the fixed payload codec (default little-endian).
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// NewDescriptor declares a request kind. It panics if A or R is not a
// fixed-size type or is a struct with unexported fields, since that is a
// mistake in the declaration itself.
func NewDescriptor[A, R any](name string, id protocol.ID, opts ...Option) *Descriptor[A, R] {
	o := options{codec: codec.GetCodec(codec.CodecTypeLittleEndian)}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		arg   A
		reply R
	)
	argSize := o.codec.Size(&arg)
	if argSize < 0 {
		panic(fmt.Sprintf("message: request %q: argument type %T is not a fixed-size type with exported fields", name, arg))
	}
	replySize := o.codec.Size(&reply)
	if replySize < 0 {
		panic(fmt.Sprintf("message: request %q: reply type %T is not a fixed-size type with exported fields", name, reply))
	}
	if argSize > protocol.MaxBufLen {
		panic(fmt.Sprintf("message: request %q: argument of %d bytes does not fit the header", name, argSize))
	}

	return &Descriptor[A, R]{
		name:      name,
		id:        id,
		reqBuf:    o.reqBuf,
		repBuf:    o.repBuf,
		codec:     o.codec,
		argSize:   argSize,
		replySize: replySize,
	}
}

func (d *Descriptor[A, R]) Name() string {
	return d.name
}

func (d *Descriptor[A, R]) ID() protocol.ID {
	return d.id
}

func (d *Descriptor[A, R]) HasRequestBuf() bool {
	return d.reqBuf
}

func (d *Descriptor[A, R]) HasReplyBuf() bool {
	return d.repBuf
}

func (d *Descriptor[A, R]) Codec() codec.Codec {
	return d.codec
}

// ArgSize is the serialized size of the fixed argument.
func (d *Descriptor[A, R]) ArgSize() int {
	return d.argSize
}

// ReplySize is the serialized size of the fixed reply payload.
func (d *Descriptor[A, R]) ReplySize() int {
	return d.replySize
}

// FrameLen returns the size of an encoded request carrying bufLen buffer bytes.
func (d *Descriptor[A, R]) FrameLen(bufLen int) int {
	if !d.reqBuf {
		bufLen = 0
	}
	return protocol.ReqHeaderLen + d.argSize + bufLen
}

func (d *Descriptor[A, R]) String() string {
	return fmt.Sprintf("%s(id=%d)", d.name, d.id)
}
