package main

import (
	"github.com/Dhole/client-urpc-test/codec"
	"github.com/Dhole/client-urpc-test/message"
)

type AddArgs struct {
	A, B uint8
}

// requests are the kinds the test firmware answers.
type requests struct {
	Ping      *message.Descriptor[[4]byte, [4]byte]
	SendBytes *message.Descriptor[struct{}, struct{}]
	Add       *message.Descriptor[AddArgs, uint8]
}

func newRequests(c codec.Codec) *requests {
	return &requests{
		Ping:      message.NewDescriptor[[4]byte, [4]byte]("ping", 0, message.WithCodec(c)),
		SendBytes: message.NewDescriptor[struct{}, struct{}]("send_bytes", 1, message.WithCodec(c), message.WithRequestBuf(), message.WithReplyBuf()),
		Add:       message.NewDescriptor[AddArgs, uint8]("add", 2, message.WithCodec(c)),
	}
}
