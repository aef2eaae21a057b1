// Package protocol implements the uRPC binary frame layout.
//
// Frames are read in two phases: a fixed-size header first, then exactly the
// number of bytes the header announces. Request and reply headers differ:
//
//	request:
//	0    1     2        4        6
//	┌────┬─────┬────────┬────────┬───────────┬───────────┐
//	│ id │chan │ argLen │ bufLen │ arg bytes │ buf bytes │
//	│ u8 │ u8  │  u16   │  u16   │  argLen   │  bufLen   │
//	└────┴─────┴────────┴────────┴───────────┴───────────┘
//
//	reply:
//	0    1     2        3        5
//	┌────┬─────┬────────┬────────┬─────────────┬───────────┐
//	│ id │chan │ status │ bufLen │ fixed reply │ buf bytes │
//	│ u8 │ u8  │  u8    │  u16   │ static size │  bufLen   │
//	└────┴─────┴────────┴────────┴─────────────┴───────────┘
//
// The fixed reply size is not on the wire: both sides know it from the
// request kind. A reply with a non-OK status carries bufLen bytes of error
// text instead of a fixed payload.
package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	ReqHeaderLen int = 6 // 1 (id) + 1 (chan) + 2 (argLen) + 2 (bufLen)
	RepHeaderLen int = 5 // 1 (id) + 1 (chan) + 1 (status) + 2 (bufLen)

	// MaxBufLen is the largest variable buffer a u16 length field can announce.
	MaxBufLen int = 0xFFFF
)

// ID identifies a request kind. Chosen by the protocol designer, unique per kind.
type ID uint8

// Status tells a normal reply apart from a device-side failure.
type Status byte

const (
	StatusOK             Status = 0 // Fixed payload (and buffer, if declared) follows
	StatusError          Status = 1 // Handler failed; body is error text
	StatusUnknownRequest Status = 2 // Device has no handler for the id; body is error text
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusUnknownRequest:
		return "unknown request"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// RequestHeader is the fixed header in front of every request frame.
type RequestHeader struct {
	ID     ID
	Chan   uint8  // Session counter, echoed back in the reply
	ArgLen uint16 // Serialized fixed argument size
	BufLen uint16 // Outbound variable buffer length, 0 if none
}

// BodyLen is the number of bytes following the header.
func (h *RequestHeader) BodyLen() int {
	return int(h.ArgLen) + int(h.BufLen)
}

// ReplyHeader is the fixed header in front of every reply frame.
type ReplyHeader struct {
	ID     ID
	Chan   uint8
	Status Status
	BufLen uint16 // Inbound buffer length, or error text length when Status != StatusOK
}

// PutRequestHeader writes h into the first ReqHeaderLen bytes of buf.
// It panics if buf is shorter than ReqHeaderLen.
func PutRequestHeader(buf []byte, h *RequestHeader) {
	_ = buf[ReqHeaderLen-1]
	buf[0] = byte(h.ID)
	buf[1] = h.Chan
	binary.BigEndian.PutUint16(buf[2:4], h.ArgLen)
	binary.BigEndian.PutUint16(buf[4:6], h.BufLen)
}

// ParseRequestHeader decodes the leading ReqHeaderLen bytes of buf.
func ParseRequestHeader(buf []byte) (*RequestHeader, error) {
	if len(buf) < ReqHeaderLen {
		return nil, fmt.Errorf("short request header: %d bytes, want %d", len(buf), ReqHeaderLen)
	}
	return &RequestHeader{
		ID:     ID(buf[0]),
		Chan:   buf[1],
		ArgLen: binary.BigEndian.Uint16(buf[2:4]),
		BufLen: binary.BigEndian.Uint16(buf[4:6]),
	}, nil
}

// PutReplyHeader writes h into the first RepHeaderLen bytes of buf.
// It panics if buf is shorter than RepHeaderLen.
func PutReplyHeader(buf []byte, h *ReplyHeader) {
	_ = buf[RepHeaderLen-1]
	buf[0] = byte(h.ID)
	buf[1] = h.Chan
	buf[2] = byte(h.Status)
	binary.BigEndian.PutUint16(buf[3:5], h.BufLen)
}

// ParseReplyHeader decodes the leading RepHeaderLen bytes of buf.
// An unknown status byte means the stream is not where we think it is,
// so it is reported as ErrUnexpectedReply.
func ParseReplyHeader(buf []byte) (*ReplyHeader, error) {
	if len(buf) < RepHeaderLen {
		return nil, fmt.Errorf("short reply header: %d bytes, want %d", len(buf), RepHeaderLen)
	}
	status := Status(buf[2])
	if status != StatusOK && status != StatusError && status != StatusUnknownRequest {
		return nil, fmt.Errorf("%w: unsupported status %d", ErrUnexpectedReply, buf[2])
	}
	return &ReplyHeader{
		ID:     ID(buf[0]),
		Chan:   buf[1],
		Status: status,
		BufLen: binary.BigEndian.Uint16(buf[3:5]),
	}, nil
}
