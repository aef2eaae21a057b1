package devicetest

import (
	"fmt"

	"github.com/Dhole/client-urpc-test/message"
	"github.com/Dhole/client-urpc-test/protocol"
)

// HandlerFunc handles one raw request. It returns the fixed reply bytes and
// the reply buffer; a non-nil replyBuf is sent even when empty. A non-nil
// error becomes a StatusError reply carrying the error text.
type HandlerFunc func(arg, buf []byte) (reply, replyBuf []byte, err error)

type handler struct {
	name   string
	argLen int // Fixed argument size the device expects
	fn     HandlerFunc
}

// HandleRaw registers fn for request id. argLen is the fixed argument size;
// requests announcing another size are answered with StatusError.
func (dev *Device) HandleRaw(id protocol.ID, name string, argLen int, fn HandlerFunc) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.handlers[id] = &handler{name: name, argLen: argLen, fn: fn}
}

// Handle registers a typed handler for the request kind d. The handler's
// returned buffer is attached only if d declares a reply buffer.
func Handle[A, R any](dev *Device, d *message.Descriptor[A, R], fn func(arg A, buf []byte) (R, []byte, error)) {
	c := d.Codec()
	dev.HandleRaw(d.ID(), d.Name(), d.ArgSize(), func(argBytes, buf []byte) ([]byte, []byte, error) {
		var arg A
		if err := c.Decode(argBytes, &arg); err != nil {
			return nil, nil, fmt.Errorf("decode %s argument: %w", d.Name(), err)
		}

		reply, replyBuf, err := fn(arg, buf)
		if err != nil {
			return nil, nil, err
		}

		out := make([]byte, d.ReplySize())
		if _, err := c.Encode(out, &reply); err != nil {
			return nil, nil, fmt.Errorf("encode %s reply: %w", d.Name(), err)
		}
		if !d.HasReplyBuf() {
			return out, nil, nil
		}
		if replyBuf == nil {
			replyBuf = []byte{}
		}
		return out, replyBuf, nil
	})
}

// dispatch runs the handler for one request and builds the reply frame.
func (dev *Device) dispatch(h *protocol.RequestHeader, body []byte) []byte {
	dev.mu.Lock()
	hd, ok := dev.handlers[h.ID]
	dev.mu.Unlock()

	if !ok {
		return errorFrame(h, protocol.StatusUnknownRequest, fmt.Sprintf("no handler for request %d", h.ID))
	}
	if int(h.ArgLen) != hd.argLen {
		return errorFrame(h, protocol.StatusError, fmt.Sprintf("%s: argument is %d bytes, want %d", hd.name, h.ArgLen, hd.argLen))
	}

	reply, replyBuf, err := hd.fn(body[:h.ArgLen], body[h.ArgLen:])
	if err != nil {
		return errorFrame(h, protocol.StatusError, err.Error())
	}
	return replyFrame(h, reply, replyBuf)
}

func replyFrame(h *protocol.RequestHeader, reply, replyBuf []byte) []byte {
	frame := make([]byte, protocol.RepHeaderLen, protocol.RepHeaderLen+len(reply)+len(replyBuf))
	protocol.PutReplyHeader(frame, &protocol.ReplyHeader{
		ID:     h.ID,
		Chan:   h.Chan,
		Status: protocol.StatusOK,
		BufLen: uint16(len(replyBuf)),
	})
	frame = append(frame, reply...)
	return append(frame, replyBuf...)
}

func errorFrame(h *protocol.RequestHeader, status protocol.Status, msg string) []byte {
	frame := make([]byte, protocol.RepHeaderLen, protocol.RepHeaderLen+len(msg))
	protocol.PutReplyHeader(frame, &protocol.ReplyHeader{
		ID:     h.ID,
		Chan:   h.Chan,
		Status: status,
		BufLen: uint16(len(msg)),
	})
	return append(frame, msg...)
}
