package transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Dhole/client-urpc-test/codec"
	"github.com/Dhole/client-urpc-test/protocol"
	"github.com/Dhole/client-urpc-test/session"
)

// replyFrame builds a raw reply frame.
func replyFrame(id protocol.ID, chanID uint8, status protocol.Status, bufLen int, body ...byte) []byte {
	frame := make([]byte, protocol.RepHeaderLen)
	protocol.PutReplyHeader(frame, &protocol.ReplyHeader{
		ID:     id,
		Chan:   chanID,
		Status: status,
		BufLen: uint16(bufLen),
	})
	return append(frame, body...)
}

func begin(t *testing.T, id protocol.ID, expectsBuf bool) (*session.Session, uint8) {
	t.Helper()
	s := session.New()
	chanID, err := s.Begin(id, expectsBuf)
	if err != nil {
		t.Fatal(err)
	}
	return s, chanID
}

func TestParserTwoPhase(t *testing.T) {
	s, chanID := begin(t, 2, false)
	p := NewParser[uint8](codec.LittleEndian, s)

	if p.Need() != protocol.RepHeaderLen {
		t.Fatalf("expect first read of %d bytes, got %d", protocol.RepHeaderLen, p.Need())
	}

	frame := replyFrame(2, chanID, protocol.StatusOK, 0, 7)
	if _, err := p.Feed(frame[:protocol.RepHeaderLen]); err != nil {
		t.Fatalf("Feed header failed: %v", err)
	}
	if p.Need() != 1 {
		t.Fatalf("expect body read of 1 byte, got %d", p.Need())
	}
	if p.Done() {
		t.Fatal("parser must not be done after the header")
	}

	if _, err := p.Feed(frame[protocol.RepHeaderLen:]); err != nil {
		t.Fatalf("Feed body failed: %v", err)
	}
	if !p.Done() || p.Need() != 0 {
		t.Fatalf("expect completion, done=%v need=%d", p.Done(), p.Need())
	}

	reply, err := p.Reply()
	if err != nil {
		t.Fatal(err)
	}
	if reply.Payload != 7 || reply.Buf != nil {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if _, ok := s.Outstanding(); ok {
		t.Fatal("session must be cleared once the reply is complete")
	}
}

func TestParserIDMismatch(t *testing.T) {
	s, chanID := begin(t, 2, false)
	p := NewParser[uint8](codec.LittleEndian, s)

	_, err := p.Feed(replyFrame(0, chanID, protocol.StatusOK, 0, 7))
	if !errors.Is(err, protocol.ErrUnexpectedReply) {
		t.Fatalf("expect ErrUnexpectedReply, got %v", err)
	}
	if p.Done() {
		t.Fatal("a mismatched reply must never complete")
	}
	if _, err := p.Reply(); !errors.Is(err, protocol.ErrUnexpectedReply) {
		t.Fatalf("Reply after mismatch: expect ErrUnexpectedReply, got %v", err)
	}
	// 失败后继续喂数据也不能产生回复
	if _, err := p.Feed([]byte{7}); err == nil {
		t.Fatal("expect failed parser to reject more input")
	}
}

func TestParserChanMismatch(t *testing.T) {
	s, chanID := begin(t, 2, false)
	p := NewParser[uint8](codec.LittleEndian, s)

	_, err := p.Feed(replyFrame(2, chanID+1, protocol.StatusOK, 0, 7))
	if !errors.Is(err, protocol.ErrUnexpectedReply) {
		t.Fatalf("expect ErrUnexpectedReply, got %v", err)
	}
}

func TestParserIgnoresLengthWithoutReplyBuf(t *testing.T) {
	s, chanID := begin(t, 2, false)
	p := NewParser[uint8](codec.LittleEndian, s)

	// Header announces 3 buffer bytes and they follow, but the kind declares none
	frame := replyFrame(2, chanID, protocol.StatusOK, 3, 7, 'a', 'b', 'c')
	n, err := p.Feed(frame)
	if err != nil {
		t.Fatal(err)
	}
	if n != protocol.RepHeaderLen+1 {
		t.Fatalf("expect parser to stop after the fixed payload, consumed %d", n)
	}

	reply, err := p.Reply()
	if err != nil {
		t.Fatal(err)
	}
	if reply.Buf != nil {
		t.Fatalf("expect no buffer, got %q", reply.Buf)
	}
	if reply.Payload != 7 {
		t.Fatalf("expect payload 7, got %d", reply.Payload)
	}
}

func TestParserReplyBufLength(t *testing.T) {
	for _, bufLen := range []int{0, 1, 5, 300} {
		s, chanID := begin(t, 1, true)
		p := NewParser[uint8](codec.LittleEndian, s)

		buf := bytes.Repeat([]byte{0xaa}, bufLen)
		frame := replyFrame(1, chanID, protocol.StatusOK, bufLen, append([]byte{9}, buf...)...)
		if _, err := p.Feed(frame); err != nil {
			t.Fatalf("bufLen %d: %v", bufLen, err)
		}

		reply, err := p.Reply()
		if err != nil {
			t.Fatalf("bufLen %d: %v", bufLen, err)
		}
		if reply.Buf == nil {
			t.Fatalf("bufLen %d: expect non-nil buffer", bufLen)
		}
		if len(reply.Buf) != bufLen || !bytes.Equal(reply.Buf, buf) {
			t.Fatalf("bufLen %d: decoded buffer of %d bytes", bufLen, len(reply.Buf))
		}
	}
}

func TestParserFragmentation(t *testing.T) {
	frame := replyFrame(1, 0, protocol.StatusOK, 5, append([]byte{1, 2, 3, 4}, "hello"...)...)

	parse := func(chunk int) ([4]byte, []byte) {
		s, _ := begin(t, 1, true)
		p := NewParser[[4]byte](codec.LittleEndian, s)
		rest := frame
		for len(rest) > 0 {
			n := min(chunk, len(rest))
			consumed, err := p.Feed(rest[:n])
			if err != nil {
				t.Fatalf("chunk %d: %v", chunk, err)
			}
			if consumed != n {
				t.Fatalf("chunk %d: consumed %d of %d", chunk, consumed, n)
			}
			rest = rest[n:]
		}
		reply, err := p.Reply()
		if err != nil {
			t.Fatalf("chunk %d: %v", chunk, err)
		}
		return reply.Payload, reply.Buf
	}

	wantPayload, wantBuf := parse(len(frame))
	for chunk := 1; chunk < len(frame); chunk++ {
		payload, buf := parse(chunk)
		if payload != wantPayload || !bytes.Equal(buf, wantBuf) {
			t.Fatalf("chunk %d: got %v %q, want %v %q", chunk, payload, buf, wantPayload, wantBuf)
		}
	}
}

func TestParserEmptyBody(t *testing.T) {
	s, chanID := begin(t, 3, false)
	p := NewParser[struct{}](codec.LittleEndian, s)

	if _, err := p.Feed(replyFrame(3, chanID, protocol.StatusOK, 0)); err != nil {
		t.Fatal(err)
	}
	if !p.Done() {
		t.Fatal("expect a header-only reply to complete without further reads")
	}
}

func TestParserRemoteError(t *testing.T) {
	s, chanID := begin(t, 2, false)
	p := NewParser[uint8](codec.LittleEndian, s)

	_, err := p.Feed(replyFrame(2, chanID, protocol.StatusError, 8, []byte("overflow")...))

	var remote *protocol.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expect *RemoteError, got %v", err)
	}
	if remote.Message != "overflow" || remote.Status != protocol.StatusError {
		t.Fatalf("unexpected remote error: %+v", remote)
	}
	if _, ok := s.Outstanding(); ok {
		t.Fatal("a consumed error reply must clear the session")
	}
}

func TestParserReplyBeforeComplete(t *testing.T) {
	s, _ := begin(t, 2, false)
	p := NewParser[uint8](codec.LittleEndian, s)

	if _, err := p.Reply(); !errors.Is(err, protocol.ErrProtocolMisuse) {
		t.Fatalf("expect ErrProtocolMisuse, got %v", err)
	}
}
