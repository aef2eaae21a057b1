// Package session tracks the single outstanding request of a uRPC connection.
//
// uRPC has no request pipelining: a request must be fully answered before the
// next one is issued. Session enforces that discipline and checks every reply
// header against the request it is supposed to answer. A Session is owned by
// the goroutine driving the connection and is not safe for concurrent use.
package session

import (
	"fmt"

	"github.com/Dhole/client-urpc-test/protocol"
)

type outstanding struct {
	id         protocol.ID
	chanID     uint8
	expectsBuf bool // Reply declares an inbound variable buffer
}

// Session holds at most one outstanding request.
type Session struct {
	pending  *outstanding
	nextChan uint8
}

func New() *Session {
	return &Session{}
}

// Begin records a new outstanding request and returns the channel id to put
// in its header.
func (s *Session) Begin(id protocol.ID, expectsBuf bool) (uint8, error) {
	if s.pending != nil {
		return 0, fmt.Errorf("%w: request %d issued while request %d is outstanding",
			protocol.ErrProtocolMisuse, id, s.pending.id)
	}
	chanID := s.nextChan
	s.nextChan++
	s.pending = &outstanding{id: id, chanID: chanID, expectsBuf: expectsBuf}
	return chanID, nil
}

// Validate checks that h answers the outstanding request and reports whether
// that request expects an inbound buffer.
func (s *Session) Validate(h *protocol.ReplyHeader) (bool, error) {
	if s.pending == nil {
		return false, fmt.Errorf("%w: reply %d received with no request outstanding",
			protocol.ErrUnexpectedReply, h.ID)
	}
	if h.ID != s.pending.id {
		return false, fmt.Errorf("%w: reply id %d, outstanding request id %d",
			protocol.ErrUnexpectedReply, h.ID, s.pending.id)
	}
	if h.Chan != s.pending.chanID {
		return false, fmt.Errorf("%w: reply chan %d, outstanding request chan %d",
			protocol.ErrUnexpectedReply, h.Chan, s.pending.chanID)
	}
	return s.pending.expectsBuf, nil
}

// Complete clears the outstanding slot once its reply has been consumed.
func (s *Session) Complete() {
	s.pending = nil
}

// Reset drops the outstanding request without a reply. Only call it after the
// transport has been resynchronized, otherwise the next reply read will be the
// stale one.
func (s *Session) Reset() {
	s.pending = nil
}

// Outstanding returns the id of the outstanding request, if any.
func (s *Session) Outstanding() (protocol.ID, bool) {
	if s.pending == nil {
		return 0, false
	}
	return s.pending.id, true
}
