// Package session holds per-user conversational state and the stores that
// keep it. A session tracks where a user is inside an active flow; it is
// created lazily, mutated only by the flow engine under the dispatcher's
// per-user lock, and cleared (not deleted) when a flow ends.
package session

import (
	"maps"
	"time"
)

// Session is the mutable conversational state for one user.
type Session struct {
	UserID      string            `json:"user_id"`
	ActiveFlow  string            `json:"active_flow,omitempty"`
	CurrentStep string            `json:"current_step,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Scratch     map[string]string `json:"scratch,omitempty"`
	History     []string          `json:"history,omitempty"`
	// Operator is the identity allowed to drive the bot in a shared group
	// chat. It survives flow resets; only Deactivate removes it.
	Operator  string    `json:"operator,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty idle session for the given user.
func New(userID string) *Session {
	return &Session{
		UserID:  userID,
		Fields:  make(map[string]string),
		Scratch: make(map[string]string),
	}
}

// Idle reports whether no flow is in progress.
func (s *Session) Idle() bool {
	return s.ActiveFlow == ""
}

// Reset clears the flow position and all collected values, returning the
// session to idle. The group operator assignment is kept.
func (s *Session) Reset() {
	s.ActiveFlow = ""
	s.CurrentStep = ""
	s.Fields = make(map[string]string)
	s.Scratch = make(map[string]string)
	s.History = nil
}

// PushHistory records the current step before a forward transition.
func (s *Session) PushHistory(stepID string) {
	s.History = append(s.History, stepID)
}

// PopHistory removes and returns the most recently visited step.
func (s *Session) PopHistory() (string, bool) {
	if len(s.History) == 0 {
		return "", false
	}
	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	return last, true
}

// Clone returns a deep copy. Stores hand out copies so callers cannot
// mutate shared state behind the store's back.
func (s *Session) Clone() *Session {
	c := *s
	c.Fields = maps.Clone(s.Fields)
	c.Scratch = maps.Clone(s.Scratch)
	c.History = append([]string(nil), s.History...)
	if c.Fields == nil {
		c.Fields = make(map[string]string)
	}
	if c.Scratch == nil {
		c.Scratch = make(map[string]string)
	}
	return &c
}
