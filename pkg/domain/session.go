package domain

import "time"

// Status is the outcome of a run.
type Status string

const (
	StatusSuspended     Status = "suspended"
	StatusDone          Status = "done"
	StatusDoneWithError Status = "done_with_error"
)

// Finished reports whether no further input will be accepted.
func (s Status) Finished() bool {
	return s == StatusDone || s == StatusDoneWithError
}

// SessionRecord is what a SessionStore keeps between calls.
// It is replaced, never merged, on every resume.
type SessionRecord struct {
	SessionID string `json:"session_id"`
	Flow      string `json:"flow"`
	State     *State `json:"state"`
	Status    Status `json:"status"`

	// Awaiting is the input name the session is suspended on.
	Awaiting string `json:"awaiting,omitempty"`
	// SuspendedAt is the node the next run resumes from.
	SuspendedAt string `json:"suspended_at,omitempty"`
	// Prompt is the question shown for the awaited input.
	Prompt string `json:"prompt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.State = r.State.Clone()
	return &out
}
