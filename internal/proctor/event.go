package proctor

import (
	"github.com/quizvigil/proctor-agent/internal/backend"
)

// EventKind identifies a session event pushed to the student's client.
type EventKind string

const (
	// EventWarning is a dismissible violation banner with the remaining
	// warning count.
	EventWarning EventKind = "warning"
	// EventFinalWarning is the last banner before a forced failure.
	EventFinalWarning EventKind = "final_warning"
	// EventUrgent marks the countdown display urgent (one minute left).
	EventUrgent EventKind = "urgent"
	// EventTerminated is the blocking termination notice shown before the
	// delayed forced submit fires.
	EventTerminated EventKind = "terminated"
	// EventResult carries the terminal attempt outcome.
	EventResult EventKind = "result"
)

// Event is a session notification for the client UI.
type Event struct {
	Kind             EventKind             `json:"kind"`
	Message          string                `json:"message,omitempty"`
	WarningsLeft     int                   `json:"warnings_left,omitempty"`
	RemainingSeconds int                   `json:"remaining_seconds,omitempty"`
	Result           *backend.SubmitResult `json:"result,omitempty"`
}
