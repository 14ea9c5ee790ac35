package proctor

import (
	"time"
)

// ViolationType identifies the kind of proctoring violation.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	ViolationNoise          ViolationType = "noise"
	ViolationUnload         ViolationType = "unload"
)

// Violation is a single proctoring violation event. Violations are
// ephemeral: produced by a watcher or the media monitor, consumed once by
// the session's aggregator, and journaled for audit.
type Violation struct {
	Type    ViolationType `json:"type"`
	Message string        `json:"message"`
	At      time.Time     `json:"at"`
}

// NewViolation builds a violation with the default display message for its type.
func NewViolation(t ViolationType) Violation {
	return Violation{Type: t, Message: t.DisplayMessage(), At: time.Now()}
}

// DisplayMessage returns the banner text shown to the student for this type.
func (t ViolationType) DisplayMessage() string {
	switch t {
	case ViolationTabSwitch:
		return "Tab switch detected."
	case ViolationFullscreenExit:
		return "You left fullscreen mode."
	case ViolationNoise:
		return "Sustained background noise detected."
	case ViolationUnload:
		return "Page close attempt detected."
	default:
		return "Suspicious activity detected."
	}
}
