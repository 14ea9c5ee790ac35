package proctor

import (
	"time"
)

// NoiseDetector decides when sustained microphone noise becomes a violation.
// It is fed average-amplitude samples on a 0–255 scale. A trigger fires when
// the average stays strictly above Threshold for at least Window without
// interruption; any sample at or below the threshold resets the window.
// There is no partial credit: the breach must be contiguous, not cumulative.
//
// Not safe for concurrent use; the media monitor feeds it from a single
// capture callback.
type NoiseDetector struct {
	Threshold float64
	Window    time.Duration

	triggerStart time.Time // zero while idle
}

// NewNoiseDetector creates a detector with the given policy values.
func NewNoiseDetector(threshold float64, window time.Duration) *NoiseDetector {
	return &NoiseDetector{Threshold: threshold, Window: window}
}

// Sample reports whether this sample completes a contiguous breach of the
// window. After a trigger the window resets, so a continuing breach must run
// a fresh full window before firing again.
func (d *NoiseDetector) Sample(t time.Time, avg float64) bool {
	if avg <= d.Threshold {
		d.triggerStart = time.Time{}
		return false
	}
	if d.triggerStart.IsZero() {
		d.triggerStart = t
		return false
	}
	if t.Sub(d.triggerStart) >= d.Window {
		d.triggerStart = time.Time{}
		return true
	}
	return false
}
