package proctor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoiseDetectorContiguousBreach(t *testing.T) {
	det := NewNoiseDetector(60, 3000*time.Millisecond)
	base := time.Now()

	// Loud samples every 500ms. The window completes at +3000ms.
	triggers := 0
	for ms := 0; ms <= 3500; ms += 500 {
		if det.Sample(base.Add(time.Duration(ms)*time.Millisecond), 70) {
			triggers++
		}
	}
	assert.Equal(t, 1, triggers, "a sustained breach fires exactly once")
}

func TestNoiseDetectorResetOnQuietSample(t *testing.T) {
	det := NewNoiseDetector(60, 3000*time.Millisecond)
	base := time.Now()

	assert.False(t, det.Sample(base, 70))
	assert.False(t, det.Sample(base.Add(1*time.Second), 70))
	// Drops below threshold at 2s: window resets.
	assert.False(t, det.Sample(base.Add(2*time.Second), 40))
	// Loud again; 3s after the first start would have fired, but the
	// breach was not contiguous.
	assert.False(t, det.Sample(base.Add(2500*time.Millisecond), 70))
	assert.False(t, det.Sample(base.Add(3*time.Second), 70))
	assert.False(t, det.Sample(base.Add(4*time.Second), 70))
	// Full fresh window from 2.5s completes at 5.5s.
	assert.True(t, det.Sample(base.Add(5500*time.Millisecond), 70))
}

func TestNoiseDetectorThresholdIsExclusive(t *testing.T) {
	det := NewNoiseDetector(60, time.Second)
	base := time.Now()

	// Exactly at the threshold never arms the window.
	assert.False(t, det.Sample(base, 60))
	assert.False(t, det.Sample(base.Add(2*time.Second), 60))
	assert.False(t, det.Sample(base.Add(4*time.Second), 60))
}

func TestNoiseDetectorRearmsAfterTrigger(t *testing.T) {
	det := NewNoiseDetector(60, time.Second)
	base := time.Now()

	assert.False(t, det.Sample(base, 80))
	assert.True(t, det.Sample(base.Add(time.Second), 80))
	// The window restarted on trigger: the very next loud sample only arms it.
	assert.False(t, det.Sample(base.Add(1100*time.Millisecond), 80))
	assert.True(t, det.Sample(base.Add(2200*time.Millisecond), 80))
}
