package proctor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/quizvigil/proctor-agent/internal/audio"
	"github.com/rs/zerolog"
)

// Capture format for proctoring audio. Mono 16 kHz is plenty for an
// amplitude heuristic.
const (
	captureSampleRate = 16000
	captureChannels   = 1
)

// MediaMonitor owns the microphone stream for a session. Each PCM frame
// batch is reduced to an average amplitude on the 0–255 scale and fed to the
// noise detector; a completed breach is published as a noise violation.
type MediaMonitor struct {
	actx audio.Context
	det  *NoiseDetector
	emit func(Violation)
	log  zerolog.Logger

	mu      sync.Mutex
	dev     audio.CaptureDevice
	stopped bool
}

// NewMediaMonitor creates a monitor. emit receives noise violations from the
// capture callback goroutine.
func NewMediaMonitor(actx audio.Context, threshold float64, window time.Duration, emit func(Violation), log zerolog.Logger) *MediaMonitor {
	return &MediaMonitor{
		actx: actx,
		det:  NewNoiseDetector(threshold, window),
		emit: emit,
		log:  log.With().Str("component", "media_monitor").Logger(),
	}
}

// Start opens the capture device and begins sampling. Failure means the
// device is missing or access was denied; it is surfaced to the caller and
// never retried.
func (m *MediaMonitor) Start() error {
	if m.actx == nil {
		return fmt.Errorf("no audio backend available")
	}

	dev, err := m.actx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: captureSampleRate,
		Channels:   captureChannels,
	})
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}

	dev.SetCallback(m.onData)
	if err := dev.Start(); err != nil {
		dev.Close()
		return fmt.Errorf("start capture: %w", err)
	}

	m.mu.Lock()
	m.dev = dev
	m.mu.Unlock()

	m.log.Debug().Msg("Microphone capture started")
	return nil
}

// Stop releases the capture device. Idempotent.
func (m *MediaMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.dev == nil {
		m.stopped = true
		return
	}
	m.stopped = true
	m.dev.ClearCallback()
	m.dev.Stop()
	m.dev.Close()
	m.log.Debug().Msg("Microphone capture stopped")
}

func (m *MediaMonitor) onData(data []byte, _ uint32) {
	avg := averageAmplitude(data)
	if m.det.Sample(time.Now(), avg) {
		m.log.Info().Float64("avg", avg).Msg("Sustained noise threshold breached")
		m.emit(NewViolation(ViolationNoise))
	}
}

// averageAmplitude reduces a 16-bit little-endian mono PCM buffer to its
// mean absolute amplitude, scaled to the 0–255 range.
func averageAmplitude(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i : i+2]))
		v := float64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum / float64(n) / 128.0
}
