package audio

import (
	"sync"
)

// FakeContext is a test double for Context. When Err is set, NewCapture
// fails with it, simulating a denied or missing device.
type FakeContext struct {
	Err     error
	Capture *FakeCapture
}

func NewFakeContext() *FakeContext {
	return &FakeContext{Capture: &FakeCapture{}}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Capture == nil {
		f.Capture = &FakeCapture{}
	}
	return f.Capture, nil
}

// FakeCapture lets tests push scripted PCM frames through the callback.
type FakeCapture struct {
	mu      sync.Mutex
	cb      DataCallback
	started bool
	closed  bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Feed invokes the registered callback with the given frames, as the real
// device would from its capture thread. No-op unless started.
func (f *FakeCapture) Feed(data []byte, frameCount uint32) {
	f.mu.Lock()
	cb := f.cb
	started := f.started
	f.mu.Unlock()
	if started && cb != nil {
		cb(data, frameCount)
	}
}

// Started reports whether the device is currently capturing.
func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Closed reports whether the device has been released.
func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
