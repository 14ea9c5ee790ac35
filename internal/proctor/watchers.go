package proctor

// Signal is a raw environment signal relayed by the browser over the
// session stream. The browser does no interpretation; all violation policy
// lives here.
type Signal string

const (
	SignalVisibilityHidden Signal = "visibility_hidden"
	SignalFullscreenExit   Signal = "fullscreen_exit"
	SignalUnload           Signal = "unload"
)

// EnvWatcher converts raw environment signals into violations while the
// session is active. Each signal is a single edge-triggered event; signals
// arriving after termination are dropped.
type EnvWatcher struct {
	sess *Session
}

// Observe handles one environment signal.
func (w *EnvWatcher) Observe(sig Signal) {
	if !w.sess.Active() {
		return
	}
	switch sig {
	case SignalVisibilityHidden:
		w.sess.AddViolation(NewViolation(ViolationTabSwitch))
	case SignalFullscreenExit:
		w.sess.AddViolation(NewViolation(ViolationFullscreenExit))
	case SignalUnload:
		// The page is going away: journal the event and fire a best-effort
		// force-fail submission. No confirmation is awaited.
		w.sess.handleUnload()
	}
}
