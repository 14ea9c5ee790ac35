package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// ActionSignal relays a raw environment signal (tab visibility,
	// fullscreen exit, page unload).
	ActionSignal Action = "signal"
	// ActionAnswer autosaves a single chosen option.
	ActionAnswer Action = "answer"
	// ActionSubmit is the explicit, user-confirmed submission.
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload is a client frame on the session stream.
type RequestPayload struct {
	Action Action `json:"action"`
	Signal string `json:"signal,omitempty"` // visibility_hidden | fullscreen_exit | unload
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventSaved Event = "saved"
	EventPong  Event = "pong"
	// Session events forward the proctor event kind verbatim: warning,
	// final_warning, urgent, terminated, result.
	EventSession Event = "session"
)

// ResponsePayload is a server frame on the session stream.
type ResponsePayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}
