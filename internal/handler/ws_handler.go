package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizvigil/proctor-agent/internal/middleware"
	"github.com/quizvigil/proctor-agent/internal/proctor"
	ws "github.com/quizvigil/proctor-agent/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams environment signals in and session events out over a
// single WebSocket per session.
type WSHandler struct {
	registry *proctor.Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(registry *proctor.Registry, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// The browser relays raw environment signals and answer selections; the
// agent pushes warnings, the urgent mark, the termination notice, and the
// final result.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	sess := h.registry.Get(id)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", id.String()).
		Str("student", claims.Subject).
		Logger()

	wsLog.Info().Msg("Student connected")

	// Single writer goroutine: both read-loop replies and session events go
	// through outbound, so the connection never sees concurrent writes.
	outbound := make(chan ws.ResponsePayload, 32)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case payload := <-outbound:
				if err := ws.WriteTyped(conn, payload); err != nil {
					wsLog.Debug().Err(err).Msg("Write failed")
					return
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-done:
				return
			case e := <-sess.Events():
				select {
				case outbound <- ws.ResponsePayload{Event: ws.EventSession, Data: e}:
				case <-done:
					return
				}
			}
		}
	}()

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionSignal:
			sess.Signal(proctor.Signal(msg.Signal))
		case ws.ActionAnswer:
			if msg.QID == "" || msg.Answer == "" {
				h.send(outbound, done, ws.ResponsePayload{Event: ws.EventError, Error: "q_id and ans are required"})
				continue
			}
			sess.SetAnswer(c.Request.Context(), msg.QID, msg.Answer)
			h.send(outbound, done, ws.ResponsePayload{Event: ws.EventSaved, Data: map[string]string{"q_id": msg.QID}})
		case ws.ActionSubmit:
			sess.SubmitByUser()
		case ws.ActionPing:
			h.send(outbound, done, ws.ResponsePayload{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			h.send(outbound, done, ws.ResponsePayload{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

func (h *WSHandler) send(outbound chan ws.ResponsePayload, done chan struct{}, payload ws.ResponsePayload) {
	select {
	case outbound <- payload:
	case <-done:
	}
}
