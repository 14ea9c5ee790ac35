package mailer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ConsoleService logs messages instead of sending them. It is the
// default driver for local development and is also used by tests to
// inspect what would have been sent.
type ConsoleService struct {
	log zerolog.Logger

	mu   sync.Mutex
	sent []*EmailMessage
}

func NewConsoleService(log zerolog.Logger) *ConsoleService {
	return &ConsoleService{log: log.With().Str("component", "console_mailer").Logger()}
}

func (s *ConsoleService) Send(_ context.Context, msg *EmailMessage) error {
	if !msg.HasContent() {
		if err := msg.Render(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.log.Info().
		Str("to", msg.To.Address).
		Str("subject", msg.Subject).
		Msg("email (console driver)")
	s.log.Debug().Msg(msg.TextContent)
	return nil
}

// Sent returns a copy of every message delivered so far.
func (s *ConsoleService) Sent() []*EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*EmailMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
