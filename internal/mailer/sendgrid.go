package mailer

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	helpers "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridService struct {
	client *sendgrid.Client
	from   mail.Address
	log    zerolog.Logger
}

// NewSendgridService builds an EmailService that delivers through the
// SendGrid v3 API.
func NewSendgridService(apiKey string, from mail.Address, log zerolog.Logger) EmailService {
	return &sendgridService{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		log:    log.With().Str("component", "sendgrid").Logger(),
	}
}

func (s *sendgridService) Send(ctx context.Context, msg *EmailMessage) error {
	if !msg.HasContent() {
		if err := msg.Render(); err != nil {
			return err
		}
	}

	sgMsg := helpers.NewV3Mail()
	sgMsg.SetFrom(helpers.NewEmail(s.from.Name, s.from.Address))
	sgMsg.Subject = msg.Subject

	p := helpers.NewPersonalization()
	p.AddTos(helpers.NewEmail(msg.To.Name, msg.To.Address))
	sgMsg.AddPersonalizations(p)

	sgMsg.AddContent(
		helpers.NewContent("text/plain", msg.TextContent),
		helpers.NewContent("text/html", msg.HTMLContent),
	)

	resp, err := s.client.SendWithContext(ctx, sgMsg)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.log.Error().
			Int("status_code", resp.StatusCode).
			Str("body", resp.Body).
			Msg("sendgrid rejected message")
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}

	s.log.Info().
		Str("to", msg.To.Address).
		Str("subject", msg.Subject).
		Msg("email delivered")
	return nil
}
