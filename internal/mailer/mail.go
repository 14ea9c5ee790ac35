package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"sync"
	texttmpl "text/template"
)

//go:embed templates/*.gohtml templates/*.txt
var templateFS embed.FS

var (
	htmlTmpl *htmltmpl.Template
	textTmpl *texttmpl.Template
	tmplInit sync.Once
	tmplErr  error
)

// ResultData is the template context for a graded attempt email.
type ResultData struct {
	Name             string
	UniversityNumber string
	Score            int
	Status           string
	ViolationCount   int
	Rank             int
	QuizTitle        string
}

// Passed reports whether the attempt passed; templates branch on it.
func (d ResultData) Passed() bool { return d.Status == "PASSED" }

// EmailMessage is one renderable result email.
type EmailMessage struct {
	To      mail.Address
	Subject string
	Data    ResultData

	// rendered contents
	TextContent string
	HTMLContent string
}

// NewResultMessage builds the result email for one attempt.
func NewResultMessage(to mail.Address, data ResultData) *EmailMessage {
	return &EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("Your result for %q", data.QuizTitle),
		Data:    data,
	}
}

// Render fills TextContent and HTMLContent from the embedded templates.
// Templates are parsed once on first use.
func (m *EmailMessage) Render() error {
	tmplInit.Do(parseTemplates)
	if tmplErr != nil {
		return tmplErr
	}

	var text bytes.Buffer
	if err := textTmpl.ExecuteTemplate(&text, "result.txt", m.Data); err != nil {
		return fmt.Errorf("render text: %w", err)
	}
	m.TextContent = text.String()

	var html bytes.Buffer
	if err := htmlTmpl.ExecuteTemplate(&html, "result.gohtml", m.Data); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	m.HTMLContent = html.String()
	return nil
}

// HasContent reports whether the message has been rendered.
func (m *EmailMessage) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

func parseTemplates() {
	textTmpl, tmplErr = texttmpl.ParseFS(templateFS, "templates/*.txt")
	if tmplErr != nil {
		tmplErr = fmt.Errorf("parse text templates: %w", tmplErr)
		return
	}
	htmlTmpl, tmplErr = htmltmpl.ParseFS(templateFS, "templates/*.gohtml")
	if tmplErr != nil {
		tmplErr = fmt.Errorf("parse html templates: %w", tmplErr)
	}
}

// EmailService is any transport that can deliver a rendered message.
type EmailService interface {
	Send(ctx context.Context, msg *EmailMessage) error
}
