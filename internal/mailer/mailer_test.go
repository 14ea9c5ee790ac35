package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizvigil/proctor-agent/internal/validator"
)

func sampleData() ResultData {
	return ResultData{
		Name:             "Ada Lovelace",
		UniversityNumber: "2201234",
		Score:            85,
		Status:           "PASSED",
		ViolationCount:   1,
		Rank:             4,
		QuizTitle:        "Discrete Mathematics",
	}
}

func TestRenderResultMessage(t *testing.T) {
	msg := NewResultMessage(mail.Address{Name: "Ada", Address: "ada@example.edu"}, sampleData())
	require.NoError(t, msg.Render())

	assert.Contains(t, msg.Subject, "Discrete Mathematics")

	assert.Contains(t, msg.TextContent, "Ada Lovelace (2201234)")
	assert.Contains(t, msg.TextContent, "Score:      85")
	assert.Contains(t, msg.TextContent, "PASSED")
	assert.Contains(t, msg.TextContent, "Congratulations")

	assert.Contains(t, msg.HTMLContent, "Discrete Mathematics")
	assert.Contains(t, msg.HTMLContent, "#4")
	assert.True(t, msg.HasContent())
}

func TestRenderFailedResult(t *testing.T) {
	data := sampleData()
	data.Status = "FAILED"
	data.Score = 20
	msg := NewResultMessage(mail.Address{Address: "ada@example.edu"}, data)
	require.NoError(t, msg.Render())

	assert.Contains(t, msg.TextContent, "did not pass")
	assert.NotContains(t, msg.TextContent, "Congratulations")
	assert.Contains(t, msg.HTMLContent, "FAILED")
}

func TestConsoleServiceRecordsMessages(t *testing.T) {
	svc := NewConsoleService(zerolog.Nop())
	msg := NewResultMessage(mail.Address{Address: "ada@example.edu"}, sampleData())

	require.NoError(t, svc.Send(context.Background(), msg))

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.edu", sent[0].To.Address)
	assert.True(t, sent[0].HasContent(), "Send renders unrendered messages")
}

func newTestMailerServer(t *testing.T) (*httptest.Server, *ConsoleService) {
	t.Helper()
	validator.Setup()
	svc := NewConsoleService(zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())
	srv := httptest.NewServer(SetupRouter(h))
	t.Cleanup(srv.Close)
	return srv, svc
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSendResultEndpoint(t *testing.T) {
	srv, svc := newTestMailerServer(t)

	resp := postJSON(t, srv.URL+"/send-result", map[string]any{
		"to":                "ada@example.edu",
		"name":              "Ada Lovelace",
		"university_number": "2201234",
		"score":             85,
		"status":            "PASSED",
		"violation_count":   1,
		"rank":              4,
		"quiz_title":        "Discrete Mathematics",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.edu", sent[0].To.Address)
	assert.Contains(t, sent[0].TextContent, "2201234")
}

func TestSendResultValidation(t *testing.T) {
	srv, svc := newTestMailerServer(t)

	// Missing required fields and a bad email.
	resp := postJSON(t, srv.URL+"/send-result", map[string]any{
		"to":     "not-an-email",
		"status": "MAYBE",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid request body", body.Error)
	assert.Contains(t, body.Details, "to")
	assert.Contains(t, body.Details, "status")

	assert.Empty(t, svc.Sent())
}

func TestMailerHealth(t *testing.T) {
	srv, _ := newTestMailerServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
