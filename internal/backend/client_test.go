package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(url, 2*time.Second, zerolog.Nop())
}

func TestGetQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/quiz/q-42/questions", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Quiz{
			QuizID:          "q-42",
			Title:           "Networks Final",
			DurationMinutes: 30,
			Questions: []Question{
				{ID: "65a1", QuizID: "q-42", QuestionText: "What is TCP?", Options: map[string]string{"A": "protocol", "B": "cable"}},
			},
		})
	}))
	defer srv.Close()

	quiz, err := newTestClient(srv.URL).GetQuestions(context.Background(), "tok-123", "q-42")
	require.NoError(t, err)
	assert.Equal(t, "Networks Final", quiz.Title)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, "65a1", quiz.Questions[0].ID)
}

func TestReportViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/quiz/q-42/violation", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tab_switch", body["violation_type"])

		json.NewEncoder(w).Encode(ViolationResult{ViolationCount: 2, Status: StatusFailed})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).ReportViolation(context.Background(), "tok", "q-42", "tab_switch")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ViolationCount)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quiz/q-42/submit", r.URL.Path)

		var payload SubmitPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, map[string]string{"65a1": "A"}, payload.Answers)
		assert.True(t, payload.ForceFail)
		assert.NotEmpty(t, payload.StartedAt)

		json.NewEncoder(w).Encode(SubmitResult{Score: 0, Status: StatusFailed, ViolationCount: 3, Rank: 12})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Submit(context.Background(), "tok", "q-42", SubmitPayload{
		Answers:   map[string]string{"65a1": "A"},
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		ForceFail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 12, res.Rank)
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Quiz already submitted"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(context.Background(), "tok", "q-42", SubmitPayload{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Quiz already submitted", apiErr.Detail)
}

func TestNetworkFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestClient(srv.URL).ReportViolation(context.Background(), "tok", "q-42", "noise")
	assert.ErrorIs(t, err, ErrUnreachable)
}
