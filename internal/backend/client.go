package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Attempt status values reported by the quiz backend.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusPassed     = "PASSED"
	StatusFailed     = "FAILED"
)

// ViolationTypeInit is the sentinel violation type that registers a fresh
// attempt with the backend at session start. It is not counted.
const ViolationTypeInit = "__init__"

// ErrUnreachable marks transport-level failures (backend offline, DNS,
// timeout). Callers use it to switch to the offline fallback policy.
var ErrUnreachable = errors.New("quiz backend unreachable")

// APIError is a non-2xx response from the backend, carrying its detail string.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// Client is the HTTP client for the external quiz backend. The backend is
// the source of truth for scoring, pass/fail, and leaderboard rank; the
// client only relays and decodes.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a quiz backend client with the given base URL and
// per-request timeout.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "backend_client").Logger(),
	}
}

// Question is a quiz question as delivered to students (no correct option).
type Question struct {
	ID           string            `json:"_id"`
	QuizID       string            `json:"quiz_id"`
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options"`
}

// Quiz is the question-set payload for a quiz.
type Quiz struct {
	QuizID          string     `json:"quiz_id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}

// ViolationResult is the backend's answer to a violation report. A Status of
// FAILED is the authoritative force-fail signal.
type ViolationResult struct {
	ViolationCount int    `json:"violation_count"`
	Status         string `json:"status"`
}

// SubmitPayload carries the full answer map and attempt metadata.
type SubmitPayload struct {
	Answers   map[string]string `json:"answers"`
	StartedAt string            `json:"started_at"`
	ForceFail bool              `json:"force_fail"`
}

// SubmitResult is the graded outcome of an attempt.
type SubmitResult struct {
	Score          int    `json:"score"`
	Status         string `json:"status"`
	ViolationCount int    `json:"violation_count"`
	Rank           int    `json:"rank"`
	SubmittedAt    string `json:"submitted_at,omitempty"`
}

// GetQuestions fetches the question set and quiz metadata.
func (c *Client) GetQuestions(ctx context.Context, token, quizID string) (*Quiz, error) {
	var quiz Quiz
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/quiz/%s/questions", quizID), token, nil, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ReportViolation reports a single violation and returns the backend's
// authoritative count and status.
func (c *Client) ReportViolation(ctx context.Context, token, quizID, violationType string) (*ViolationResult, error) {
	body := map[string]string{"violation_type": violationType}
	var result ViolationResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/quiz/%s/violation", quizID), token, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit finalizes the attempt. The backend computes score, status, and rank.
func (c *Client) Submit(ctx context.Context, token, quizID string, payload SubmitPayload) (*SubmitResult, error) {
	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/quiz/%s/submit", quizID), token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &errBody); err != nil || errBody.Detail == "" {
			errBody.Detail = string(raw)
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: errBody.Detail}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
