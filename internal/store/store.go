package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps per-attempt state in Redis, keyed by (student, quiz):
// the answer autosave hash, the violation counter, and the start timestamp.
// The write path is the session's autosave; the read path rehydrates an
// interrupted attempt when the student starts the same quiz again after an
// agent restart.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// SaveAnswer writes one chosen option into the attempt's answer hash.
func (s *SessionStore) SaveAnswer(ctx context.Context, studentID, quizID, questionID, option string) error {
	if err := s.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(studentID, quizID), questionID, option).Err(); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Answers returns the full autosaved answer map for an attempt.
func (s *SessionStore) Answers(ctx context.Context, studentID, quizID string) (map[string]string, error) {
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(studentID, quizID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	return answers, nil
}

// IncrViolations bumps the persisted violation counter.
func (s *SessionStore) IncrViolations(ctx context.Context, studentID, quizID string) error {
	if err := s.rdb.Incr(ctx, config.CacheKey.AttemptViolationsKey(studentID, quizID)).Err(); err != nil {
		return fmt.Errorf("incr violations: %w", err)
	}
	return nil
}

// ViolationCount reads the persisted violation counter. Missing key means zero.
func (s *SessionStore) ViolationCount(ctx context.Context, studentID, quizID string) (int, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.AttemptViolationsKey(studentID, quizID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get violation count: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid violation count in cache: %w", err)
	}
	return n, nil
}

// SetStartedAt records the attempt start time as a Unix timestamp.
func (s *SessionStore) SetStartedAt(ctx context.Context, studentID, quizID string, t time.Time) error {
	if err := s.rdb.Set(ctx, config.CacheKey.AttemptStartKey(studentID, quizID), t.Unix(), 0).Err(); err != nil {
		return fmt.Errorf("set started_at: %w", err)
	}
	return nil
}

// StartedAt reads the attempt start time. Returns redis.Nil wrapped when no
// attempt is recorded.
func (s *SessionStore) StartedAt(ctx context.Context, studentID, quizID string) (time.Time, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.AttemptStartKey(studentID, quizID)).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("get started_at: %w", err)
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time in cache: %w", err)
	}
	return time.Unix(unix, 0), nil
}

// Clear removes all persisted state for a submitted attempt.
func (s *SessionStore) Clear(ctx context.Context, studentID, quizID string) error {
	keys := []string{
		config.CacheKey.AttemptAnswersKey(studentID, quizID),
		config.CacheKey.AttemptViolationsKey(studentID, quizID),
		config.CacheKey.AttemptStartKey(studentID, quizID),
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear attempt: %w", err)
	}
	return nil
}
