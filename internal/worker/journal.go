package worker

import (
	"context"
	"encoding/json"

	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/quizvigil/proctor-agent/internal/proctor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// JournalEntry is one audited violation on the journal queue.
type JournalEntry struct {
	SessionID string `json:"session_id"`
	QuizID    string `json:"quiz_id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// RedisJournal publishes violations onto the journal queue for the
// JournalWorker to drain. Publishing is best-effort; a full or unreachable
// queue never blocks the proctoring decision path.
type RedisJournal struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisJournal creates a journal producer.
func NewRedisJournal(rdb *redis.Client, log zerolog.Logger) *RedisJournal {
	return &RedisJournal{
		rdb: rdb,
		log: log.With().Str("component", "violation_journal").Logger(),
	}
}

// Record queues a violation for the audit log.
func (j *RedisJournal) Record(ctx context.Context, sessionID, quizID string, v proctor.Violation) {
	entry := JournalEntry{
		SessionID: sessionID,
		QuizID:    quizID,
		Type:      string(v.Type),
		Message:   v.Message,
		Timestamp: v.At.Unix(),
	}
	data, _ := json.Marshal(entry)
	if err := j.rdb.RPush(ctx, config.WorkerKey.ViolationJournalQueue, data).Err(); err != nil {
		j.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to queue journal entry")
	}
}
