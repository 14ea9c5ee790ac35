package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// JournalWorker drains the violation journal queue and appends entries to a
// JSONL audit file. The quiz backend only stores counts; this file is the
// full per-event record for post-hoc review.
type JournalWorker struct {
	rdb  *redis.Client
	path string
	log  zerolog.Logger
}

// NewJournalWorker creates a journal worker writing to the given file path.
func NewJournalWorker(rdb *redis.Client, path string, log zerolog.Logger) *JournalWorker {
	return &JournalWorker{
		rdb:  rdb,
		path: path,
		log:  log.With().Str("component", "journal_worker").Logger(),
	}
}

// Start runs the drain loop until ctx is cancelled, then flushes the buffer.
func (w *JournalWorker) Start(ctx context.Context) {
	w.log.Info().Str("path", w.path).Msg("JournalWorker started")

	buffer := make([]*JournalEntry, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis. BLPop blocks for up to a second and returns
		// immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.ViolationJournalQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var entry JournalEntry
		if err := json.Unmarshal([]byte(result[1]), &entry); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed journal entry")
			continue
		}

		buffer = append(buffer, &entry)
	}
}

// flushSafe appends the batch to the audit file; on failure the batch is
// pushed back to Redis so nothing is lost while the disk is unavailable.
func (w *JournalWorker) flushSafe(ctx context.Context, batch []*JournalEntry) {
	if err := w.appendBatch(batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Audit file write failed, requeueing batch")
		w.requeue(ctx, batch)
	}
}

func (w *JournalWorker) appendBatch(batch []*JournalEntry) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	for _, entry := range batch {
		line, err := json.Marshal(entry)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", entry.SessionID).Msg("Dropping unmarshalable entry")
			continue
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write audit line: %w", err)
		}
	}
	return f.Sync()
}

func (w *JournalWorker) requeue(ctx context.Context, items []*JournalEntry) {
	pipe := w.rdb.Pipeline()
	for _, entry := range items {
		data, _ := json.Marshal(entry)
		pipe.RPush(ctx, config.WorkerKey.ViolationJournalQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue journal entries. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued journal entries back to Redis")
		// Avoid thrashing while the disk is down hard.
		time.Sleep(2 * time.Second)
	}
}

func (w *JournalWorker) shutdown(buffer []*JournalEntry) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
