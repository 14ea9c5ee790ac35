package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/quizvigil/proctor-agent/internal/proctor"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// countAuditLines never fails the test, so it is safe inside Eventually.
func countAuditLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

func readAuditFile(t *testing.T, path string) []JournalEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []JournalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e JournalEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestRedisJournalQueuesEntry(t *testing.T) {
	rdb := newTestRedis(t)
	j := NewRedisJournal(rdb, zerolog.Nop())

	v := proctor.NewViolation(proctor.ViolationTabSwitch)
	j.Record(context.Background(), "sess-1", "quiz-1", v)

	raw, err := rdb.LPop(context.Background(), config.WorkerKey.ViolationJournalQueue).Result()
	require.NoError(t, err)

	var entry JournalEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.Equal(t, "quiz-1", entry.QuizID)
	assert.Equal(t, string(proctor.ViolationTabSwitch), entry.Type)
	assert.Equal(t, v.At.Unix(), entry.Timestamp)
}

func TestJournalWorkerDrainsQueueToFile(t *testing.T) {
	rdb := newTestRedis(t)
	path := filepath.Join(t.TempDir(), "violations.jsonl")

	j := NewRedisJournal(rdb, zerolog.Nop())
	ctx := context.Background()
	j.Record(ctx, "sess-1", "quiz-1", proctor.NewViolation(proctor.ViolationNoise))
	j.Record(ctx, "sess-1", "quiz-1", proctor.NewViolation(proctor.ViolationTabSwitch))
	j.Record(ctx, "sess-2", "quiz-1", proctor.NewViolation(proctor.ViolationFullscreenExit))

	w := NewJournalWorker(rdb, path, zerolog.Nop())
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(done)
	}()

	// Entries flush on the batch timer; give it one cycle.
	require.Eventually(t, func() bool {
		return countAuditLines(path) == 3
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	entries := readAuditFile(t, path)
	require.Len(t, entries, 3)
	assert.Equal(t, "noise", entries[0].Type)
	assert.Equal(t, "tab_switch", entries[1].Type)
	assert.Equal(t, "sess-2", entries[2].SessionID)
}

func TestJournalWorkerDiscardsMalformedEntries(t *testing.T) {
	rdb := newTestRedis(t)
	path := filepath.Join(t.TempDir(), "violations.jsonl")
	ctx := context.Background()

	require.NoError(t, rdb.RPush(ctx, config.WorkerKey.ViolationJournalQueue, "not-json").Err())
	NewRedisJournal(rdb, zerolog.Nop()).Record(ctx, "sess-1", "quiz-1", proctor.NewViolation(proctor.ViolationNoise))

	w := NewJournalWorker(rdb, path, zerolog.Nop())
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return countAuditLines(path) == 1
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	<-done

	entries := readAuditFile(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "sess-1", entries[0].SessionID)
}

func TestJournalWorkerFlushesOnShutdown(t *testing.T) {
	rdb := newTestRedis(t)
	path := filepath.Join(t.TempDir(), "violations.jsonl")
	ctx := context.Background()

	j := NewRedisJournal(rdb, zerolog.Nop())
	j.Record(ctx, "sess-1", "quiz-1", proctor.NewViolation(proctor.ViolationUnload))

	w := NewJournalWorker(rdb, path, zerolog.Nop())
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(done)
	}()

	// Cancel before the batch timer fires; the shutdown flush must still
	// write the buffered entry.
	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}

	entries := readAuditFile(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "unload", entries[0].Type)
}
