package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("BOARDMATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BOARDMATE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, RunMigrations(ctx, pool))

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &StreamRecord{
		ID:         uuid.New(),
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
		Assistant:  "rulemaster",
		Session:    "13",
		Outcome:    "failed",
		ErrorCode:  "HTTP_ERROR",
	}

	w := NewBatchWriter(pool, 10, 10, 10*time.Millisecond)
	w.Enqueue(InsertStreamJob(rec))
	w.Enqueue(InsertStreamEventsJob(rec.ID, now, []EventRecord{
		{Index: 0, Kind: "error", ErrorCode: "HTTP_ERROR"},
	}))
	w.Shutdown()

	var outcome, code string
	var duration int
	err = pool.QueryRow(ctx, `SELECT outcome, error_code, duration_ms FROM chat_streams WHERE id = $1`, rec.ID).
		Scan(&outcome, &code, &duration)
	require.NoError(t, err)
	assert.Equal(t, "failed", outcome)
	assert.Equal(t, "HTTP_ERROR", code)
	assert.Equal(t, 1000, duration)

	var events int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM chat_stream_events WHERE stream_id = $1`, rec.ID).Scan(&events))
	assert.Equal(t, 1, events)
}
