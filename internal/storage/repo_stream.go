package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StreamRecord is one row of chat_streams: how a single reply stream went.
type StreamRecord struct {
	ID            uuid.UUID
	StartedAt     time.Time
	FinishedAt    time.Time
	Assistant     string
	Session       string
	Outcome       string
	ErrorCode     string
	ErrorMessage  string
	ContentLength int
	Frames        int
	DroppedFrames int
	Bytes         int64
}

func (r *StreamRecord) DurationMs() int {
	return int(r.FinishedAt.Sub(r.StartedAt).Milliseconds())
}

func InsertStreamJob(r *StreamRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		_, err := db.Exec(ctx, `
			INSERT INTO chat_streams (
				id, started_at, finished_at, assistant, session, outcome, error_code,
				error_message, content_length, frames, dropped_frames, bytes, duration_ms
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO NOTHING`,
			r.ID, r.StartedAt, r.FinishedAt, r.Assistant, r.Session, r.Outcome,
			nilIfEmpty(r.ErrorCode), nilIfEmpty(r.ErrorMessage),
			r.ContentLength, r.Frames, r.DroppedFrames, r.Bytes, r.DurationMs(),
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
