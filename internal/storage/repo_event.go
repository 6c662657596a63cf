package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventRecord is one dispatched stream event.
type EventRecord struct {
	Index     int
	Kind      string
	Content   string
	MessageID string
	ErrorCode string
}

var eventColumns = []string{"ts", "stream_id", "event_index", "kind", "content", "message_id", "error_code"}

// InsertStreamEventsJob copies a stream's events into chat_stream_events.
func InsertStreamEventsJob(streamID uuid.UUID, ts time.Time, events []EventRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		rows := make([][]any, len(events))
		for i, ev := range events {
			rows[i] = []any{
				ts,
				streamID,
				ev.Index,
				ev.Kind,
				nilIfEmpty(ev.Content),
				nilIfEmpty(ev.MessageID),
				nilIfEmpty(ev.ErrorCode),
			}
		}

		_, err := db.CopyFrom(ctx, pgx.Identifier{"chat_stream_events"}, eventColumns, pgx.CopyFromRows(rows))
		return err
	})
}
