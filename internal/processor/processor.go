package processor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/boardmate-chat/internal/chat"
	"github.com/namikmesic/boardmate-chat/internal/jetstream"
	"github.com/namikmesic/boardmate-chat/internal/storage"
	"github.com/namikmesic/boardmate-chat/internal/stream"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is the part of nats.JetStreamContext the processor needs.
type Publisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// EventMessage is published to jetstream.EventSubject for every stream event.
type EventMessage struct {
	StreamID     string    `json:"streamId"`
	Assistant    string    `json:"assistant"`
	Session      string    `json:"session"`
	Index        int       `json:"index"`
	Kind         string    `json:"kind"`
	Content      string    `json:"content,omitempty"`
	MessageID    string    `json:"messageId,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Timestamp    time.Time `json:"ts"`
}

// DoneMessage is published to jetstream.DoneSubject once a stream has ended.
type DoneMessage struct {
	StreamID      string    `json:"streamId"`
	Outcome       string    `json:"outcome"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	ContentLength int       `json:"contentLength"`
	Frames        int       `json:"frames"`
	Dropped       int       `json:"dropped"`
	Bytes         int64     `json:"bytes"`
	Timestamp     time.Time `json:"ts"`
}

// Processor records chat stream telemetry. It implements chat.Observer: events
// are mirrored to JetStream as they arrive and the finished stream is written
// to Postgres through the batch writer. Either sink may be nil.
type Processor struct {
	js     Publisher
	writer *storage.BatchWriter

	mu      sync.Mutex
	streams map[uuid.UUID][]storage.EventRecord
}

var _ chat.Observer = (*Processor)(nil)

func New(js Publisher, writer *storage.BatchWriter) *Processor {
	return &Processor{
		js:      js,
		writer:  writer,
		streams: make(map[uuid.UUID][]storage.EventRecord),
	}
}

func (p *Processor) StreamStarted(info chat.StreamInfo) {
	p.mu.Lock()
	p.streams[info.ID] = nil
	p.mu.Unlock()

	log.Debug().
		Str("stream_id", info.ID.String()).
		Str("assistant", info.Assistant).
		Str("session", info.Session).
		Msg("stream started")
}

func (p *Processor) StreamEvent(info chat.StreamInfo, ev stream.Event) {
	rec := storage.EventRecord{Kind: ev.Kind.String()}
	switch ev.Kind {
	case stream.KindContent:
		rec.Content = ev.Text
	case stream.KindDone:
		rec.MessageID = ev.MessageID
	case stream.KindError:
		if ev.Err != nil {
			rec.ErrorCode = ev.Err.Code
		}
	}

	p.mu.Lock()
	events, ok := p.streams[info.ID]
	if !ok {
		p.mu.Unlock()
		return
	}
	rec.Index = len(events)
	p.streams[info.ID] = append(events, rec)
	p.mu.Unlock()

	msg := EventMessage{
		StreamID:  info.ID.String(),
		Assistant: info.Assistant,
		Session:   info.Session,
		Index:     rec.Index,
		Kind:      rec.Kind,
		Content:   rec.Content,
		MessageID: rec.MessageID,
		ErrorCode: rec.ErrorCode,
		Timestamp: time.Now().UTC(),
	}
	if ev.Err != nil {
		msg.ErrorMessage = ev.Err.Message
	}
	p.publish(jetstream.EventSubject(msg.StreamID), msg)
}

func (p *Processor) StreamEnded(info chat.StreamInfo, out chat.Outcome) {
	p.mu.Lock()
	events := p.streams[info.ID]
	delete(p.streams, info.ID)
	p.mu.Unlock()

	finished := out.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	p.publish(jetstream.DoneSubject(info.ID.String()), DoneMessage{
		StreamID:      info.ID.String(),
		Outcome:       out.Status,
		ErrorCode:     out.ErrorCode,
		ContentLength: out.ContentLength,
		Frames:        out.Summary.Frames,
		Dropped:       out.Summary.Dropped,
		Bytes:         out.Summary.Bytes,
		Timestamp:     finished.UTC(),
	})

	if p.writer != nil {
		p.writer.Enqueue(storage.InsertStreamJob(&storage.StreamRecord{
			ID:            info.ID,
			StartedAt:     info.StartedAt,
			FinishedAt:    finished,
			Assistant:     info.Assistant,
			Session:       info.Session,
			Outcome:       out.Status,
			ErrorCode:     out.ErrorCode,
			ErrorMessage:  out.ErrorMessage,
			ContentLength: out.ContentLength,
			Frames:        out.Summary.Frames,
			DroppedFrames: out.Summary.Dropped,
			Bytes:         out.Summary.Bytes,
		}))
		if len(events) > 0 {
			p.writer.Enqueue(storage.InsertStreamEventsJob(info.ID, info.StartedAt, events))
		}
	}

	log.Debug().
		Str("stream_id", info.ID.String()).
		Str("outcome", out.Status).
		Int("events", len(events)).
		Int("frames", out.Summary.Frames).
		Int("dropped", out.Summary.Dropped).
		Msg("stream processing complete")
}

// Drain waits until every published message has been acknowledged.
func (p *Processor) Drain(ctx context.Context) error {
	if p.js == nil {
		return nil
	}
	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) publish(subject string, v any) {
	if p.js == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to encode telemetry")
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish telemetry")
	}
}
