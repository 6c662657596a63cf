package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/boardmate-chat/internal/stream"
	"github.com/rs/zerolog/log"
	"github.com/tmaxmax/go-sse"
)

// dialect is how one assistant spells its frames.
type dialect interface {
	content(text string) stream.Payload
	done() stream.Payload
	failure(msg string) stream.Payload
}

// sommelierDialect uses "text" frames and marks the end with completed=true.
type sommelierDialect struct{}

func (sommelierDialect) content(text string) stream.Payload {
	return stream.Payload{Type: "text", Content: text}
}

func (sommelierDialect) done() stream.Payload {
	return stream.Payload{Type: "done", Completed: true}
}

func (sommelierDialect) failure(msg string) stream.Payload {
	return stream.Payload{Type: "error", Content: msg, Completed: true}
}

// ruleMasterDialect uses "content" frames, a done frame with a message id and
// structured errors.
type ruleMasterDialect struct{}

func (ruleMasterDialect) content(text string) stream.Payload {
	return stream.Payload{Type: "content", Content: text}
}

func (ruleMasterDialect) done() stream.Payload {
	return stream.Payload{Type: "done", MessageID: uuid.NewString()}
}

func (ruleMasterDialect) failure(msg string) stream.Payload {
	return stream.Payload{Type: "error", Error: &stream.ErrorDetail{Code: "STREAM_ERROR", Message: msg, Retryable: true}}
}

// stream writes the scripted reply and reports the text that was sent. ok is
// false when the exchange should not be recorded in history.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, assistant, msg string, d dialect) (string, bool) {
	script := s.opts.Reply(assistant, msg)
	if script.Status != 0 && script.Status != http.StatusOK {
		writeJSON(w, script.Status, envelope{Status: script.Status, Message: http.StatusText(script.Status)})
		return "", false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	send := func(p stream.Payload) bool {
		if err := writeFrame(w, p); err != nil {
			log.Debug().Err(err).Msg("client went away")
			return false
		}
		if canFlush {
			flusher.Flush()
		}
		return s.pause(r)
	}

	var reply strings.Builder
	for _, frag := range script.Fragments {
		if !send(d.content(frag)) {
			return "", false
		}
		reply.WriteString(frag)
	}

	if script.Error != "" {
		send(d.failure(script.Error))
		return "", false
	}
	if !script.OmitDone && !send(d.done()) {
		return "", false
	}

	end := &sse.Message{}
	end.AppendComment("Stream completed")
	if _, err := end.WriteTo(w); err == nil && canFlush {
		flusher.Flush()
	}

	log.Info().
		Str("assistant", assistant).
		Int("fragments", len(script.Fragments)).
		Msg("reply streamed")
	return reply.String(), true
}

func (s *Server) pause(r *http.Request) bool {
	if s.opts.Delay <= 0 {
		return r.Context().Err() == nil
	}
	select {
	case <-time.After(s.opts.Delay):
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeFrame(w io.Writer, p stream.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	msg := &sse.Message{}
	msg.AppendData(string(data))
	_, err = msg.WriteTo(w)
	return err
}
