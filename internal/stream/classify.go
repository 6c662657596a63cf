package stream

import (
	"encoding/json"
	"strings"
)

// Classify decodes a frame payload and maps it onto an event. ok is false for
// malformed JSON and for payloads that carry nothing to dispatch.
func Classify(data string) (Event, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Event{}, false
	}

	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Event{}, false
	}
	return classifyPayload(p)
}

func classifyPayload(p Payload) (Event, bool) {
	switch {
	case p.Type == "error":
		return Event{Kind: KindError, Err: apiError(p)}, true
	case (p.Type == "content" || p.Type == "text") && p.Content != "":
		return ContentEvent(p.Content), true
	case p.Type == "done" || p.Completed:
		return DoneEvent(p.MessageID), true
	}
	return Event{}, false
}

func apiError(p Payload) *APIError {
	e := &APIError{Code: CodeAPI, Message: p.Content}
	if p.Error != nil {
		e.Reason = p.Error.Code
		e.Retryable = p.Error.Retryable
		if p.Error.Message != "" {
			e.Message = p.Error.Message
		}
	}
	if e.Message == "" {
		e.Message = "Unknown error"
	}
	return e
}
