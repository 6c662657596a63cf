package stream

import "fmt"

// Frame is one decoded SSE event block.
type Frame struct {
	Event string // value of the event: field, if any
	Data  string // data: lines joined with "\n"
}

// Payload is the JSON carried by a frame's data. Both BoardMate assistants share
// this shape but use different tags: the rule master sends "content"/"done" with a
// messageId, the sommelier sends "text" and flags the end with completed=true.
type Payload struct {
	Type      string       `json:"type"`
	Content   string       `json:"content,omitempty"`
	MessageID string       `json:"messageId,omitempty"`
	Completed bool         `json:"completed,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type Kind int

const (
	KindContent Kind = iota + 1
	KindDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Error codes surfaced through error events.
const (
	CodeHTTP        = "HTTP_ERROR"
	CodeNetwork     = "NETWORK_ERROR"
	CodeAPI         = "API_ERROR"
	CodeIdleTimeout = "IDLE_TIMEOUT"
)

// Event is the classified form of a frame.
type Event struct {
	Kind      Kind
	Text      string    // KindContent
	MessageID string    // KindDone, when the server sent one
	Err       *APIError // KindError
}

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

func ContentEvent(text string) Event { return Event{Kind: KindContent, Text: text} }

func DoneEvent(messageID string) Event { return Event{Kind: KindDone, MessageID: messageID} }

func ErrorEvent(code, message string) Event {
	return Event{Kind: KindError, Err: &APIError{Code: code, Message: message}}
}

// APIError is the structured {code, message} handed to error consumers.
type APIError struct {
	Code      string
	Message   string
	Reason    string // server supplied code, e.g. STREAM_ERROR
	Retryable bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Summary describes how a stream ended.
type Summary struct {
	Terminated bool  // a done or error event was dispatched
	Canceled   bool  // the owner cancelled the stream
	Err        error // transport failure, if any
	Status     int   // HTTP status, 0 if the request never completed
	Frames     int
	Dropped    int // frames that were malformed or unrecognized
	Bytes      int64
}
