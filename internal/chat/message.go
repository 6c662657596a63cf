package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Timestamps are RFC 3339 strings so history
// loaded from the server round-trips without reformatting.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func newMessage(role Role, content string, now time.Time) Message {
	return Message{Role: role, Content: content, Timestamp: now.UTC().Format(time.RFC3339Nano)}
}

// State is a copy of what a chat widget renders.
type State struct {
	Messages         []Message
	Streaming        bool
	StreamingContent string
}

// ErrorReply is shown when a stream fails before any content arrived.
const ErrorReply = "죄송합니다, 오류가 발생했습니다. 다시 시도해주세요."
