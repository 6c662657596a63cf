package assistant

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/namikmesic/boardmate-chat/internal/chat"
	"github.com/namikmesic/boardmate-chat/internal/transport"
)

// Sommelier is the game recommendation assistant. Conversations are keyed by a
// client generated session id.
type Sommelier struct {
	client    *transport.Client
	sessionID string
}

type sommelierRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// NewSommelier uses sessionID, or a fresh random id when it is empty.
func NewSommelier(client *transport.Client, sessionID string) *Sommelier {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Sommelier{client: client, sessionID: sessionID}
}

func (s *Sommelier) Name() string { return "sommelier" }

func (s *Sommelier) Session() string { return s.sessionID }

func (s *Sommelier) Stream(ctx context.Context, message string, cb transport.Callbacks) chat.StreamHandle {
	return s.client.Stream(ctx, transport.Request{
		Path: "/sommelier/chat",
		Body: sommelierRequest{SessionID: s.sessionID, Message: message},
	}, cb)
}

func (s *Sommelier) History(ctx context.Context) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := s.client.GetJSON(ctx, s.historyPath(), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Sommelier) ClearHistory(ctx context.Context) error {
	return s.client.Delete(ctx, s.historyPath(), nil)
}

func (s *Sommelier) historyPath() string {
	return "/sommelier/history/" + url.PathEscape(s.sessionID)
}
