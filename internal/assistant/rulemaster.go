package assistant

import (
	"context"
	"net/url"
	"strconv"

	"github.com/namikmesic/boardmate-chat/internal/chat"
	"github.com/namikmesic/boardmate-chat/internal/transport"
)

// RuleMaster explains the rules of one BoardGameGeek game. The server keys the
// conversation by the authenticated user and the game id.
type RuleMaster struct {
	client *transport.Client
	bggID  int64
}

type ruleMasterRequest struct {
	BggID   int64  `json:"bggId"`
	Message string `json:"message"`
}

// Conversation is the server side rule master session.
type Conversation struct {
	BggID     int64          `json:"bggId"`
	GameName  string         `json:"gameName"`
	Messages  []chat.Message `json:"messages"`
	ExpiresAt string         `json:"expiresAt,omitempty"`
}

func NewRuleMaster(client *transport.Client, bggID int64) *RuleMaster {
	return &RuleMaster{client: client, bggID: bggID}
}

func (r *RuleMaster) Name() string { return "rulemaster" }

func (r *RuleMaster) Session() string { return strconv.FormatInt(r.bggID, 10) }

func (r *RuleMaster) Stream(ctx context.Context, message string, cb transport.Callbacks) chat.StreamHandle {
	return r.client.Stream(ctx, transport.Request{
		Path: "/rulemaster/chat",
		Body: ruleMasterRequest{BggID: r.bggID, Message: message},
	}, cb)
}

// Conversation returns nil without error when the server has no session yet.
func (r *RuleMaster) Conversation(ctx context.Context) (*Conversation, error) {
	var conv *Conversation
	if err := r.client.GetJSON(ctx, "/rulemaster/conversations", r.query(), &conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *RuleMaster) History(ctx context.Context) ([]chat.Message, error) {
	conv, err := r.Conversation(ctx)
	if err != nil || conv == nil {
		return nil, err
	}
	return conv.Messages, nil
}

func (r *RuleMaster) ClearHistory(ctx context.Context) error {
	return r.client.Delete(ctx, "/rulemaster/conversations", r.query())
}

func (r *RuleMaster) query() url.Values {
	return url.Values{"bggId": {strconv.FormatInt(r.bggID, 10)}}
}
