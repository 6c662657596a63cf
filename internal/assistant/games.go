package assistant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/namikmesic/boardmate-chat/internal/transport"
)

const defaultSearchLimit = 10

// GameSummary is one BoardGameGeek search hit. BggID is what NewRuleMaster takes.
type GameSummary struct {
	BggID         int64  `json:"bggId"`
	Name          string `json:"name"`
	YearPublished int    `json:"yearPublished"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
}

type GameDetail struct {
	BggID         int64    `json:"bggId"`
	Name          string   `json:"name"`
	NameKorean    string   `json:"nameKorean,omitempty"`
	YearPublished int      `json:"yearPublished"`
	Description   string   `json:"description"`
	MinPlayers    int      `json:"minPlayers"`
	MaxPlayers    int      `json:"maxPlayers"`
	PlayingTime   int      `json:"playingTime"`
	MinPlayTime   int      `json:"minPlayTime"`
	MaxPlayTime   int      `json:"maxPlayTime"`
	Mechanics     []string `json:"mechanics"`
	Categories    []string `json:"categories"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	ThumbnailURL  string   `json:"thumbnailUrl,omitempty"`
	AverageRating float64  `json:"averageRating"`
	Weight        float64  `json:"weight"`
}

// SearchGames looks up games by name for the rule master. limit <= 0 uses the
// server default of 10.
func SearchGames(ctx context.Context, client *transport.Client, query string, limit int) ([]GameSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var games []GameSummary
	q := url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}}
	if err := client.GetJSON(ctx, "/rulemaster/games/search", q, &games); err != nil {
		return nil, fmt.Errorf("search games: %w", err)
	}
	return games, nil
}

func GetGameDetail(ctx context.Context, client *transport.Client, bggID int64) (*GameDetail, error) {
	var game *GameDetail
	if err := client.GetJSON(ctx, "/rulemaster/games/"+strconv.FormatInt(bggID, 10), nil, &game); err != nil {
		return nil, fmt.Errorf("game %d: %w", bggID, err)
	}
	if game == nil {
		return nil, fmt.Errorf("game %d: empty response", bggID)
	}
	return game, nil
}
