package devserver

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultSearchLimit = 10

// Game is a catalog entry served by the rule master game endpoints.
type Game struct {
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
	AverageRating float64  `json:"averageRating"`
	Weight        float64  `json:"weight"`
}

type gameSummary struct {
	BggID         int64  `json:"bggId"`
	Name          string `json:"name"`
	YearPublished int    `json:"yearPublished"`
}

// DefaultGames is the catalog used when Options.Games is empty.
var DefaultGames = []Game{
	{BggID: 13, Name: "CATAN", NameKorean: "카탄", YearPublished: 1995, MinPlayers: 3, MaxPlayers: 4,
		PlayingTime: 120, MinPlayTime: 60, MaxPlayTime: 120, Mechanics: []string{"Dice Rolling", "Trading"},
		Categories: []string{"Negotiation"}, AverageRating: 7.1, Weight: 2.3,
		Description: "Settle the island of Catan by trading resources and building roads."},
	{BggID: 230802, Name: "Azul", NameKorean: "아줄", YearPublished: 2017, MinPlayers: 2, MaxPlayers: 4,
		PlayingTime: 45, MinPlayTime: 30, MaxPlayTime: 45, Mechanics: []string{"Pattern Building", "Tile Placement"},
		Categories: []string{"Abstract Strategy"}, AverageRating: 7.7, Weight: 1.8,
		Description: "Draft tiles to decorate the walls of the royal palace."},
	{BggID: 266192, Name: "Wingspan", NameKorean: "윙스팬", YearPublished: 2019, MinPlayers: 1, MaxPlayers: 5,
		PlayingTime: 70, MinPlayTime: 40, MaxPlayTime: 70, Mechanics: []string{"Engine Building", "Hand Management"},
		Categories: []string{"Animals", "Card Game"}, AverageRating: 8.0, Weight: 2.5,
		Description: "Attract birds to your wildlife preserves."},
	{BggID: 9209, Name: "Ticket to Ride", NameKorean: "티켓 투 라이드", YearPublished: 2004, MinPlayers: 2, MaxPlayers: 5,
		PlayingTime: 60, MinPlayTime: 30, MaxPlayTime: 60, Mechanics: []string{"Set Collection", "Route Building"},
		Categories: []string{"Trains"}, AverageRating: 7.4, Weight: 1.8,
		Description: "Claim railway routes across North America."},
}

func (s *Server) handleGameSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "query is required"})
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultSearchLimit
	}

	hits := []gameSummary{}
	for _, g := range s.games {
		if len(hits) == limit {
			break
		}
		if strings.Contains(strings.ToLower(g.Name), query) || strings.Contains(g.NameKorean, query) {
			hits = append(hits, gameSummary{BggID: g.BggID, Name: g.Name, YearPublished: g.YearPublished})
		}
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK", Data: hits})
}

func (s *Server) handleGameDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("bggId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid bggId"})
		return
	}
	for _, g := range s.games {
		if g.BggID == id {
			writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK", Data: g})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, envelope{Status: http.StatusNotFound, Message: "game not found"})
}

func (s *Server) gameName(id int64) string {
	for _, g := range s.games {
		if g.BggID == id {
			return g.Name
		}
	}
	return "Game " + strconv.FormatInt(id, 10)
}
