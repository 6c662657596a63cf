// Package devserver is a scripted stand-in for the BoardMate chat API. Frames,
// envelopes and auth follow the real backend's wire format.
package devserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const maxMessageLength = 1000

// Script is how the server answers one chat message.
type Script struct {
	Fragments []string
	// Status other than 0 or 200 fails the request before streaming.
	Status int
	// Error, when set, is sent as an error frame after the fragments.
	Error string
	// OmitDone ends the body without a done frame.
	OmitDone bool
}

// Replier picks the script for a message sent to assistant ("sommelier" or "rulemaster").
type Replier func(assistant, message string) Script

type Options struct {
	// Token is the required bearer credential. Empty accepts any request.
	Token string
	// Delay is the pause between frames.
	Delay time.Duration
	Reply Replier
	// Games is the catalog for game search and detail. Empty uses DefaultGames.
	Games []Game
}

type message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type conversation struct {
	BggID    int64     `json:"bggId"`
	GameName string    `json:"gameName"`
	Messages []message `json:"messages"`
}

type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Server struct {
	opts  Options
	mux   *http.ServeMux
	games []Game

	mu        sync.Mutex
	sommelier map[string][]message
	rules     map[int64][]message
}

func New(opts Options) *Server {
	if opts.Reply == nil {
		opts.Reply = EchoReply
	}
	if len(opts.Games) == 0 {
		opts.Games = DefaultGames
	}
	s := &Server{
		opts:      opts,
		games:     opts.Games,
		mux:       http.NewServeMux(),
		sommelier: make(map[string][]message),
		rules:     make(map[int64][]message),
	}
	s.mux.HandleFunc("POST /api/sommelier/chat", s.handleSommelierChat)
	s.mux.HandleFunc("GET /api/sommelier/history/{sessionId}", s.handleSommelierHistory)
	s.mux.HandleFunc("DELETE /api/sommelier/history/{sessionId}", s.handleSommelierClear)
	s.mux.HandleFunc("POST /api/rulemaster/chat", s.handleRuleMasterChat)
	s.mux.HandleFunc("GET /api/rulemaster/conversations", s.handleRuleMasterHistory)
	s.mux.HandleFunc("DELETE /api/rulemaster/conversations", s.handleRuleMasterClear)
	s.mux.HandleFunc("GET /api/rulemaster/games/search", s.handleGameSearch)
	s.mux.HandleFunc("GET /api/rulemaster/games/{bggId}", s.handleGameDetail)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: http.StatusUnauthorized, Message: "Unauthorized"})
		return
	}
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("duration", time.Since(start)).
		Msg("devserver request")
}

// EchoReply answers with the message split into word fragments.
func EchoReply(assistant, msg string) Script {
	words := strings.Fields("You asked the " + assistant + ": " + msg)
	frags := make([]string, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		frags[i] = w
	}
	return Script{Fragments: frags}
}

func (s *Server) handleSommelierChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if !decodeChat(w, r, &req, &req.Message) {
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "sessionId is required"})
		return
	}

	reply, ok := s.stream(w, r, "sommelier", req.Message, sommelierDialect{})
	if ok {
		s.mu.Lock()
		s.sommelier[req.SessionID] = append(s.sommelier[req.SessionID], turn(req.Message, reply)...)
		s.mu.Unlock()
	}
}

func (s *Server) handleSommelierHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	history := append([]message{}, s.sommelier[r.PathValue("sessionId")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK", Data: history})
}

func (s *Server) handleSommelierClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.sommelier, r.PathValue("sessionId"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK"})
}

func (s *Server) handleRuleMasterChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BggID   *int64 `json:"bggId"`
		Message string `json:"message"`
	}
	if !decodeChat(w, r, &req, &req.Message) {
		return
	}
	if req.BggID == nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "bggId is required"})
		return
	}

	reply, ok := s.stream(w, r, "rulemaster", req.Message, ruleMasterDialect{})
	if ok {
		s.mu.Lock()
		s.rules[*req.BggID] = append(s.rules[*req.BggID], turn(req.Message, reply)...)
		s.mu.Unlock()
	}
}

func (s *Server) handleRuleMasterHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := bggID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	msgs, found := s.rules[id]
	msgs = append([]message{}, msgs...)
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK", Data: conversation{
		BggID:    id,
		GameName: s.gameName(id),
		Messages: msgs,
	}})
}

func (s *Server) handleRuleMasterClear(w http.ResponseWriter, r *http.Request) {
	id, ok := bggID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.rules, id)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "OK"})
}

func decodeChat(w http.ResponseWriter, r *http.Request, req any, msg *string) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid request body"})
		return false
	}
	if strings.TrimSpace(*msg) == "" || utf8.RuneCountInString(*msg) > maxMessageLength {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "message must be 1-1000 characters"})
		return false
	}
	return true
}

func bggID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("bggId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "bggId is required"})
		return 0, false
	}
	return id, true
}

func turn(question, answer string) []message {
	now := time.Now().Format("2006-01-02T15:04:05")
	return []message{
		{Role: "user", Content: question, Timestamp: now},
		{Role: "assistant", Content: answer, Timestamp: now},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
