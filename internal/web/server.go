// Package web maps HTTP requests onto the session store, the query
// gateway, and the push broadcaster. It is the sole translator from
// gateway failure kinds to response status codes.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/wadash/backend/internal/config"
	"github.com/wadash/backend/internal/diag"
	"github.com/wadash/backend/internal/gateway"
	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/stream"
)

const maxSendBody = 64 << 10

type Server struct {
	cfg         *config.Config
	store       *session.Store
	broadcaster *stream.Broadcaster
	gw          *gateway.Gateway
	collector   *diag.Collector
	frontend    http.Handler
}

func NewServer(cfg *config.Config, store *session.Store, broadcaster *stream.Broadcaster, gw *gateway.Gateway, collector *diag.Collector, frontend http.Handler) *Server {
	return &Server{
		cfg:         cfg,
		store:       store,
		broadcaster: broadcaster,
		gw:          gw,
		collector:   collector,
		frontend:    frontend,
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/chats", s.handleChats)
	mux.HandleFunc("/api/chats/", s.handleChatRoutes)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/health", s.handleHealth)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		notFound(w)
		return
	}
	if s.frontend == nil {
		notFound(w)
		return
	}
	s.frontend.ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, &snap)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}
	chats, err := s.gw.ListChats(r.Context(), s.cfg.Dashboard.MaxChats)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

// handleChatRoutes parses /api/chats/{chatId}/messages.
func (s *Server) handleChatRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		notFound(w)
		return
	}
	chatID, err := url.PathUnescape(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	limit := gateway.ParseLimit(r.URL.Query().Get("limit"))
	chat, msgs, err := s.gw.History(r.Context(), chatID, limit)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat": chat, "messages": msgs})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		notFound(w)
		return
	}

	var body struct {
		ChatID  string `json:"chatId"`
		Message string `json:"message"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSendBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	msg, err := s.gw.Send(r.Context(), body.ChatID, body.Message)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}
	snap := s.collector.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"uptimeSeconds": snap.UptimeSeconds,
		"rssBytes":      snap.RSSBytes,
		"cpuPercent":    snap.CPUPercent,
		"goroutines":    snap.Goroutines,
		"subscribers":   s.broadcaster.SubscriberCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not found")
}

// writeGatewayError maps gateway failure kinds to status codes. Chat
// resolution failures are folded into 500 with the other upstream
// failures; see DESIGN.md.
func writeGatewayError(w http.ResponseWriter, err error) {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case gateway.KindNotReady:
			writeError(w, http.StatusConflict, gerr.Message)
			return
		case gateway.KindInvalidInput:
			writeError(w, http.StatusBadRequest, gerr.Message)
			return
		case gateway.KindNotFound, gateway.KindUpstream:
			writeError(w, http.StatusInternalServerError, gerr.Message)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
