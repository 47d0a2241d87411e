package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	filterDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	monitorDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/domain"
	taskDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	sloghttp "github.com/samber/slog-http"
)

const defaultMatchLimit = 50

// Monitor is the orchestrator surface served over HTTP
type Monitor interface {
	Policy() filterDomain.Policy
	Channels() []monitorDomain.ChannelStatus
	Stats() monitorDomain.Stats
	SubmitTest(ctx context.Context, msg monitorDomain.TestMessage) (monitorDomain.Outcome, error)
}

// Tasks is the scheduler surface served over HTTP
type Tasks interface {
	ListPending() []taskDomain.DelayedTask
	Get(id string) (taskDomain.DelayedTask, bool)
	Cancel(id string) bool
}

// Feeds generates RSS feeds of forwarded matches
type Feeds interface {
	GenerateFeed(baseURL string) (*feeds.Feed, error)
	GenerateChannelFeed(channelID string, baseURL string) (*feeds.Feed, error)
}

// Archive lists forwarded matches
type Archive interface {
	RecentMatches(limit int) ([]*messageDomain.Match, error)
	MatchesSince(since time.Time) ([]*messageDomain.Match, error)
}

// CodeSubmitter accepts MTProto login codes
type CodeSubmitter interface {
	SubmitCode(ctx context.Context, code string) error
}

// Options holds the server dependencies. Codes may be nil when the source
// does not log in with a code.
type Options struct {
	Port    string
	Monitor Monitor
	Tasks   Tasks
	Feeds   Feeds
	Archive Archive
	Codes   CodeSubmitter
	Logger  *slog.Logger
}

// Server exposes the monitor state, task control and match feeds
type Server struct {
	opts   Options
	logger *slog.Logger
	server *http.Server
}

// New creates a new HTTP server
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:   opts,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with logging and recovery middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/policy", s.handlePolicy)
	mux.HandleFunc("GET /api/channels", s.handleChannels)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleCancelTask)
	mux.HandleFunc("POST /api/test-message", s.handleTestMessage)
	mux.HandleFunc("GET /api/matches", s.handleMatches)
	mux.HandleFunc("POST /api/auth/code", s.handleAuthCode)
	mux.HandleFunc("GET /rss", s.handleRSSFeed)
	mux.HandleFunc("GET /rss/{channelID}", s.handleChannelRSSFeed)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	handler := sloghttp.Recovery(mux)
	handler = sloghttp.New(s.logger)(handler)
	return handler
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.opts.Monitor.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": stats.Running,
		"mode":    stats.Mode,
	})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Monitor.Policy())
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Monitor.Channels())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Monitor.Stats())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Tasks.ListPending())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, ok := s.opts.Tasks.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, apperrors.ErrTaskNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.opts.Tasks.Cancel(id) {
		writeError(w, http.StatusNotFound, apperrors.ErrTaskNotFound.Error())
		return
	}
	s.logger.Info("Task cancelled over HTTP", "task_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"cancelled": id})
}

func (s *Server) handleTestMessage(w http.ResponseWriter, r *http.Request) {
	var msg monitorDomain.TestMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	outcome, err := s.opts.Monitor.SubmitTest(r.Context(), msg)
	if err != nil {
		s.logger.Error("Test message failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrDelivery) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		matches, err := s.opts.Archive.MatchesSince(since)
		s.writeMatches(w, matches, err)
		return
	}

	limit := defaultMatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	matches, err := s.opts.Archive.RecentMatches(limit)
	s.writeMatches(w, matches, err)
}

func (s *Server) writeMatches(w http.ResponseWriter, matches []*messageDomain.Match, err error) {
	if err != nil {
		s.logger.Error("Error listing matches", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	if matches == nil {
		matches = []*messageDomain.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleAuthCode(w http.ResponseWriter, r *http.Request) {
	if s.opts.Codes == nil {
		writeError(w, http.StatusNotFound, "login codes are only used by the mtproto source")
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.opts.Codes.SubmitCode(r.Context(), body.Code); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConfiguration):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, apperrors.ErrNotFound):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleRSSFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := s.opts.Feeds.GenerateFeed(baseURL(r))
	if err != nil {
		s.logger.Error("Error generating feed", "error", err)
		http.Error(w, "Failed to generate feed", http.StatusInternalServerError)
		return
	}
	s.writeRSS(w, feed)
}

func (s *Server) handleChannelRSSFeed(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channelID")
	if channelID == "" {
		http.Error(w, "Channel ID is required", http.StatusBadRequest)
		return
	}

	feed, err := s.opts.Feeds.GenerateChannelFeed(channelID, baseURL(r))
	if err != nil {
		s.logger.Error("Error generating feed", "channel_id", channelID, "error", err)
		http.Error(w, "Failed to generate feed", http.StatusInternalServerError)
		return
	}
	s.writeRSS(w, feed)
}

func (s *Server) writeRSS(w http.ResponseWriter, feed *feeds.Feed) {
	rss, err := feed.ToRss()
	if err != nil {
		s.logger.Error("Error converting feed to RSS", "error", err)
		http.Error(w, "Failed to generate RSS", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rss))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Telegram Keyword Monitor</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        .info { background: #f5f5f5; padding: 15px; border-radius: 5px; margin: 20px 0; }
        code { background: #e8e8e8; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>Telegram Keyword Monitor</h1>
    <div class="info">
        <p>Messages matching the configured keywords are forwarded and archived.</p>
        <p>All matches: <code>/rss</code>, one channel: <code>/rss/{channelID}</code></p>
        <p>Status: <code>/api/stats</code>, <code>/api/channels</code>, <code>/api/tasks</code></p>
    </div>
    <p><a href="/health">Health Check</a></p>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func baseURL(r *http.Request) string {
	return fmt.Sprintf("%s://%s", getScheme(r), r.Host)
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
