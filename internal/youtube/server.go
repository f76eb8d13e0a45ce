package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ibeckermayer/hopperbot/internal/update"
)

const maxNotificationSize = 1 << 20

// Enqueuer accepts updates for publishing
type Enqueuer interface {
	Enqueue(u update.Update) bool
}

// Handler is the WebSub callback endpoint
type Handler struct {
	queue    Enqueuer
	channels map[string]bool
	parser   *gofeed.Parser
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewHandler creates a callback handler accepting notifications for the
// given channels only.
func NewHandler(queue Enqueuer, channels []string, logger *slog.Logger) *Handler {
	h := &Handler{
		queue:    queue,
		channels: make(map[string]bool, len(channels)),
		parser:   gofeed.NewParser(),
		logger:   logger,
		seen:     make(map[string]bool),
	}
	for _, id := range channels {
		h.channels[id] = true
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerify(w, r)
	case http.MethodPost:
		h.handleNotify(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerify answers the hub's intent verification by echoing the challenge.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge := q.Get("hub.challenge")
	if challenge == "" {
		http.Error(w, "missing hub.challenge", http.StatusBadRequest)
		return
	}

	h.logger.Info("websub verification",
		"mode", q.Get("hub.mode"),
		"topic", q.Get("hub.topic"),
		"lease_seconds", q.Get("hub.lease_seconds"),
	)

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	updates, err := ParseNotification(h.parser, io.LimitReader(r.Body, maxNotificationSize))
	if err != nil {
		h.logger.Warn("dropping websub notification", "error", err)
		http.Error(w, "bad notification", http.StatusBadRequest)
		return
	}

	for _, u := range updates {
		logger := h.logger.With(u.LogAttrs()...)
		if len(h.channels) > 0 && !h.channels[u.ChannelID] {
			logger.Warn("notification for unconfigured channel")
			continue
		}
		if !h.markSeen(u.VideoID) {
			logger.Debug("video already queued, ignoring edit notification")
			continue
		}
		if !h.queue.Enqueue(u) {
			logger.Warn("queue closed, dropping video")
			continue
		}
		logger.Info("video queued", "title", u.Title)
	}

	w.WriteHeader(http.StatusNoContent)
}

// markSeen reports whether the video is new. Hubs notify again when a
// video's metadata changes.
func (h *Handler) markSeen(videoID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen[videoID] {
		return false
	}
	h.seen[videoID] = true
	return true
}

// Server serves the callback handler until its context is cancelled
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server listening on addr
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/websub", handler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until ctx is done or the listener fails
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websub server", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("failed to shut down websub server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("websub server failed: %w", err)
	}
}
