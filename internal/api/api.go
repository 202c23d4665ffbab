// Package api provides the small HTTP surface of PostForge: health and
// status endpoints for operators, and short-lived hosting of generated
// images so URL-based transports (Twilio) can deliver them.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for the API server.
const (
	DefaultAddr = ":8080"
	// DefaultMediaTTL is how long a published image stays downloadable.
	DefaultMediaTTL = 30 * time.Minute
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr          string
	PublicBaseURL string // external base URL used in published media links
	MediaTTL      time.Duration
	Health        func(ctx context.Context) error // generation backend check
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPublicBaseURL sets the externally reachable base URL for media links.
func WithPublicBaseURL(u string) Option {
	return func(o *Opts) { o.PublicBaseURL = strings.TrimSuffix(u, "/") }
}

// WithMediaTTL overrides how long published media stays available.
func WithMediaTTL(d time.Duration) Option {
	return func(o *Opts) { o.MediaTTL = d }
}

// WithHealthChecker sets the check /status uses to report whether the
// generation backend is reachable.
func WithHealthChecker(fn func(ctx context.Context) error) Option {
	return func(o *Opts) { o.Health = fn }
}

// mediaItem is one hosted image.
type mediaItem struct {
	data     []byte
	mimeType string
	expires  time.Time
}

// Server is the PostForge HTTP server.
type Server struct {
	addr    string
	baseURL string
	ttl     time.Duration
	health  func(ctx context.Context) error
	started time.Time
	srv     *http.Server

	mu    sync.RWMutex
	media map[string]mediaItem
}

// NewServer builds the API server.
func NewServer(opts ...Option) *Server {
	cfg := Opts{
		Addr:     DefaultAddr,
		MediaTTL: DefaultMediaTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost" + cfg.Addr
	}
	slog.Debug("API NewServer invoked", "addr", cfg.Addr, "baseURL", cfg.PublicBaseURL)
	return &Server{
		addr:    cfg.Addr,
		baseURL: cfg.PublicBaseURL,
		ttl:     cfg.MediaTTL,
		health:  cfg.Health,
		media:   make(map[string]mediaItem),
	}
}

// Publish hosts image bytes under a fresh ID and returns their public URL.
// Items expire after the configured TTL.
func (s *Server) Publish(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("media data cannot be empty")
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.media[id] = mediaItem{data: data, mimeType: mimeType, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	slog.Debug("API published media", "id", id, "size", len(data))
	return s.baseURL + "/media/" + id, nil
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/media/", s.mediaHandler)

	s.started = time.Now()
	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "error", err)
		}
	}()
	go s.expireLoop(ctx)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	slog.Info("API server shutting down")
	return s.srv.Shutdown(ctx)
}

// expireLoop drops expired media periodically.
func (s *Server) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, item := range s.media {
				if now.After(item.expires) {
					delete(s.media, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusHandler reports uptime, hosted media, and whether the generation
// backend answers a health request.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	mediaCount := len(s.media)
	s.mu.RUnlock()

	generation := "unconfigured"
	if s.health != nil {
		checkCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.health(checkCtx); err != nil {
			slog.Warn("API status health check failed", "error", err)
			generation = "unavailable"
		} else {
			generation = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "postforge",
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"hosted_media": mediaCount,
		"generation":   generation,
	})
}

func (s *Server) mediaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/media/")
	s.mu.RLock()
	item, ok := s.media[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(item.expires) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", item.mimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(item.data)
}

// writeJSON marshals the response before touching headers so encoding
// errors do not produce half-written responses.
func writeJSON(w http.ResponseWriter, statusCode int, response any) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("API failed to marshal JSON response", "error", err)
		statusCode = http.StatusInternalServerError
		jsonData = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonData)
}
