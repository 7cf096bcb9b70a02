// Package server is the HTTP front end: a small web page, JSON and
// streaming summarization routes, and per-session history.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"summarizer-agents/history"
	"summarizer-agents/ratelimiter"
	"summarizer-agents/summarizer"

	"github.com/charmbracelet/log"
	"github.com/invopop/jsonschema"
)

const (
	sessionCookie   = "session_id"
	maxRequestBody  = 1 << 20
	shutdownTimeout = 5 * time.Second
)

//go:embed templates/index.html
var templatesFS embed.FS

// SummarizeRequest is the body of the summarization routes and the first
// message of a WebSocket session.
type SummarizeRequest struct {
	Text  string `json:"text" jsonschema_description:"Text to summarize"`
	Agent string `json:"agent" jsonschema_description:"Display name of the agent, as listed by /agents"`
}

// SummarizeResponse is returned by POST /summarize.
type SummarizeResponse struct {
	Success     bool   `json:"success"`
	Summary     string `json:"summary"`
	Agent       string `json:"agent"`
	RequestID   string `json:"request_id"`
	TextLength  int    `json:"text_length"`
	InputTokens int    `json:"input_tokens"`
}

// Config configures a Server.
type Config struct {
	Service           *summarizer.Service
	History           history.Store
	RequestsPerMinute int
	Logger            *log.Logger
}

type Server struct {
	service *summarizer.Service
	history history.Store
	limiter *ratelimiter.Keyed
	logger  *log.Logger
	index   *template.Template
	schema  []byte
}

// New creates a Server. Each client address gets a budget of
// cfg.RequestsPerMinute across the summarization routes.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}

	index, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema, err := json.MarshalIndent(reflector.Reflect(SummarizeRequest{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal request schema: %w", err)
	}

	return &Server{
		service: cfg.Service,
		history: cfg.History,
		limiter: ratelimiter.NewKeyed(cfg.RequestsPerMinute),
		logger:  cfg.Logger,
		index:   index,
		schema:  schema,
	}, nil
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /schema/summarize", s.handleSchema)
	mux.HandleFunc("POST /summarize", s.throttle(s.handleSummarize))
	mux.HandleFunc("POST /summarize_stream", s.throttle(s.handleSummarizeStream))
	mux.HandleFunc("GET /ws/summarize", s.throttle(s.handleSummarizeWS))
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /clear_history", s.handleClearHistory)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("Server is listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down")
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the request limiter.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) throttle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			s.logger.Warn("Request throttled", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}

// clientKey identifies the caller for throttling by address, without port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
