// Package server exposes the jcl pipeline over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/nevindra/jcl"
)

const defaultMaxBodyBytes = 1 << 20 // 1MB

// Server routes HTTP requests to a Pipeline and, when configured, a
// HistoryStore.
type Server struct {
	pipeline *jcl.Pipeline
	history  jcl.HistoryStore
	sem      chan struct{}
	maxBody  int64
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves GET /runs and GET /runs/{id} from h.
func WithHistory(h jcl.HistoryStore) Option {
	return func(s *Server) { s.history = h }
}

// WithMaxConcurrent caps in-flight /run requests. Requests over the cap get
// 503 immediately. n <= 0 means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// WithMaxBodyBytes limits request bodies. Default: 1MB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithLogger sets the structured logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server for p.
func New(p *jcl.Pipeline, opts ...Option) *Server {
	s := &Server{pipeline: p, maxBody: defaultMaxBodyBytes}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /transpile", s.handleTranspile)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /{$}", handleHealth)
	return mux
}

// acquire takes an execution slot without waiting. The returned release
// must be called when ok is true.
func (s *Server) acquire() (release func(), ok bool) {
	if s.sem == nil {
		return func() {}, true
	}
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, true
	default:
		return nil, false
	}
}
