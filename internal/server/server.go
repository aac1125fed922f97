// Package server exposes the Routevox HTTP surface: the WebSocket voice
// session endpoint, route and package management, session inspection, and
// the operational probes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/routevox/routevox/internal/analytics"
	"github.com/routevox/routevox/internal/brain"
	"github.com/routevox/routevox/internal/config"
	"github.com/routevox/routevox/internal/health"
	"github.com/routevox/routevox/internal/observe"
	"github.com/routevox/routevox/internal/route"
	"github.com/routevox/routevox/internal/session"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 15 * time.Second

// Deps holds the shared application state behind the HTTP surface.
type Deps struct {
	Config  *config.Config
	Version string

	Stops    *route.StopList
	Packages *route.PackageStore
	Aliases  brain.AliasStore

	// Sink is the durable analytics sink shared by all sessions. May be nil.
	Sink analytics.Sink

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Checkers are extra readiness probes (alias DB, analytics pool).
	Checkers []health.Checker
}

// Server routes HTTP traffic and tracks the live voice sessions spawned from
// WebSocket connections. All exported methods are safe for concurrent use.
type Server struct {
	cfg      *config.Config
	stops    *route.StopList
	packages *route.PackageStore
	aliases  brain.AliasStore
	sink     analytics.Sink
	metrics  *observe.Metrics
	probes   *health.Handler

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a Server. Call [Server.Run] to start serving.
func New(deps Deps) *Server {
	m := deps.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Server{
		cfg:      deps.Config,
		stops:    deps.Stops,
		packages: deps.Packages,
		aliases:  deps.Aliases,
		sink:     deps.Sink,
		metrics:  m,
		probes:   health.New(deps.Version, deps.Checkers...),
		sessions: make(map[string]*session.Session),
	}
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.probes.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /session/ws", s.handleSessionWS)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions/{id}/pause", s.sessionAction((*session.Session).Pause))
	mux.HandleFunc("POST /sessions/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /sessions/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /sessions/{id}/choose", s.handleChoose)
	mux.HandleFunc("GET /sessions/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)

	mux.HandleFunc("GET /route", s.handleGetRoute)
	mux.HandleFunc("PUT /route", s.handlePutRoute)
	mux.HandleFunc("GET /packages", s.handleListPackages)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Server.ListenAddr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", s.cfg.Server.ListenAddr)
		var err error
		if tls := s.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.endAllSessions()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// rebuildBrains swaps a freshly built brain into every live session. Called
// whenever the stop list is replaced; predictions in flight stay valid
// because commits re-resolve by ID.
func (s *Server) rebuildBrains() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.SetBrain(s.newBrain())
	}
}

// newBrain builds a RouteBrain over the current stop list snapshot with the
// configured matching thresholds.
func (s *Server) newBrain() *brain.RouteBrain {
	return brain.New(s.stops.Stops(), s.aliases,
		brain.WithCutoff(s.cfg.Matching.Cutoff),
		brain.WithPhoneticThreshold(s.cfg.Matching.PhoneticThreshold),
		brain.WithFuzzyThreshold(s.cfg.Matching.FuzzyThreshold),
	)
}

// lookup returns the live session with the given ID.
func (s *Server) lookup(id string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// track registers a session for the inspection endpoints; the returned func
// removes it again when the connection ends.
func (s *Server) track(sess *session.Session) func() {
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
	}
}

// endAllSessions closes every live session during shutdown.
func (s *Server) endAllSessions() {
	s.mu.Lock()
	live := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		sess.End()
	}
}
