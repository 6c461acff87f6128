// Package server exposes XenoScript sessions over Connect (HTTP/JSON)
// and editor features over LSP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/store"
)

var log = commonlog.GetLogger("xeno.server")

// XenoServer serves the execution service on one HTTP mux.
type XenoServer struct {
	worker   *Worker
	sessions *SessionStore
	mux      *http.ServeMux
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a XenoServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	provenance    graph.Provenance
	sweepInterval time.Duration
	sessionTTL    time.Duration
	autosave      bool
}

// WithProvenance sets the provenance of sessions that don't ask for one.
func WithProvenance(p graph.Provenance) ServerOption {
	return func(c *serverConfig) { c.provenance = p }
}

// WithSessionTTL closes sessions idle for longer than ttl, checking every
// interval (every ttl when interval is not positive). A zero ttl disables
// the sweeper.
func WithSessionTTL(interval, ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.sessionTTL = ttl
	}
}

// WithAutosave saves expired sessions before dropping them.
func WithAutosave(on bool) ServerOption {
	return func(c *serverConfig) { c.autosave = on }
}

// New creates a XenoServer backed by st, which may be nil.
func New(st store.Store, opts ...ServerOption) *XenoServer {
	cfg := &serverConfig{
		provenance:    graph.Organic,
		sweepInterval: 5 * time.Minute,
		sessionTTL:    30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &XenoServer{
		worker:   NewWorker(),
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
	}

	svc := NewExecService(s.worker, s.sessions, st, cfg.provenance)
	for path, h := range svc.Handlers() {
		s.mux.Handle(path, h)
	}

	if cfg.sessionTTL > 0 {
		s.stopSweeper = s.sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL, func(sess *Session) {
			if cfg.autosave && st != nil {
				res, err := s.worker.Do(func() interface{} {
					return sess.Save(context.Background(), sess.Namespace())
				})
				if err == nil {
					err, _ = res.(error)
				}
				if err != nil {
					log.Errorf("autosave %s: %s", sess.ID, err)
				}
			}
			log.Infof("session %s expired", sess.ID)
		})
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *XenoServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr ("host:port" or ":port") until Stop.
func (s *XenoServer) ListenAndServe(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.mux}
	log.Noticef("XenoScript server listening on %s", addr)
	log.Noticef("  Connect (HTTP/JSON): http://%s%s", addr, ExecuteProcedure)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the HTTP server, the sweeper and the worker.
func (s *XenoServer) Stop() {
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			log.Warningf("shutdown: %s", err)
		}
	}
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.worker.Stop()
}
