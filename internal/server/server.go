// SPDX-License-Identifier: MIT

// Package server exposes the live detection state over HTTP:
//
//	/ws       WebSocket stream of status records
//	/status   last status as JSON
//	/health   liveness and loop summary
//	/metrics  Prometheus exposition
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/log"
	"dronewatch/internal/recovery"

	"github.com/gorilla/mux"
)

// StatusProvider returns the last status and whether one exists.
type StatusProvider interface {
	Get() (detect.Status, bool)
	Detections() uint64
}

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveRequest(method, route string, code int, took time.Duration)
}

// Options selects the endpoints to mount. Nil fields leave their route out.
type Options struct {
	Address   string
	Version   string
	WebSocket http.Handler
	Metrics   http.Handler
	Status    StatusProvider
	Observer  RequestObserver
}

// Server is the status HTTP server.
type Server struct {
	opts    Options
	router  *mux.Router
	httpSrv *http.Server
	started time.Time

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
	serveErr error
}

// New builds the router. Call Start to listen.
func New(opts Options) *Server {
	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	s.setupRoutes()
	s.httpSrv = &http.Server{
		Addr:              opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	if s.opts.Status != nil {
		s.router.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	}
	if s.opts.WebSocket != nil {
		s.router.Handle("/ws", s.opts.WebSocket)
	}
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves on a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.opts.Address, err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer recovery.HandlePanic()
		err := s.httpSrv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server: Serve failed: %v", err)
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()

	log.Infof("Server: Listening on http://%s (/ws, /status, /health, /metrics)", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting requests and waits for active ones until ctx
// expires. Hijacked WebSocket connections are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	s.httpSrv.SetKeepAlivesEnabled(false)
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}
	<-done
	log.Infof("Server: Stopped")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

type healthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	LastSeq    uint64    `json:"last_seq"`
	Detections uint64    `json:"detections"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.opts.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Status != nil {
		if last, ok := s.opts.Status.Get(); ok {
			resp.LastSeq = last.Sequence
		}
		resp.Detections = s.opts.Status.Detections()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status, ok := s.opts.Status.Get()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no status yet"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Server: Encoding response failed: %v", err)
	}
}

// statusRecorder captures the response code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the WebSocket upgrader reach the
// underlying Hijacker.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Observer == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.opts.Observer.ObserveRequest(r.Method, route, rec.code, time.Since(start))
	})
}
