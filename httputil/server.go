// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bvk/unitbot/syncmap"
	"github.com/google/uuid"
)

type Options struct {
	// ReadyTimeout limits the time to wait for a started listener to serve
	// requests.
	ReadyTimeout time.Duration

	// ReadyRetryInterval is the wait between readiness checks.
	ReadyRetryInterval time.Duration

	// ReadHeaderTimeout limits the time to read request headers.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout limits the time Stop waits for active requests to
	// finish before closing their connections.
	ShutdownTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.ReadyTimeout == 0 {
		v.ReadyTimeout = 10 * time.Second
	}
	if v.ReadyRetryInterval == 0 {
		v.ReadyRetryInterval = 100 * time.Millisecond
	}
	if v.ReadHeaderTimeout == 0 {
		v.ReadHeaderTimeout = 10 * time.Second
	}
	if v.ShutdownTimeout == 0 {
		v.ShutdownTimeout = 5 * time.Second
	}
}

func (v *Options) Check() error {
	if v.ReadyTimeout < 0 || v.ReadyRetryInterval < 0 || v.ReadHeaderTimeout < 0 || v.ShutdownTimeout < 0 {
		return fmt.Errorf("http server timeouts cannot be negative: %w", os.ErrInvalid)
	}
	if v.ReadyRetryInterval > v.ReadyTimeout {
		return fmt.Errorf("ready retry interval cannot exceed the ready timeout: %w", os.ErrInvalid)
	}
	return nil
}

// Server serves a dynamic set of handlers on one or more TCP listeners.
// Handlers can be added and removed while the listeners are active.
type Server struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup

	opts Options

	nextID  atomic.Int64
	servers syncmap.Map[int64, *http.Server]

	mux atomic.Pointer[http.ServeMux]

	mu       sync.Mutex
	handlers map[string]http.Handler
}

func New(opts *Options) (*Server, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	s := &Server{
		ctx:      ctx,
		cancel:   cancel,
		opts:     *opts,
		handlers: make(map[string]http.Handler),
	}
	s.mux.Store(http.NewServeMux())
	return s, nil
}

// Close closes all listeners immediately.
func (s *Server) Close() error {
	s.cancel(os.ErrClosed)
	s.servers.Range(func(id int64, svr *http.Server) bool {
		svr.Close()
		return true
	})
	s.wg.Wait()
	return nil
}

// StartTCP serves on the address and returns after the listener has served a
// readiness request. A zero port in addr is updated with the chosen port.
func (s *Server) StartTCP(ctx context.Context, addr *net.TCPAddr) (id int64, status error) {
	l, err := net.Listen("tcp", addr.String())
	if err != nil {
		return -1, err
	}
	defer func() {
		if status != nil {
			l.Close()
		}
	}()

	if addr.Port == 0 {
		laddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			return -1, fmt.Errorf("listener address %v is not a tcp address", l.Addr())
		}
		addr.Port = laddr.Port
	}

	readyPath := "/" + uuid.New().String()
	s.AddHandler(readyPath, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		slog.Debug("http listener is ready", "addr", addr, "remote", r.RemoteAddr)
	}))
	defer s.RemoveHandler(readyPath)

	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
	defer func() {
		if status != nil {
			server.Close()
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("CAUGHT PANIC", "panic", r)
				slog.Error(string(debug.Stack()))
				panic(r)
			}
		}()

		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server failed", "addr", addr, "err", err)
		}
	}()

	u := url.URL{Scheme: "http", Host: l.Addr().String(), Path: readyPath}
	if err := s.waitReady(ctx, u.String()); err != nil {
		return -1, fmt.Errorf("http server on %s is not ready: %w", addr, err)
	}

	id = s.nextID.Add(1) - 1
	s.servers.Store(id, server)
	return id, nil
}

func (s *Server) waitReady(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ReadyTimeout)
	defer cancel()

	client := &http.Client{Timeout: s.opts.ReadyTimeout}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-s.ctx.Done():
			return context.Cause(s.ctx)
		case <-time.After(s.opts.ReadyRetryInterval):
		}
	}
}

// Stop stops the listener with the given id. Active requests are given up to
// the shutdown timeout to finish.
func (s *Server) Stop(id int64) error {
	svr, ok := s.servers.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("http server %d not found: %w", id, os.ErrNotExist)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Warn("http server did not shutdown gracefully", "id", id, "err", err)
		return svr.Close()
	}
	return nil
}

// AddHandler registers the handler for the pattern, replacing any previous
// handler for the same pattern.
func (s *Server) AddHandler(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[pattern] = handler
	s.rebuildMux()
}

func (s *Server) RemoveHandler(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[pattern]; !ok {
		return false
	}
	delete(s.handlers, pattern)
	s.rebuildMux()
	return true
}

// rebuildMux replaces the mux because http.ServeMux cannot unregister
// patterns.
func (s *Server) rebuildMux() {
	m := http.NewServeMux()
	for k, v := range s.handlers {
		m.Handle(k, v)
	}
	s.mux.Store(m)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.Load().ServeHTTP(w, r)
}
