// Package server accepts transfer connections and exposes the admin surface.
//
// Every connection carries exactly one request and one response. A
// multi-chunk upload is many connections; the session store is what ties
// them together.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/sealdrop/internal/dispatch"
	"github.com/danmuck/sealdrop/internal/observability"
	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/danmuck/sealdrop/internal/protocol/frame"
	"github.com/danmuck/sealdrop/internal/session"
	"github.com/danmuck/sealdrop/internal/storage"
	"github.com/rs/zerolog/log"
)

// Service owns the listener, the client registry and the storage backend.
type Service struct {
	cfg        Config
	store      session.Store
	files      storage.Backend
	dispatcher *dispatch.Dispatcher

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	activeClients atomic.Int64
	listening     atomic.Bool
	started       time.Time
}

// NewService opens the configured storage backend and an empty registry.
func NewService(cfg Config) (*Service, error) {
	cfg = cfg.WithDefaults()
	files, err := storage.Open(cfg.StorageBackend, cfg.StorageRoot)
	if err != nil {
		return nil, err
	}
	return NewServiceWith(cfg, session.NewMemoryStore(), files), nil
}

// NewServiceWith wires explicit collaborators. opts are passed to the
// dispatcher.
func NewServiceWith(cfg Config, store session.Store, files storage.Backend, opts ...dispatch.Option) *Service {
	observability.RegisterMetrics()
	return &Service{
		cfg:        cfg.WithDefaults(),
		store:      store,
		files:      files,
		dispatcher: dispatch.New(store, files, opts...),
		conns:      make(map[net.Conn]struct{}),
		started:    time.Now(),
	}
}

func (s *Service) Store() session.Store {
	return s.store
}

func (s *Service) Files() storage.Backend {
	return s.files
}

// Run listens on the configured address and blocks until SIGINT or SIGTERM.
// A bind failure is returned without retry.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := Listen(ctx, s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Str("storage", s.cfg.StorageBackend).Msg("sealdrop listening")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

// Listen binds a TCP listener with SO_REUSEADDR set.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	return lc.Listen(ctx, "tcp", addr)
}

// Serve runs the accept loop on ln until ctx is done.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	s.listening.Store(true)
	defer s.listening.Store(false)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.activeClients.Add(1)
	observability.ConnOpened()
	log.Debug().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.activeClients.Add(-1)
		observability.ConnClosed()
		log.Debug().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	start := time.Now()
	code, resp := s.serveOne(bufio.NewReaderSize(conn, frame.PacketSize), remote)
	observability.RecordWireRequest(code, resp.Code().String(), time.Since(start))

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := frame.WriteResponse(conn, resp); err != nil {
		log.Warn().Str("remote", remote).Err(err).Msg("write response")
	}
}

// serveOne reads and answers a single request. The first return value labels
// the request for metrics.
func (s *Service) serveOne(r *bufio.Reader, remote string) (string, protocol.Response) {
	h, payload, err := frame.ReadRequest(r, s.cfg.Limits)
	if err != nil {
		log.Warn().Str("remote", remote).Err(err).Msg("read request")
		return "invalid", protocol.GenericError()
	}
	label := h.Code.String()
	req, err := protocol.DecodeRequest(h, payload)
	if err != nil {
		log.Warn().Str("remote", remote).Str("request", label).Err(err).Msg("decode request")
		if protocol.IsKind(err, protocol.KindUnknownCode) {
			label = "unknown"
		}
		return label, protocol.GenericError()
	}
	resp, err := s.dispatcher.Handle(req)
	if err != nil {
		log.Warn().
			Str("remote", remote).
			Str("request", label).
			Str("client_id", h.ClientID.String()).
			Err(err).
			Msg("request failed")
		return label, protocol.GenericError()
	}
	return label, resp
}

func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.AdminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("admin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
