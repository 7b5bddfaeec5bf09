package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canvasdock/server/internal/dock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Options configures the bridge server.
type Options struct {
	Path         string
	OutQueueSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CallTimeout  time.Duration
	// TokenHash is a bcrypt hash of the bearer token clients must present.
	// Empty disables authentication.
	TokenHash string
}

// Server upgrades HTTP requests on Options.Path to bridge sessions.
type Server struct {
	dock     *dock.Dock
	ops      *Ops
	opt      Options
	upgrader websocket.Upgrader

	nextID   atomic.Uint64
	mu       sync.Mutex
	sessions map[uint64]*Session

	listener net.Listener
	http     *http.Server

	log *zap.Logger
}

func NewServer(d *dock.Dock, opt Options, log *zap.Logger) (*Server, error) {
	if opt.TokenHash != "" {
		if _, err := bcrypt.Cost([]byte(opt.TokenHash)); err != nil {
			return nil, fmt.Errorf("bridge token hash: %w", err)
		}
	}
	if opt.Path == "" {
		opt.Path = "/dock"
	}
	if opt.OutQueueSize < 1 {
		opt.OutQueueSize = 1
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 16 * 1024,
	}
	// Cross-origin browsers are accepted only when a token gates the bridge.
	if opt.TokenHash != "" {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &Server{
		dock:     d,
		ops:      DefaultOps(),
		opt:      opt,
		upgrader: upgrader,
		sessions: make(map[uint64]*Session),
		log:      log,
	}, nil
}

// Listen binds addr. Serve must be called afterwards.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	mux := http.NewServeMux()
	mux.Handle(s.opt.Path, s.Handler())
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.log.Info("bridge bound",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", s.opt.Path),
		zap.Strings("ops", s.ops.Names()),
	)
	return nil
}

// Serve runs in its own goroutine until Shutdown.
func (s *Server) Serve() {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("bridge server stopped", zap.Error(err))
	}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Handler serves one bridge session per request.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Error(rw, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("bridge upgrade failed", zap.Error(err))
			return
		}

		id := s.nextID.Add(1)
		sess := newSession(conn, id, s.dock, s.ops, sessionOptions{
			outSize:      s.opt.OutQueueSize,
			readTimeout:  s.opt.ReadTimeout,
			writeTimeout: s.opt.WriteTimeout,
			callTimeout:  s.opt.CallTimeout,
		}, s.log)

		s.mu.Lock()
		s.sessions[id] = sess
		s.mu.Unlock()
		s.log.Info("bridge client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		sess.Run()

		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		s.log.Info("bridge client disconnected", zap.Uint64("session", id))
	})
}

// Sessions reports the number of connected clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.opt.TokenHash == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.opt.TokenHash), []byte(token)) == nil
}

// Shutdown stops accepting clients and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()
	for _, sess := range open {
		sess.Close()
	}
	return err
}
