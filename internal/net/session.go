package net

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canvasdock/server/internal/dock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session is one bridge client. The reader goroutine submits commands, one
// goroutine per outstanding command waits for its result, and the writer
// goroutine drains OutQueue onto the socket.
type Session struct {
	ID   uint64
	conn *websocket.Conn
	dock *dock.Dock
	ops  *Ops

	OutQueue chan Reply // writer goroutine reads from here

	IP string

	readTimeout  time.Duration
	writeTimeout time.Duration
	callTimeout  time.Duration

	mu      sync.Mutex
	pending map[uint32]*dock.Future

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	waiters   sync.WaitGroup

	log *zap.Logger
}

type sessionOptions struct {
	outSize      int
	readTimeout  time.Duration
	writeTimeout time.Duration
	callTimeout  time.Duration
}

func newSession(conn *websocket.Conn, id uint64, d *dock.Dock, ops *Ops, opt sessionOptions, log *zap.Logger) *Session {
	return &Session{
		ID:           id,
		conn:         conn,
		dock:         d,
		ops:          ops,
		OutQueue:     make(chan Reply, opt.outSize),
		IP:           conn.RemoteAddr().String(),
		readTimeout:  opt.readTimeout,
		writeTimeout: opt.writeTimeout,
		callTimeout:  opt.callTimeout,
		pending:      make(map[uint32]*dock.Future),
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
}

// Run starts the writer and reads until the connection ends. It returns once
// every waiter has exited.
func (s *Session) Run() {
	go s.writeLoop()
	s.readLoop()
	s.waiters.Wait()
}

// Close ends the session. Outstanding commands still run; their results are
// dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()

		s.mu.Lock()
		for id, fut := range s.pending {
			fut.Discard()
			delete(s.pending, id)
		}
		s.mu.Unlock()
	})
}

func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("bridge read error", zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.reject(0, err)
			continue
		}
		cmd, err := s.ops.Decode(&req)
		if err != nil {
			s.reject(req.Seq, err)
			continue
		}
		fut, err := s.dock.TrySubmit(cmd)
		if err != nil {
			s.log.Error("bridge submit failed", zap.String("op", req.Op), zap.Error(err))
			s.reject(req.Seq, err)
			continue
		}

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			fut.Discard()
			return
		}
		s.pending[fut.ID()] = fut
		s.mu.Unlock()

		s.waiters.Add(1)
		go s.await(req.Seq, fut)
	}
}

// await waits for one command's result and queues the reply.
func (s *Session) await(seq uint64, fut *dock.Future) {
	defer s.waiters.Done()

	var expired <-chan time.Time
	if s.callTimeout > 0 {
		t := time.NewTimer(s.callTimeout)
		defer t.Stop()
		expired = t.C
	}

	var rep Reply
	select {
	case <-fut.Done():
		r, _ := fut.TryResult()
		rep = replyFor(seq, fut.ID(), r)
	case <-expired:
		fut.Discard()
		rep = Reply{Seq: seq, Command: fut.ID(), Status: StatusClosed, Error: "no result within " + s.callTimeout.String()}
	case <-s.closeCh:
		return
	}

	s.mu.Lock()
	delete(s.pending, fut.ID())
	s.mu.Unlock()
	s.Send(rep)
}

func (s *Session) reject(seq uint64, err error) {
	s.Send(Reply{Seq: seq, Status: StatusRejected, Error: err.Error()})
}

// Send queues a reply without blocking. A client that lets OutQueue fill up is
// disconnected.
func (s *Session) Send(rep Reply) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- rep:
	default:
		s.log.Warn("bridge output queue full, closing slow client")
		s.Close()
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case rep := <-s.OutQueue:
			if !s.writeReply(rep) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeReply(rep Reply) bool {
	b, err := json.Marshal(rep)
	if err != nil {
		s.log.Error("bridge reply encode failed", zap.Uint64("seq", rep.Seq), zap.Error(err))
		return true
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if !s.closed.Load() && !errors.Is(err, websocket.ErrCloseSent) {
			s.log.Debug("bridge write error", zap.Error(err))
		}
		return false
	}
	return true
}
