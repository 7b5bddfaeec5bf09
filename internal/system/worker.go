package system

import (
	"errors"
	"fmt"

	"github.com/canvasdock/server/internal/dock"
	"go.uber.org/zap"
)

// handlerFunc performs one command's domain effect and reports its outcome.
type handlerFunc func(env dock.Envelope) dock.Result

// worker is the plumbing every command system shares: its class receiver,
// the dock to take envelopes from, and result delivery.
type worker struct {
	dock *dock.Dock
	rx   *dock.Receiver
	log  *zap.Logger
}

func newWorker(d *dock.Dock, class dock.Class, log *zap.Logger) worker {
	return worker{
		dock: d,
		rx:   d.Register(class),
		log:  log.With(zap.Stringer("worker", class)),
	}
}

// take fetches the envelope for id. A missing envelope means an id was
// delivered twice; there is no promise left to resolve, so it is only logged.
func (w *worker) take(id uint32) (dock.Envelope, bool) {
	env, err := w.dock.Take(id)
	if err != nil {
		w.log.Error("command envelope missing", zap.Uint32("command", id), zap.Error(err))
		return dock.Envelope{}, false
	}
	return env, true
}

// resolve delivers r. A discarded future is expected and ignored.
func (w *worker) resolve(env dock.Envelope, r dock.Result) {
	err := env.Promise.Resolve(r)
	switch {
	case err == nil:
	case errors.Is(err, dock.ErrReceiverGone):
		w.log.Debug("result dropped, caller gone", zap.Uint32("command", env.ID))
	default:
		w.log.Error("resolve failed", zap.Uint32("command", env.ID), zap.Error(err))
	}
	if r.Status == dock.StatusFault {
		w.log.Error("command fault", zap.Uint32("command", env.ID), zap.String("reason", r.Reason))
	}
}

// run executes fn for env and turns a panic in domain code into a fault result
// so it never reaches the tick loop.
func (w *worker) run(env dock.Envelope, fn handlerFunc) (r dock.Result) {
	defer func() {
		if p := recover(); p != nil {
			r = dock.Fault(fmt.Errorf("panic handling command %d: %v", env.ID, p))
		}
	}()
	return fn(env)
}

// stepOrdered handles at most max pending commands, oldest first.
func (w *worker) stepOrdered(max int, fn handlerFunc) int {
	n := 0
	for ; n < max; n++ {
		id, ok := w.rx.TryNext()
		if !ok {
			break
		}
		env, ok := w.take(id)
		if !ok {
			continue
		}
		w.resolve(env, w.run(env, fn))
	}
	return n
}

// takeAll drains the receiver and takes every envelope, in submission order.
func (w *worker) takeAll() []dock.Envelope {
	ids := w.rx.Drain()
	if len(ids) == 0 {
		return nil
	}
	envs := make([]dock.Envelope, 0, len(ids))
	for _, id := range ids {
		if env, ok := w.take(id); ok {
			envs = append(envs, env)
		}
	}
	return envs
}

func mismatch(env dock.Envelope, want string) dock.Result {
	return dock.NotOK("%s worker cannot handle %T", want, env.Command)
}
