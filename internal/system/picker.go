package system

import (
	"errors"
	"time"

	"github.com/canvasdock/server/internal/core/event"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// PickerSystem answers spatial picks in two steps. Update opens a query
// region and emits PickRequested; when that event is dispatched on the next
// tick the region is resolved against the bodies overlapping it and torn down.
type PickerSystem struct {
	worker
	scene     *scene.State
	bus       *event.Bus
	perTick   int
	maxRadius float64
	pending   map[uint32]dock.Envelope // region id -> envelope awaiting resolution
}

func NewPickerSystem(d *dock.Dock, sc *scene.State, bus *event.Bus, perTick int, maxRadius float64, log *zap.Logger) *PickerSystem {
	s := &PickerSystem{
		worker:    newWorker(d, dock.ClassPick, log),
		scene:     sc,
		bus:       bus,
		perTick:   perTick,
		maxRadius: maxRadius,
		pending:   make(map[uint32]dock.Envelope),
	}
	event.Subscribe(bus, s.onPickRequested)
	return s
}

func (s *PickerSystem) Phase() coresys.Phase { return coresys.PhasePick }

func (s *PickerSystem) Update(_ time.Duration) {
	for i := 0; i < s.perTick; i++ {
		id, ok := s.rx.TryNext()
		if !ok {
			return
		}
		env, ok := s.take(id)
		if !ok {
			continue
		}
		if r := s.run(env, s.open); r.Status != 0 {
			s.resolve(env, r)
		}
	}
}

// InFlight reports how many picks wait for their region to resolve.
func (s *PickerSystem) InFlight() int { return len(s.pending) }

// open starts the query. A zero Result means the pick is now in flight.
func (s *PickerSystem) open(env dock.Envelope) dock.Result {
	cmd, ok := env.Command.(dock.Pick)
	if !ok {
		return mismatch(env, "pick")
	}
	if s.maxRadius > 0 && cmd.Radius > s.maxRadius {
		return dock.NotOK("pick: radius %g exceeds limit %g", cmd.Radius, s.maxRadius)
	}
	reg, err := s.scene.OpenPick(cmd.Position, cmd.Radius, env.ID)
	if err != nil {
		return dock.NotOK("pick: %v", err)
	}
	// A failure past this point leaves nothing behind for the next tick.
	defer func() {
		if _, ok := s.pending[reg.ID]; !ok {
			s.scene.Regions.Close(reg.ID)
		}
	}()
	event.Emit(s.bus, event.PickRequested{Region: reg.ID, Command: env.ID})
	s.pending[reg.ID] = env
	return dock.Result{}
}

func (s *PickerSystem) onPickRequested(ev event.PickRequested) {
	env, ok := s.pending[ev.Region]
	if !ok {
		s.log.Warn("pick region already settled", zap.Uint32("region", ev.Region))
		return
	}
	delete(s.pending, ev.Region)
	s.resolve(env, s.run(env, func(dock.Envelope) dock.Result {
		return s.settle(ev.Region)
	}))
}

func (s *PickerSystem) settle(region uint32) dock.Result {
	h, err := s.scene.ResolvePick(region)
	switch {
	case errors.Is(err, scene.ErrNothingPicked):
		return dock.NotOK("pick: %v", err)
	case err != nil:
		return dock.Fault(err)
	}
	id, err := s.dock.EntityID(h)
	if err != nil {
		// A live body without a caller-visible id.
		return dock.Fault(err)
	}
	s.log.Debug("entity picked", zap.Uint32("entity", id), zap.Uint32("region", region))
	return dock.OK(id)
}
