package system

import (
	"errors"
	"time"

	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// PlacementSystem coalesces transform requests per entity: within a tick the
// newest request for each entity is applied and older ones for the same
// entity resolve as superseded.
type PlacementSystem struct {
	worker
	scene *scene.State
}

func NewPlacementSystem(d *dock.Dock, sc *scene.State, log *zap.Logger) *PlacementSystem {
	return &PlacementSystem{worker: newWorker(d, dock.ClassPlacement, log), scene: sc}
}

func (s *PlacementSystem) Phase() coresys.Phase { return coresys.PhaseModify }

func (s *PlacementSystem) Update(_ time.Duration) {
	var (
		valid  []dock.Envelope
		latest = make(map[uint32]int) // entity id -> index into valid
		order  []uint32
	)
	for _, env := range s.takeAll() {
		cmd, ok := env.Command.(dock.SetPlacement)
		if !ok {
			s.resolve(env, mismatch(env, "placement"))
			continue
		}
		if _, seen := latest[cmd.ID]; !seen {
			order = append(order, cmd.ID)
		}
		latest[cmd.ID] = len(valid)
		valid = append(valid, env)
	}

	for i, env := range valid {
		winner := latest[env.Command.(dock.SetPlacement).ID]
		if winner != i {
			s.resolve(env, dock.Superseded(valid[winner].ID))
		}
	}
	for _, id := range order {
		env := valid[latest[id]]
		s.resolve(env, s.run(env, s.apply))
	}
}

func (s *PlacementSystem) apply(env dock.Envelope) dock.Result {
	cmd := env.Command.(dock.SetPlacement)
	h, err := s.dock.Entity(cmd.ID)
	if err != nil {
		return dock.NotOK("placement: entity %d: %v", cmd.ID, err)
	}
	err = s.scene.Place(h, cmd.Placement)
	switch {
	case errors.Is(err, scene.ErrEntityGone):
		return dock.Fault(err)
	case err != nil:
		return dock.NotOK("placement: %v", err)
	}
	s.log.Debug("entity placed", zap.Uint32("entity", cmd.ID))
	return dock.OK(cmd.ID)
}
