package system

import (
	"time"

	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// RemoverSystem despawns entities, one request per tick by default.
type RemoverSystem struct {
	worker
	scene   *scene.State
	perTick int
}

func NewRemoverSystem(d *dock.Dock, sc *scene.State, perTick int, log *zap.Logger) *RemoverSystem {
	return &RemoverSystem{worker: newWorker(d, dock.ClassRemove, log), scene: sc, perTick: perTick}
}

func (s *RemoverSystem) Phase() coresys.Phase { return coresys.PhaseRemove }

func (s *RemoverSystem) Update(_ time.Duration) {
	s.stepOrdered(s.perTick, s.handle)
}

func (s *RemoverSystem) handle(env dock.Envelope) dock.Result {
	cmd, ok := env.Command.(dock.RemoveEntity)
	if !ok {
		return mismatch(env, "remove")
	}
	h, err := s.dock.Entity(cmd.ID)
	if err != nil {
		return dock.NotOK("remove entity %d: %v", cmd.ID, err)
	}
	if err := s.scene.Despawn(h); err != nil {
		// The mapping outlived its entity. Drop it so the id cannot be reused.
		_, _ = s.dock.RemoveEntity(cmd.ID)
		return dock.Fault(err)
	}
	if _, err := s.dock.RemoveEntity(cmd.ID); err != nil {
		return dock.Fault(err)
	}
	s.log.Debug("entity removed", zap.Uint32("entity", cmd.ID), zap.Stringer("handle", h))
	return dock.OK(1)
}
