package system

import (
	"errors"
	"time"

	"github.com/canvasdock/server/internal/asset"
	"github.com/canvasdock/server/internal/core/ecs"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// SpawnerSystem creates entities from loaded assets.
type SpawnerSystem struct {
	worker
	scene   *scene.State
	perTick int
}

func NewSpawnerSystem(d *dock.Dock, sc *scene.State, perTick int, log *zap.Logger) *SpawnerSystem {
	return &SpawnerSystem{worker: newWorker(d, dock.ClassSpawn, log), scene: sc, perTick: perTick}
}

func (s *SpawnerSystem) Phase() coresys.Phase { return coresys.PhaseSpawn }

func (s *SpawnerSystem) Update(_ time.Duration) {
	s.stepOrdered(s.perTick, s.handle)
}

func (s *SpawnerSystem) handle(env dock.Envelope) dock.Result {
	cmd, ok := env.Command.(dock.SpawnEntity)
	if !ok {
		return mismatch(env, "spawn")
	}

	var (
		h   ecs.EntityID
		err error
	)
	switch cmd.Kind {
	case dock.KindVector:
		vec, lerr := s.dock.Vector(cmd.Asset)
		if lerr != nil {
			return dock.NotOK("spawn: asset %d: %v", cmd.Asset, lerr)
		}
		var effect asset.Handle
		if cmd.Particle != 0 {
			if effect, lerr = s.dock.Particle(cmd.Particle); lerr != nil {
				return dock.NotOK("spawn: particle %d: %v", cmd.Particle, lerr)
			}
		}
		h, err = s.scene.SpawnVector(vec, cmd.Placement, effect)
	case dock.KindParticle:
		effect, lerr := s.dock.Particle(cmd.Particle)
		if lerr != nil {
			return dock.NotOK("spawn: particle %d: %v", cmd.Particle, lerr)
		}
		h, err = s.scene.SpawnEmitter(effect, cmd.Placement)
	default:
		return dock.NotOK("spawn: unknown entity kind %d", cmd.Kind)
	}

	switch {
	case errors.Is(err, scene.ErrUnknownAsset):
		// The dock knew the id but the scene lost the asset.
		return dock.Fault(err)
	case err != nil:
		return dock.NotOK("spawn: %v", err)
	}

	id, err := s.dock.PushEntity(h)
	if err != nil {
		_ = s.scene.Despawn(h)
		return dock.Fault(err)
	}
	s.log.Debug("entity spawned",
		zap.Uint32("entity", id),
		zap.Stringer("kind", cmd.Kind),
		zap.Stringer("handle", h),
	)
	return dock.OK(id)
}
