package system

import (
	"time"

	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// CameraSystem coalesces camera requests: each tick only the newest one is
// applied and every older one resolves as superseded.
type CameraSystem struct {
	worker
	scene *scene.State
}

func NewCameraSystem(d *dock.Dock, sc *scene.State, log *zap.Logger) *CameraSystem {
	return &CameraSystem{worker: newWorker(d, dock.ClassCamera, log), scene: sc}
}

func (s *CameraSystem) Phase() coresys.Phase { return coresys.PhaseModify }

func (s *CameraSystem) Update(_ time.Duration) {
	var valid []dock.Envelope
	for _, env := range s.takeAll() {
		if _, ok := env.Command.(dock.SetCamera); !ok {
			s.resolve(env, mismatch(env, "camera"))
			continue
		}
		valid = append(valid, env)
	}
	if len(valid) == 0 {
		return
	}
	last := valid[len(valid)-1]
	for _, env := range valid[:len(valid)-1] {
		s.resolve(env, dock.Superseded(last.ID))
	}
	s.resolve(last, s.run(last, s.apply))
}

func (s *CameraSystem) apply(env dock.Envelope) dock.Result {
	cmd := env.Command.(dock.SetCamera)
	if err := s.scene.SetCamera(cmd.Position, cmd.Scale); err != nil {
		return dock.NotOK("camera: %v", err)
	}
	s.log.Debug("camera moved",
		zap.Float64("x", cmd.Position.X),
		zap.Float64("y", cmd.Position.Y),
		zap.Float64("scale", cmd.Scale),
	)
	return dock.OK(1)
}
