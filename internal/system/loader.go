package system

import (
	"time"

	"github.com/canvasdock/server/internal/asset"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// VectorLoaderSystem decodes vector assets of one format. SVG and Lottie each
// get their own instance and class.
type VectorLoaderSystem struct {
	worker
	scene   *scene.State
	format  dock.VectorFormat
	decode  func([]byte) (*asset.Vector, error)
	perTick int
}

func NewVectorLoaderSystem(d *dock.Dock, sc *scene.State, format dock.VectorFormat, perTick int, log *zap.Logger) *VectorLoaderSystem {
	var decode func([]byte) (*asset.Vector, error)
	switch format {
	case dock.FormatSVG:
		decode = asset.DecodeSVG
	case dock.FormatLottie:
		decode = asset.DecodeLottie
	default:
		panic(&dock.ConfigError{Reason: "no decoder for vector format " + format.String()})
	}
	class := dock.LoadVector{Format: format}.Class()
	return &VectorLoaderSystem{
		worker:  newWorker(d, class, log),
		scene:   sc,
		format:  format,
		decode:  decode,
		perTick: perTick,
	}
}

func (s *VectorLoaderSystem) Phase() coresys.Phase { return coresys.PhaseLoad }

func (s *VectorLoaderSystem) Update(_ time.Duration) {
	s.stepOrdered(s.perTick, s.handle)
}

func (s *VectorLoaderSystem) handle(env dock.Envelope) dock.Result {
	cmd, ok := env.Command.(dock.LoadVector)
	if !ok || cmd.Format != s.format {
		return mismatch(env, s.format.String()+" loader")
	}
	v, err := s.decode(cmd.Data)
	if err != nil {
		return dock.NotOK("load %s: %v", s.format, err)
	}
	id := s.dock.PushVector(s.scene.Vectors.Add(v))
	s.log.Info("vector asset loaded",
		zap.Uint32("asset", id),
		zap.String("digest", v.Digest),
		zap.Float64("width", v.Width),
		zap.Float64("height", v.Height),
		zap.Int("elements", v.Elements),
	)
	return dock.OK(id)
}

// ParticleLoaderSystem decodes particle effects.
type ParticleLoaderSystem struct {
	worker
	scene   *scene.State
	perTick int
}

func NewParticleLoaderSystem(d *dock.Dock, sc *scene.State, perTick int, log *zap.Logger) *ParticleLoaderSystem {
	return &ParticleLoaderSystem{worker: newWorker(d, dock.ClassLoadParticle, log), scene: sc, perTick: perTick}
}

func (s *ParticleLoaderSystem) Phase() coresys.Phase { return coresys.PhaseLoad }

func (s *ParticleLoaderSystem) Update(_ time.Duration) {
	s.stepOrdered(s.perTick, s.handle)
}

func (s *ParticleLoaderSystem) handle(env dock.Envelope) dock.Result {
	cmd, ok := env.Command.(dock.LoadParticle)
	if !ok {
		return mismatch(env, "particle loader")
	}
	p, err := asset.DecodeParticle(cmd.Data)
	if err != nil {
		return dock.NotOK("load particle: %v", err)
	}
	id := s.dock.PushParticle(s.scene.Particles.Add(p))
	s.log.Info("particle asset loaded",
		zap.Uint32("particle", id),
		zap.String("name", p.Name),
		zap.String("digest", p.Digest),
	)
	return dock.OK(id)
}
