package system

import (
	"github.com/canvasdock/server/internal/core/event"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

// Deps carries what the command systems share.
type Deps struct {
	Dock  *dock.Dock
	Scene *scene.State
	Bus   *event.Bus
	Log   *zap.Logger

	// PerTick bounds how many commands each ordered worker handles per tick.
	PerTick int
	// MaxPickRadius rejects larger picks; zero disables the check.
	MaxPickRadius float64
}

// Systems exposes the registered workers that callers inspect directly.
type Systems struct {
	Picker *PickerSystem
}

// RegisterAll creates one worker per command class and registers them, plus
// event dispatch and cleanup, with the runner. Phases fix the order: remove,
// modify, pick, spawn, load.
func RegisterAll(r *coresys.Runner, deps Deps) Systems {
	perTick := deps.PerTick
	if perTick <= 0 {
		perTick = 1
	}
	d, sc, log := deps.Dock, deps.Scene, deps.Log

	picker := NewPickerSystem(d, sc, deps.Bus, perTick, deps.MaxPickRadius, log)

	r.Register(NewEventDispatchSystem(deps.Bus))
	r.Register(NewRemoverSystem(d, sc, perTick, log))
	r.Register(NewPlacementSystem(d, sc, log))
	r.Register(NewCameraSystem(d, sc, log))
	r.Register(picker)
	r.Register(NewSpawnerSystem(d, sc, perTick, log))
	r.Register(NewVectorLoaderSystem(d, sc, dock.FormatSVG, perTick, log))
	r.Register(NewVectorLoaderSystem(d, sc, dock.FormatLottie, perTick, log))
	r.Register(NewParticleLoaderSystem(d, sc, perTick, log))
	r.Register(NewCleanupSystem(sc.World, log))

	return Systems{Picker: picker}
}
