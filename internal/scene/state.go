package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/canvasdock/server/internal/asset"
	"github.com/canvasdock/server/internal/core/ecs"
	"github.com/canvasdock/server/internal/dock"
)

var (
	ErrUnknownAsset = errors.New("unknown asset")
	ErrEntityGone   = errors.New("entity no longer exists")
	ErrBadPlacement = errors.New("invalid placement")
	ErrBadCamera    = errors.New("invalid camera")
)

// minRadius keeps zero-sized bodies pickable.
const minRadius = 1.0

// Sprite renders a vector asset.
type Sprite struct {
	Vector asset.Handle
}

// Emitter runs a particle effect.
type Emitter struct {
	Effect asset.Handle
}

type Camera struct {
	Position dock.Vec2
	Scale    float64
	Moves    uint64 // number of applied camera changes
}

// State is the simulation the command workers mutate. It is owned by the tick
// goroutine and is never touched by producers, so it has no locks.
type State struct {
	World      *ecs.World
	Placements *ecs.Store[dock.Placement]
	Sprites    *ecs.Store[Sprite]
	Emitters   *ecs.Store[Emitter]
	Vectors    *asset.Store[asset.Vector]
	Particles  *asset.Store[asset.Particle]
	Grid       *Grid
	Regions    *Regions

	camera Camera
}

func NewState() *State {
	s := &State{
		World:      ecs.NewWorld(),
		Placements: ecs.NewStore[dock.Placement](),
		Sprites:    ecs.NewStore[Sprite](),
		Emitters:   ecs.NewStore[Emitter](),
		Vectors:    asset.NewStore[asset.Vector](),
		Particles:  asset.NewStore[asset.Particle](),
		Grid:       NewGrid(),
		Regions:    NewRegions(),
		camera:     Camera{Scale: 1},
	}
	reg := s.World.Registry()
	reg.Register(s.Placements)
	reg.Register(s.Sprites)
	reg.Register(s.Emitters)
	reg.Register(gridRemover{s.Grid})
	return s
}

type gridRemover struct{ g *Grid }

func (r gridRemover) Remove(id ecs.EntityID) { r.g.Remove(id) }

// Live reports whether id exists and is not queued for destruction.
func (s *State) Live(id ecs.EntityID) bool {
	return s.World.Alive(id) && !s.World.PendingDestruction(id)
}

// SpawnVector creates an entity rendering vector asset vec, with an optional
// particle emitter (effect 0 = none).
func (s *State) SpawnVector(vec asset.Handle, pl dock.Placement, effect asset.Handle) (ecs.EntityID, error) {
	if _, ok := s.Vectors.Get(vec); !ok {
		return 0, fmt.Errorf("vector handle %d: %w", vec, ErrUnknownAsset)
	}
	if effect != 0 {
		if _, ok := s.Particles.Get(effect); !ok {
			return 0, fmt.Errorf("particle handle %d: %w", effect, ErrUnknownAsset)
		}
	}
	pl, err := normalizePlacement(pl)
	if err != nil {
		return 0, err
	}

	id := s.World.CreateEntity()
	s.Placements.Set(id, &pl)
	s.Sprites.Set(id, &Sprite{Vector: vec})
	if effect != 0 {
		s.Emitters.Set(id, &Emitter{Effect: effect})
	}
	s.Grid.Add(id, s.footprint(id))
	return id, nil
}

// SpawnEmitter creates a standalone particle emitter.
func (s *State) SpawnEmitter(effect asset.Handle, pl dock.Placement) (ecs.EntityID, error) {
	if _, ok := s.Particles.Get(effect); !ok {
		return 0, fmt.Errorf("particle handle %d: %w", effect, ErrUnknownAsset)
	}
	pl, err := normalizePlacement(pl)
	if err != nil {
		return 0, err
	}
	id := s.World.CreateEntity()
	s.Placements.Set(id, &pl)
	s.Emitters.Set(id, &Emitter{Effect: effect})
	s.Grid.Add(id, s.footprint(id))
	return id, nil
}

// Despawn queues id for end-of-tick destruction and makes it unpickable now.
func (s *State) Despawn(id ecs.EntityID) error {
	if !s.Live(id) {
		return fmt.Errorf("entity %s: %w", id, ErrEntityGone)
	}
	s.World.MarkForDestruction(id)
	s.Grid.Remove(id)
	return nil
}

// Place replaces id's placement.
func (s *State) Place(id ecs.EntityID, pl dock.Placement) error {
	if !s.Live(id) {
		return fmt.Errorf("entity %s: %w", id, ErrEntityGone)
	}
	pl, err := normalizePlacement(pl)
	if err != nil {
		return err
	}
	cur, ok := s.Placements.Get(id)
	if !ok {
		return fmt.Errorf("entity %s has no placement: %w", id, ErrEntityGone)
	}
	*cur = pl
	s.Grid.Move(id, s.footprint(id))
	return nil
}

func (s *State) Placement(id ecs.EntityID) (dock.Placement, bool) {
	pl, ok := s.Placements.Get(id)
	if !ok {
		return dock.Placement{}, false
	}
	return *pl, true
}

func (s *State) SetCamera(pos dock.Vec2, scale float64) error {
	if !finite(pos.X) || !finite(pos.Y) || !finite(scale) || scale <= 0 {
		return fmt.Errorf("position %v scale %g: %w", pos, scale, ErrBadCamera)
	}
	s.camera.Position = pos
	s.camera.Scale = scale
	s.camera.Moves++
	return nil
}

func (s *State) Camera() Camera { return s.camera }

// footprint derives the pick circle from the entity's assets and placement.
func (s *State) footprint(id ecs.EntityID) Circle {
	pl, _ := s.Placements.Get(id)
	scale := math.Max(math.Abs(pl.Scale.X), math.Abs(pl.Scale.Y))

	r := 0.0
	if sp, ok := s.Sprites.Get(id); ok {
		if v, ok := s.Vectors.Get(sp.Vector); ok {
			r = math.Hypot(v.Width, v.Height) / 2
		}
	}
	if em, ok := s.Emitters.Get(id); ok {
		if p, ok := s.Particles.Get(em.Effect); ok {
			r = math.Max(r, p.Extent())
		}
	}
	return Circle{Center: pl.Position, Radius: math.Max(r*scale, minRadius)}
}

func normalizePlacement(pl dock.Placement) (dock.Placement, error) {
	for _, f := range []float64{pl.Position.X, pl.Position.Y, pl.Rotation, pl.Scale.X, pl.Scale.Y, pl.Z} {
		if !finite(f) {
			return pl, fmt.Errorf("non-finite component: %w", ErrBadPlacement)
		}
	}
	if !inBounds(pl.Position.X) || !inBounds(pl.Position.Y) {
		return pl, fmt.Errorf("position %v beyond ±%g: %w", pl.Position, MaxCoordinate, ErrBadPlacement)
	}
	if pl.Scale == (dock.Vec2{}) {
		pl.Scale = dock.Vec2{X: 1, Y: 1}
	}
	return pl, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func inBounds(f float64) bool {
	return finite(f) && math.Abs(f) <= MaxCoordinate
}
