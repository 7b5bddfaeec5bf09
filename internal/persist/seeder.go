package persist

import (
	"context"
	"fmt"

	"github.com/canvasdock/server/internal/dock"
	"go.uber.org/zap"
)

// Submitter is the producer side of the dock.
type Submitter interface {
	TrySubmit(cmd dock.Command) (*dock.Future, error)
}

// SceneSource yields a stored scene.
type SceneSource interface {
	LoadAssets(ctx context.Context) ([]AssetRow, error)
	LoadEntities(ctx context.Context) ([]EntityRow, error)
}

// SeedStats counts what a seed run accepted and rejected.
type SeedStats struct {
	Assets         int
	AssetsFailed   int
	Entities       int
	EntitiesFailed int
}

// Seeder replays a stored scene through the dock as ordinary commands: every
// asset is loaded first, then every entity is spawned against the ids the
// loads returned. It needs the tick loop running.
type Seeder struct {
	dock Submitter
	log  *zap.Logger
}

func NewSeeder(d Submitter, log *zap.Logger) *Seeder {
	return &Seeder{dock: d, log: log}
}

type seededAsset struct {
	id       uint32
	particle bool
}

type pendingCommand struct {
	name string
	fut  *dock.Future
}

// SeedFrom reads src and seeds it.
func (s *Seeder) SeedFrom(ctx context.Context, src SceneSource) (SeedStats, error) {
	assets, err := src.LoadAssets(ctx)
	if err != nil {
		return SeedStats{}, err
	}
	entities, err := src.LoadEntities(ctx)
	if err != nil {
		return SeedStats{}, err
	}
	return s.Seed(ctx, assets, entities)
}

// Seed loads assets then spawns entities. A row the dock rejects is counted
// and skipped; only a dead context or a submit fault aborts the run.
func (s *Seeder) Seed(ctx context.Context, assets []AssetRow, entities []EntityRow) (SeedStats, error) {
	var stats SeedStats

	loaded := make(map[string]seededAsset, len(assets))
	var loads []pendingCommand
	for _, a := range assets {
		cmd, particle, err := loadCommand(a)
		if err != nil {
			s.log.Warn("scene asset skipped", zap.String("asset", a.Name), zap.Error(err))
			stats.AssetsFailed++
			continue
		}
		fut, err := s.dock.TrySubmit(cmd)
		if err != nil {
			return stats, fmt.Errorf("seed asset %s: %w", a.Name, err)
		}
		loads = append(loads, pendingCommand{name: a.Name, fut: fut})
		loaded[a.Name] = seededAsset{particle: particle}
	}
	for _, p := range loads {
		r, err := s.await(ctx, p)
		if err != nil {
			return stats, err
		}
		if !r.IsOK() {
			s.log.Warn("scene asset rejected", zap.String("asset", p.name), zap.Stringer("result", r))
			delete(loaded, p.name)
			stats.AssetsFailed++
			continue
		}
		sa := loaded[p.name]
		sa.id = r.Value
		loaded[p.name] = sa
		stats.Assets++
	}

	var spawns []pendingCommand
	for _, e := range entities {
		name := fmt.Sprintf("entity#%d", e.ID)
		cmd, err := spawnCommand(e, loaded)
		if err != nil {
			s.log.Warn("scene entity skipped", zap.String("entity", name), zap.Error(err))
			stats.EntitiesFailed++
			continue
		}
		fut, err := s.dock.TrySubmit(cmd)
		if err != nil {
			return stats, fmt.Errorf("seed %s: %w", name, err)
		}
		spawns = append(spawns, pendingCommand{name: name, fut: fut})
	}
	for _, p := range spawns {
		r, err := s.await(ctx, p)
		if err != nil {
			return stats, err
		}
		if !r.IsOK() {
			s.log.Warn("scene entity rejected", zap.String("entity", p.name), zap.Stringer("result", r))
			stats.EntitiesFailed++
			continue
		}
		stats.Entities++
	}
	return stats, nil
}

func (s *Seeder) await(ctx context.Context, p pendingCommand) (dock.Result, error) {
	r, err := p.fut.Await(ctx)
	if err != nil {
		p.fut.Discard()
		return dock.Result{}, fmt.Errorf("seed %s: %w", p.name, err)
	}
	return r, nil
}

func loadCommand(a AssetRow) (dock.Command, bool, error) {
	if a.Kind == "particle" {
		return dock.LoadParticle{Data: a.Data}, true, nil
	}
	format, ok := dock.ParseFormat(a.Kind)
	if !ok {
		return nil, false, fmt.Errorf("unknown asset kind %q", a.Kind)
	}
	return dock.LoadVector{Format: format, Data: a.Data}, false, nil
}

func spawnCommand(e EntityRow, loaded map[string]seededAsset) (dock.Command, error) {
	kind, ok := dock.ParseKind(e.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	cmd := dock.SpawnEntity{
		Kind: kind,
		Placement: dock.Placement{
			Position: dock.Vec2{X: e.X, Y: e.Y},
			Rotation: e.Rotation,
			Scale:    dock.Vec2{X: e.ScaleX, Y: e.ScaleY},
			Z:        e.Z,
		},
	}
	if e.Particle != "" {
		p, ok := loaded[e.Particle]
		if !ok || !p.particle {
			return nil, fmt.Errorf("particle %q not loaded", e.Particle)
		}
		cmd.Particle = p.id
	}
	switch kind {
	case dock.KindVector:
		a, ok := loaded[e.Asset]
		if !ok || a.particle {
			return nil, fmt.Errorf("vector asset %q not loaded", e.Asset)
		}
		cmd.Asset = a.id
	case dock.KindParticle:
		if cmd.Particle == 0 {
			return nil, fmt.Errorf("particle entity without a particle asset")
		}
	}
	return cmd, nil
}
