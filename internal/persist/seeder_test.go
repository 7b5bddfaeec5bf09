package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/canvasdock/server/internal/core/event"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"github.com/canvasdock/server/internal/system"
	"go.uber.org/zap"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect/></svg>`

const sparks = `
name: sparks
capacity: 64
rate: 30
lifetime: 0.5
radius: 2
speed: 40
gradient:
  - {at: 0, color: [1, 0.8, 0.2, 1]}
  - {at: 1, color: [1, 0.2, 0, 0]}
`

func runSim(t *testing.T) *dock.Dock {
	t.Helper()
	d := dock.New(zap.NewNop())
	runner := coresys.NewRunner()
	system.RegisterAll(runner, system.Deps{
		Dock: d, Scene: scene.NewState(), Bus: event.NewBus(), Log: zap.NewNop(), PerTick: 4,
	})
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				runner.Tick(time.Millisecond)
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-stopped
	})
	return d
}

type fakeSource struct {
	assets   []AssetRow
	entities []EntityRow
	err      error
}

func (f fakeSource) LoadAssets(context.Context) ([]AssetRow, error) { return f.assets, f.err }
func (f fakeSource) LoadEntities(context.Context) ([]EntityRow, error) {
	return f.entities, nil
}

func TestSeedLoadsThenSpawns(t *testing.T) {
	d := runSim(t)
	src := fakeSource{
		assets: []AssetRow{
			{Name: "square", Kind: "svg", Data: []byte(squareSVG)},
			{Name: "sparks", Kind: "particle", Data: []byte(sparks)},
			{Name: "broken", Kind: "svg", Data: []byte("<div/>")},
			{Name: "model", Kind: "gltf", Data: []byte("x")},
		},
		entities: []EntityRow{
			{ID: 1, Kind: "vector", Asset: "square", X: 10, Y: 10, ScaleX: 1, ScaleY: 1},
			{ID: 2, Kind: "vector", Asset: "square", Particle: "sparks", X: 40, Y: 40, ScaleX: 1, ScaleY: 1},
			{ID: 3, Kind: "particle", Particle: "sparks"},
			{ID: 4, Kind: "vector", Asset: "broken"},
			{ID: 5, Kind: "vector", Asset: "sparks"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := NewSeeder(d, zap.NewNop()).SeedFrom(ctx, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SeedStats{Assets: 2, AssetsFailed: 2, Entities: 3, EntitiesFailed: 2}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
	if n := d.EntityCount(); n != 3 {
		t.Fatalf("expected 3 entities in the dock, got %d", n)
	}
	vectors, particles := d.AssetCounts()
	if vectors != 1 || particles != 1 {
		t.Fatalf("expected 1 vector and 1 particle asset, got %d and %d", vectors, particles)
	}
}

func TestSeedSourceError(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewSeeder(dock.New(zap.NewNop()), zap.NewNop()).SeedFrom(context.Background(), fakeSource{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestSeedAbortsWhenContextEnds(t *testing.T) {
	// Registered workers that never tick.
	d := dock.New(zap.NewNop())
	system.RegisterAll(coresys.NewRunner(), system.Deps{
		Dock: d, Scene: scene.NewState(), Bus: event.NewBus(), Log: zap.NewNop(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewSeeder(d, zap.NewNop()).Seed(ctx, []AssetRow{{Name: "square", Kind: "svg", Data: []byte(squareSVG)}}, nil)
	if !errors.Is(err, dock.ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestAssetKindForPath(t *testing.T) {
	cases := map[string]string{
		"art/logo.svg":         "svg",
		"art/intro.json":       "lottie",
		"art/intro.lottie.zst": "lottie",
		"fx/sparks.YML":        "particle",
		"fx/sparks.yaml":       "particle",
	}
	for path, want := range cases {
		got, ok := AssetKindForPath(path)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %q", path, want, got)
		}
	}
	if _, ok := AssetKindForPath("notes.txt"); ok {
		t.Fatalf("expected unknown extension to be rejected")
	}
}
