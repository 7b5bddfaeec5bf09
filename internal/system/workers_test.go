package system

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/canvasdock/server/internal/core/ecs"
	"github.com/canvasdock/server/internal/core/event"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"go.uber.org/zap"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20"><rect width="20" height="20"/></svg>`

const embers = `
name: embers
capacity: 16
rate: 8
lifetime: 1
radius: 3
speed: 5
`

type harness struct {
	dock   *dock.Dock
	scene  *scene.State
	runner *coresys.Runner
	sys    Systems
}

func newHarness(t *testing.T, perTick int) *harness {
	t.Helper()
	h := &harness{
		dock:   dock.New(zap.NewNop()),
		scene:  scene.NewState(),
		runner: coresys.NewRunner(),
	}
	h.sys = RegisterAll(h.runner, Deps{
		Dock:          h.dock,
		Scene:         h.scene,
		Bus:           event.NewBus(),
		Log:           zap.NewNop(),
		PerTick:       perTick,
		MaxPickRadius: 100,
	})
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.runner.Tick(16 * time.Millisecond)
	}
}

func mustResult(t *testing.T, f *dock.Future) dock.Result {
	t.Helper()
	r, ok := f.TryResult()
	if !ok {
		t.Fatalf("command %d: expected a result", f.ID())
	}
	return r
}

func (h *harness) loadSquare(t *testing.T) uint32 {
	t.Helper()
	f := h.dock.Submit(dock.LoadVector{Format: dock.FormatSVG, Data: []byte(squareSVG)})
	h.tick(1)
	r := mustResult(t, f)
	if !r.IsOK() {
		t.Fatalf("expected square to load, got %s", r)
	}
	return r.Value
}

func (h *harness) spawnAt(t *testing.T, asset uint32, x, y float64) uint32 {
	t.Helper()
	f := h.dock.Submit(dock.SpawnEntity{Asset: asset, Kind: dock.KindVector, Placement: dock.Placement{Position: dock.Vec2{X: x, Y: y}}})
	h.tick(1)
	r := mustResult(t, f)
	if !r.IsOK() {
		t.Fatalf("expected spawn ok, got %s", r)
	}
	return r.Value
}

func TestRemoveUnknownIDIsNotOK(t *testing.T) {
	h := newHarness(t, 1)
	asset := h.loadSquare(t)
	id := h.spawnAt(t, asset, 0, 0)

	f := h.dock.Submit(dock.RemoveEntity{ID: id + 10})
	h.tick(1)
	r := mustResult(t, f)
	if r.Status != dock.StatusNotOK {
		t.Fatalf("expected not_ok, got %s", r)
	}
	if h.dock.EntityCount() != 1 {
		t.Fatalf("expected entity table unchanged, got %d entries", h.dock.EntityCount())
	}
}

func TestSpawnAfterLoad(t *testing.T) {
	h := newHarness(t, 1)
	asset := h.loadSquare(t)

	f := h.dock.Submit(dock.SpawnEntity{Asset: asset, Kind: dock.KindVector})
	h.tick(1)
	r := mustResult(t, f)
	if !r.IsOK() || r.Value == 0 {
		t.Fatalf("expected ok with a new entity id, got %s", r)
	}
	handle, err := h.dock.Entity(r.Value)
	if err != nil {
		t.Fatalf("expected entity in table: %v", err)
	}
	if !h.scene.Live(handle) {
		t.Fatalf("expected entity %s alive in the scene", handle)
	}
	pl, _ := h.scene.Placement(handle)
	if pl.Scale != (dock.Vec2{X: 1, Y: 1}) {
		t.Fatalf("expected zero scale normalized to 1, got %+v", pl.Scale)
	}
}

func TestSpawnUnknownAssetIsNotOK(t *testing.T) {
	h := newHarness(t, 1)
	f := h.dock.Submit(dock.SpawnEntity{Asset: 3, Kind: dock.KindVector})
	h.tick(1)
	if r := mustResult(t, f); r.Status != dock.StatusNotOK {
		t.Fatalf("expected not_ok, got %s", r)
	}
	if h.dock.EntityCount() != 0 {
		t.Fatalf("expected no entity")
	}
}

func TestSpawnParticleEmitter(t *testing.T) {
	h := newHarness(t, 1)
	lf := h.dock.Submit(dock.LoadParticle{Data: []byte(embers)})
	h.tick(1)
	lr := mustResult(t, lf)
	if !lr.IsOK() {
		t.Fatalf("expected particle load ok, got %s", lr)
	}

	f := h.dock.Submit(dock.SpawnEntity{Kind: dock.KindParticle, Particle: lr.Value})
	h.tick(1)
	r := mustResult(t, f)
	if !r.IsOK() {
		t.Fatalf("expected emitter spawn ok, got %s", r)
	}
	handle, _ := h.dock.Entity(r.Value)
	if !h.scene.Emitters.Has(handle) || h.scene.Sprites.Has(handle) {
		t.Fatalf("expected an emitter without a sprite")
	}
}

func TestLoadBadPayloadIsNotOK(t *testing.T) {
	h := newHarness(t, 1)
	f := h.dock.Submit(dock.LoadVector{Format: dock.FormatLottie, Data: []byte(`{"v":"5.7"}`)})
	h.tick(1)
	r := mustResult(t, f)
	if r.Status != dock.StatusNotOK || !strings.Contains(r.Reason, "lottie") {
		t.Fatalf("expected lottie not_ok, got %s", r)
	}
}

func TestOrderedWorkerHandlesOnePerTick(t *testing.T) {
	h := newHarness(t, 1)
	var futures []*dock.Future
	for i := 0; i < 3; i++ {
		futures = append(futures, h.dock.Submit(dock.LoadVector{Format: dock.FormatSVG, Data: []byte(squareSVG)}))
	}
	for tick := 0; tick < 3; tick++ {
		h.tick(1)
		for i, f := range futures {
			_, done := f.TryResult()
			if done != (i <= tick) {
				t.Fatalf("tick %d: command %d resolved=%v", tick, i, done)
			}
		}
	}
	// FIFO: asset ids follow submission order.
	for i, f := range futures {
		if r := mustResult(t, f); r.Value != uint32(i+1) {
			t.Fatalf("expected asset id %d, got %s", i+1, r)
		}
	}
}

func TestCameraCoalescesLatestWins(t *testing.T) {
	h := newHarness(t, 1)
	a := h.dock.Submit(dock.SetCamera{Position: dock.Vec2{X: 1, Y: 1}, Scale: 1})
	b := h.dock.Submit(dock.SetCamera{Position: dock.Vec2{X: 5, Y: 6}, Scale: 2})
	h.tick(1)

	ra, rb := mustResult(t, a), mustResult(t, b)
	if ra.Status != dock.StatusSuperseded || ra.Value != b.ID() {
		t.Fatalf("expected first superseded by %d, got %s", b.ID(), ra)
	}
	if !rb.IsOK() || rb.Value != 1 {
		t.Fatalf("expected second ok(1), got %s", rb)
	}
	cam := h.scene.Camera()
	if cam.Moves != 1 {
		t.Fatalf("expected exactly one camera mutation, got %d", cam.Moves)
	}
	if cam.Position != (dock.Vec2{X: 5, Y: 6}) || cam.Scale != 2 {
		t.Fatalf("expected camera at B, got %+v", cam)
	}
}

func TestCameraCoalescesManyToLast(t *testing.T) {
	h := newHarness(t, 1)
	var futures []*dock.Future
	for i := 1; i <= 4; i++ {
		futures = append(futures, h.dock.Submit(dock.SetCamera{Position: dock.Vec2{X: float64(i)}, Scale: float64(i)}))
	}
	h.tick(1)

	last := futures[len(futures)-1]
	for i, f := range futures[:len(futures)-1] {
		r := mustResult(t, f)
		if r.Status != dock.StatusSuperseded || r.Value != last.ID() {
			t.Fatalf("command %d: expected superseded by %d, got %s", i, last.ID(), r)
		}
	}
	if r := mustResult(t, last); !r.IsOK() {
		t.Fatalf("expected last ok, got %s", r)
	}
	cam := h.scene.Camera()
	if cam.Moves != 1 || cam.Position.X != 4 || cam.Scale != 4 {
		t.Fatalf("expected one mutation to the last camera, got %+v", cam)
	}
}

func TestCameraRejectsBadScale(t *testing.T) {
	h := newHarness(t, 1)
	f := h.dock.Submit(dock.SetCamera{Scale: -1})
	h.tick(1)
	if r := mustResult(t, f); r.Status != dock.StatusNotOK {
		t.Fatalf("expected not_ok, got %s", r)
	}
	if h.scene.Camera().Moves != 0 {
		t.Fatalf("expected camera untouched")
	}
}

func TestPlacementCoalescesPerEntity(t *testing.T) {
	h := newHarness(t, 1)
	asset := h.loadSquare(t)
	e1 := h.spawnAt(t, asset, 0, 0)
	e2 := h.spawnAt(t, asset, 0, 0)

	place := func(id uint32, x float64) *dock.Future {
		return h.dock.Submit(dock.SetPlacement{ID: id, Placement: dock.Placement{Position: dock.Vec2{X: x}}})
	}
	first := place(e1, 10)
	other := place(e2, 20)
	second := place(e1, 30)
	h.tick(1)

	if r := mustResult(t, first); r.Status != dock.StatusSuperseded || r.Value != second.ID() {
		t.Fatalf("expected first placement superseded, got %s", r)
	}
	if r := mustResult(t, second); !r.IsOK() || r.Value != e1 {
		t.Fatalf("expected ok(%d), got %s", e1, r)
	}
	if r := mustResult(t, other); !r.IsOK() || r.Value != e2 {
		t.Fatalf("expected other entity applied, got %s", r)
	}
	h1, _ := h.dock.Entity(e1)
	if pl, _ := h.scene.Placement(h1); pl.Position.X != 30 {
		t.Fatalf("expected latest placement applied, got %+v", pl.Position)
	}
}

func TestPickIsTwoPhase(t *testing.T) {
	h := newHarness(t, 1)
	asset := h.loadSquare(t)
	near := h.spawnAt(t, asset, 100, 100)
	h.spawnAt(t, asset, 110, 100)

	f := h.dock.Submit(dock.Pick{Position: dock.Vec2{X: 101, Y: 100}, Radius: 1})
	h.tick(1)
	if _, ok := f.TryResult(); ok {
		t.Fatalf("expected pick unresolved after the first tick")
	}
	if h.sys.Picker.InFlight() != 1 || h.scene.Regions.Len() != 1 {
		t.Fatalf("expected one open region")
	}
	h.tick(1)
	r := mustResult(t, f)
	if !r.IsOK() || r.Value != near {
		t.Fatalf("expected nearest entity %d, got %s", near, r)
	}
	if h.sys.Picker.InFlight() != 0 || h.scene.Regions.Len() != 0 {
		t.Fatalf("expected region torn down")
	}
}

func TestPickMissAndLimits(t *testing.T) {
	h := newHarness(t, 1)
	miss := h.dock.Submit(dock.Pick{Position: dock.Vec2{X: 500, Y: 500}, Radius: 5})
	h.tick(2)
	if r := mustResult(t, miss); r.Status != dock.StatusNotOK || !strings.Contains(r.Reason, "no entity") {
		t.Fatalf("expected no entity at position, got %s", r)
	}

	wide := h.dock.Submit(dock.Pick{Radius: 1000})
	h.tick(1)
	if r := mustResult(t, wide); r.Status != dock.StatusNotOK {
		t.Fatalf("expected oversized pick rejected, got %s", r)
	}
}

func TestFarCoordinatesAreNotOK(t *testing.T) {
	h := newHarness(t, 1)
	asset := h.loadSquare(t)
	id := h.spawnAt(t, asset, 0, 0)
	far := 137438953462.0

	pick := h.dock.Submit(dock.Pick{Position: dock.Vec2{X: far}, Radius: 1})
	h.tick(2)
	if r := mustResult(t, pick); r.Status != dock.StatusNotOK {
		t.Fatalf("expected far pick rejected, got %s", r)
	}

	spawn := h.dock.Submit(dock.SpawnEntity{Asset: asset, Kind: dock.KindVector, Placement: dock.Placement{Position: dock.Vec2{Y: far}}})
	place := h.dock.Submit(dock.SetPlacement{ID: id, Placement: dock.Placement{Position: dock.Vec2{X: -far}}})
	h.tick(1)
	if r := mustResult(t, spawn); r.Status != dock.StatusNotOK {
		t.Fatalf("expected far spawn rejected, got %s", r)
	}
	if r := mustResult(t, place); r.Status != dock.StatusNotOK {
		t.Fatalf("expected far placement rejected, got %s", r)
	}
	if pl, _ := h.scene.Placement(mustEntity(t, h, id)); pl.Position != (dock.Vec2{}) {
		t.Fatalf("expected entity left in place, got %+v", pl.Position)
	}
}

func mustEntity(t *testing.T, h *harness, id uint32) ecs.EntityID {
	t.Helper()
	e, err := h.dock.Entity(id)
	if err != nil {
		t.Fatalf("entity %d: %v", id, err)
	}
	return e
}

func TestRemovedEntityIsNotPickable(t *testing.T) {
	h := newHarness(t, 1)
	asset := h.loadSquare(t)
	id := h.spawnAt(t, asset, 0, 0)

	rm := h.dock.Submit(dock.RemoveEntity{ID: id})
	h.tick(1)
	if r := mustResult(t, rm); !r.IsOK() || r.Value != 1 {
		t.Fatalf("expected ok(1), got %s", r)
	}
	if h.scene.World.Len() != 0 {
		t.Fatalf("expected entity destroyed by cleanup, got %d alive", h.scene.World.Len())
	}

	f := h.dock.Submit(dock.Pick{Radius: 2})
	h.tick(2)
	if r := mustResult(t, f); r.Status != dock.StatusNotOK {
		t.Fatalf("expected miss after removal, got %s", r)
	}
}

func TestPayloadMismatchIsNotOK(t *testing.T) {
	h := newHarness(t, 1)
	s := NewSpawnerSystem(dock.New(zap.NewNop()), h.scene, 1, zap.NewNop())
	r := s.handle(dock.Envelope{ID: 1, Command: dock.Pick{}})
	if r.Status != dock.StatusNotOK || !strings.Contains(r.Reason, "cannot handle") {
		t.Fatalf("expected mismatch not_ok, got %s", r)
	}
}

func TestWorkerPanicBecomesFault(t *testing.T) {
	h := newHarness(t, 1)
	w := worker{dock: h.dock, log: zap.NewNop()}
	r := w.run(dock.Envelope{ID: 4}, func(dock.Envelope) dock.Result {
		panic(errors.New("scene exploded"))
	})
	if r.Status != dock.StatusFault || !strings.Contains(r.Reason, "scene exploded") {
		t.Fatalf("expected fault, got %s", r)
	}
}

func TestPickFaultLeavesNothingInFlight(t *testing.T) {
	h := newHarness(t, 1)
	picker := h.sys.Picker
	bus := picker.bus
	picker.bus = nil // Emit on a nil bus panics.

	f := h.dock.Submit(dock.Pick{Radius: 5})
	h.tick(1)
	picker.bus = bus
	if r := mustResult(t, f); r.Status != dock.StatusFault {
		t.Fatalf("expected fault, got %s", r)
	}
	if picker.InFlight() != 0 || h.scene.Regions.Len() != 0 {
		t.Fatalf("expected no pick left in flight, got %d pending, %d regions", picker.InFlight(), h.scene.Regions.Len())
	}

	h.tick(2)
	next := h.dock.Submit(dock.Pick{Radius: 5})
	h.tick(2)
	if r := mustResult(t, next); r.Status != dock.StatusNotOK {
		t.Fatalf("expected picker to keep working, got %s", r)
	}
}

func TestDiscardedFutureDoesNotStopWorker(t *testing.T) {
	h := newHarness(t, 1)
	f := h.dock.Submit(dock.SetCamera{Scale: 3})
	f.Discard()
	h.tick(1)
	if h.scene.Camera().Scale != 3 {
		t.Fatalf("expected command applied even though nobody waits")
	}
	if h.dock.Pending() != 0 {
		t.Fatalf("expected registry empty, got %d", h.dock.Pending())
	}
}
