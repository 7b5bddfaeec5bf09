package scripting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/canvasdock/server/internal/core/event"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	"github.com/canvasdock/server/internal/scene"
	"github.com/canvasdock/server/internal/system"
	"go.uber.org/zap"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32"><rect width="32" height="32"/></svg>`

// startSim wires every worker and ticks the runner until the test ends.
func startSim(t *testing.T) *dock.Dock {
	t.Helper()
	d := dock.New(zap.NewNop())
	runner := coresys.NewRunner()
	system.RegisterAll(runner, system.Deps{
		Dock:    d,
		Scene:   scene.NewState(),
		Bus:     event.NewBus(),
		Log:     zap.NewNop(),
		PerTick: 1,
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

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestScriptSpawnPickRemove(t *testing.T) {
	d := startSim(t)
	e := NewEngine(d, t.TempDir(), 2*time.Second, zap.NewNop())

	src := `
local dock = require("dock")
local asset = assert(dock.load_svg(SVG))
local id = assert(dock.spawn(asset, 100, 100))
local picked, err = dock.pick(101, 99, 4)
if picked ~= id then error("picked " .. tostring(picked) .. " " .. tostring(err)) end
assert(dock.place(id, 300, 300, 0, 2) == id)
local miss, why = dock.pick(100, 100, 1)
if miss ~= nil or why ~= "not ok: pick: no entity at position" then
	error("expected miss, got " .. tostring(miss) .. " " .. tostring(why))
end
assert(dock.remove(id) == 1)
`
	src = strings.Replace(src, "SVG", "[["+squareSVG+"]]", 1)
	if err := e.RunString(testContext(t), src); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if n := d.EntityCount(); n != 0 {
		t.Fatalf("expected no mapped entities after remove, got %d", n)
	}
	if v, _ := d.AssetCounts(); v != 1 {
		t.Fatalf("expected one vector asset, got %d", v)
	}
}

func TestScriptFailuresAreValues(t *testing.T) {
	d := startSim(t)
	e := NewEngine(d, t.TempDir(), 2*time.Second, zap.NewNop())

	src := `
local v, err = dock.remove(42)
if v ~= nil or string.sub(err, 1, 7) ~= "not ok:" then
	error("remove unknown: " .. tostring(err))
end
v, err = dock.load_svg("<html/>")
if v ~= nil or string.sub(err, 1, 7) ~= "not ok:" then
	error("bad svg: " .. tostring(err))
end
v, err = dock.camera(0, 0, 0)
if v ~= nil or string.sub(err, 1, 7) ~= "not ok:" then
	error("zero camera scale: " .. tostring(err))
end
`
	if err := e.RunString(testContext(t), src); err != nil {
		t.Fatalf("script failed: %v", err)
	}
}

func TestScriptCallClosedOnTimeout(t *testing.T) {
	// Workers are registered but nothing ticks, so every call times out.
	d := dock.New(zap.NewNop())
	system.RegisterAll(coresys.NewRunner(), system.Deps{
		Dock: d, Scene: scene.NewState(), Bus: event.NewBus(), Log: zap.NewNop(),
	})
	e := NewEngine(d, t.TempDir(), 20*time.Millisecond, zap.NewNop())

	src := `
local v, err = dock.camera(1, 2)
if v ~= nil or err ~= "closed" then error("expected closed, got " .. tostring(err)) end
`
	if err := e.RunString(testContext(t), src); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if d.Pending() != 1 {
		t.Fatalf("expected the command to stay queued, got %d pending", d.Pending())
	}
}

func TestRunStartupStopsAtFirstError(t *testing.T) {
	d := startSim(t)
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.lua", `assert(dock.camera(5, 5, 2) == 1)`)
	write("b.lua", `error("boom")`)
	write("c.lua", `assert(dock.camera(9, 9) == 1)`)

	e := NewEngine(d, dir, time.Second, zap.NewNop())
	n, err := e.RunStartup(testContext(t), []string{"a.lua", "b.lua", "c.lua"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected boom, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 script to finish, got %d", n)
	}
}

func TestSpawnRejectsUnknownKind(t *testing.T) {
	d := startSim(t)
	e := NewEngine(d, t.TempDir(), time.Second, zap.NewNop())
	err := e.RunString(testContext(t), `dock.spawn(1, 0, 0, "mesh")`)
	if err == nil || !strings.Contains(err.Error(), "kind") {
		t.Fatalf("expected kind argument error, got %v", err)
	}
}
