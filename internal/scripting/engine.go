package scripting

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/canvasdock/server/internal/dock"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine runs Lua scripts that drive the simulation through the dock.
// Every run gets its own VM on the caller's goroutine, so scripts may block
// on command results without ever touching the tick loop.
type Engine struct {
	dock    *dock.Dock
	dir     string
	timeout time.Duration
	log     *zap.Logger
}

// NewEngine creates an engine resolving relative script names under dir.
// callTimeout bounds how long a single dock call waits; zero means no bound
// beyond the run's context.
func NewEngine(d *dock.Dock, dir string, callTimeout time.Duration, log *zap.Logger) *Engine {
	return &Engine{dock: d, dir: dir, timeout: callTimeout, log: log}
}

// RunScript executes the file at path.
func (e *Engine) RunScript(ctx context.Context, path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}
	vm := e.newState(ctx)
	defer vm.Close()
	if err := vm.DoFile(path); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	e.log.Debug("lua script finished", zap.String("file", path))
	return nil
}

// RunString executes src as a chunk.
func (e *Engine) RunString(ctx context.Context, src string) error {
	vm := e.newState(ctx)
	defer vm.Close()
	if err := vm.DoString(src); err != nil {
		return fmt.Errorf("run chunk: %w", err)
	}
	return nil
}

// RunStartup runs the named scripts in order and stops at the first failure.
func (e *Engine) RunStartup(ctx context.Context, names []string) (int, error) {
	for i, name := range names {
		if err := e.RunScript(ctx, name); err != nil {
			return i, err
		}
	}
	return len(names), nil
}

func (e *Engine) newState(ctx context.Context) *lua.LState {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetContext(ctx)
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	b := &bridge{dock: e.dock, timeout: e.timeout, log: e.log}
	vm.PreloadModule("dock", b.loader)
	// Scripts may also use the module without require.
	vm.SetGlobal("dock", b.module(vm))
	return vm
}
