package scripting

import (
	"context"
	"time"

	"github.com/canvasdock/server/internal/dock"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Error strings a dock call returns as its second value.
const (
	errSuperseded = "superseded"
	errClosed     = "closed"
)

// bridge exposes dock commands to one Lua VM. Each call submits a command and
// blocks the script until the result arrives.
type bridge struct {
	dock    *dock.Dock
	timeout time.Duration
	log     *zap.Logger
}

func (b *bridge) loader(vm *lua.LState) int {
	vm.Push(b.module(vm))
	return 1
}

func (b *bridge) module(vm *lua.LState) *lua.LTable {
	return vm.SetFuncs(vm.NewTable(), map[string]lua.LGFunction{
		"load_svg":      b.loadSVG,
		"load_lottie":   b.loadLottie,
		"load_particle": b.loadParticle,
		"spawn":         b.spawn,
		"remove":        b.remove,
		"place":         b.place,
		"camera":        b.camera,
		"pick":          b.pick,
	})
}

// dock.load_svg(bytes) -> asset id
func (b *bridge) loadSVG(vm *lua.LState) int {
	return b.call(vm, dock.LoadVector{Format: dock.FormatSVG, Data: []byte(vm.CheckString(1))})
}

// dock.load_lottie(bytes) -> asset id
func (b *bridge) loadLottie(vm *lua.LState) int {
	return b.call(vm, dock.LoadVector{Format: dock.FormatLottie, Data: []byte(vm.CheckString(1))})
}

// dock.load_particle(bytes) -> particle id
func (b *bridge) loadParticle(vm *lua.LState) int {
	return b.call(vm, dock.LoadParticle{Data: []byte(vm.CheckString(1))})
}

// dock.spawn(asset, x, y [, kind [, particle]]) -> entity id
func (b *bridge) spawn(vm *lua.LState) int {
	kind, ok := dock.ParseKind(vm.OptString(4, "vector"))
	if !ok {
		vm.ArgError(4, "kind must be \"vector\" or \"particle\"")
		return 0
	}
	return b.call(vm, dock.SpawnEntity{
		Asset: checkID(vm, 1),
		Placement: dock.Placement{
			Position: dock.Vec2{X: float64(vm.CheckNumber(2)), Y: float64(vm.CheckNumber(3))},
		},
		Kind:     kind,
		Particle: optID(vm, 5),
	})
}

// dock.remove(id) -> 1
func (b *bridge) remove(vm *lua.LState) int {
	return b.call(vm, dock.RemoveEntity{ID: checkID(vm, 1)})
}

// dock.place(id, x, y [, rotation [, sx [, sy [, z]]]]) -> id
func (b *bridge) place(vm *lua.LState) int {
	sx := float64(vm.OptNumber(5, 1))
	return b.call(vm, dock.SetPlacement{
		ID: checkID(vm, 1),
		Placement: dock.Placement{
			Position: dock.Vec2{X: float64(vm.CheckNumber(2)), Y: float64(vm.CheckNumber(3))},
			Rotation: float64(vm.OptNumber(4, 0)),
			Scale:    dock.Vec2{X: sx, Y: float64(vm.OptNumber(6, lua.LNumber(sx)))},
			Z:        float64(vm.OptNumber(7, 0)),
		},
	})
}

// dock.camera(x, y [, scale]) -> 1
func (b *bridge) camera(vm *lua.LState) int {
	return b.call(vm, dock.SetCamera{
		Position: dock.Vec2{X: float64(vm.CheckNumber(1)), Y: float64(vm.CheckNumber(2))},
		Scale:    float64(vm.OptNumber(3, 1)),
	})
}

// dock.pick(x, y [, radius]) -> entity id
func (b *bridge) pick(vm *lua.LState) int {
	return b.call(vm, dock.Pick{
		Position: dock.Vec2{X: float64(vm.CheckNumber(1)), Y: float64(vm.CheckNumber(2))},
		Radius:   float64(vm.OptNumber(3, 0)),
	})
}

// call submits cmd, waits for its result and pushes either the value or
// nil plus an error string.
func (b *bridge) call(vm *lua.LState, cmd dock.Command) int {
	fut, err := b.dock.TrySubmit(cmd)
	if err != nil {
		vm.RaiseError("dock: %v", err)
		return 0
	}

	ctx := vm.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	r, err := fut.Await(ctx)
	if err != nil {
		fut.Discard()
		b.log.Debug("lua dock call abandoned", zap.Uint32("command", fut.ID()), zap.Error(err))
		return pushFailure(vm, errClosed)
	}
	switch r.Status {
	case dock.StatusOK:
		vm.Push(lua.LNumber(r.Value))
		return 1
	case dock.StatusSuperseded:
		return pushFailure(vm, errSuperseded)
	case dock.StatusFault:
		return pushFailure(vm, "fault: "+r.Reason)
	default:
		return pushFailure(vm, "not ok: "+r.Reason)
	}
}

func pushFailure(vm *lua.LState, msg string) int {
	vm.Push(lua.LNil)
	vm.Push(lua.LString(msg))
	return 2
}

func checkID(vm *lua.LState, n int) uint32 {
	v := vm.CheckInt64(n)
	if v <= 0 || v > int64(^uint32(0)) {
		vm.ArgError(n, "id out of range")
	}
	return uint32(v)
}

func optID(vm *lua.LState, n int) uint32 {
	if vm.Get(n) == lua.LNil {
		return 0
	}
	return checkID(vm, n)
}
