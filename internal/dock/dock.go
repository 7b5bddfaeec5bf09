package dock

import (
	"fmt"
	"sync"

	"github.com/canvasdock/server/internal/asset"
	"github.com/canvasdock/server/internal/core/ecs"
	"go.uber.org/zap"
)

// Envelope is a pending command and the promise its worker must resolve.
type Envelope struct {
	ID      uint32
	Command Command
	Promise *Promise
}

// Dock owns the command registry, the per-class channels, the id allocator
// and the indirection tables. Producers on any goroutine call Submit; workers
// on the tick goroutine call Take and the table methods. The lock is held only
// for map operations, never across a domain effect.
type Dock struct {
	mu        sync.RWMutex
	ids       *Allocator
	commands  map[uint32]Envelope
	channels  map[Class]*queue
	entities  *BiTable[ecs.EntityID]
	vectors   *Table[asset.Handle]
	particles *Table[asset.Handle]
	log       *zap.Logger
}

func New(log *zap.Logger) *Dock {
	return &Dock{
		ids:       NewAllocator(),
		commands:  make(map[uint32]Envelope, 64),
		channels:  make(map[Class]*queue, len(classNames)),
		entities:  NewBiTable[ecs.EntityID]("entity"),
		vectors:   NewTable[asset.Handle]("asset"),
		particles: NewTable[asset.Handle]("particle"),
		log:       log,
	}
}

// Register creates the channel for class and returns its only receiver.
// Registering a class twice panics with a *ConfigError.
func (d *Dock) Register(class Class) *Receiver {
	if _, ok := classNames[class]; !ok {
		panic(&ConfigError{Class: class, Reason: "unknown class"})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.channels[class]; ok {
		panic(&ConfigError{Class: class, Reason: "worker already registered"})
	}
	q := &queue{}
	d.channels[class] = q
	return &Receiver{class: class, q: q}
}

// Submit queues cmd for its class's worker and returns immediately. A class
// with no registered worker is a wiring bug and panics with a *ConfigError.
func (d *Dock) Submit(cmd Command) *Future {
	f, err := d.TrySubmit(cmd)
	if err != nil {
		panic(err)
	}
	return f
}

// TrySubmit is Submit for untrusted input: the configuration fault comes back
// as an error instead of a panic.
func (d *Dock) TrySubmit(cmd Command) (*Future, error) {
	if cmd == nil {
		return nil, &ConfigError{Reason: "nil command"}
	}
	class := cmd.Class()

	d.mu.Lock()
	q, ok := d.channels[class]
	if !ok {
		d.mu.Unlock()
		return nil, &ConfigError{Class: class, Reason: fmt.Sprintf("no worker registered for %T", cmd)}
	}
	id := d.ids.Next(SpaceCommand)
	p, f := newPromise(id)
	d.commands[id] = Envelope{ID: id, Command: cmd, Promise: p}
	q.push(id)
	d.mu.Unlock()

	d.log.Debug("command submitted", zap.Uint32("command", id), zap.Stringer("class", class))
	return f, nil
}

// Take removes and returns the envelope for id. An absent id means the id
// was taken twice or never pushed, both internal inconsistencies.
func (d *Dock) Take(id uint32) (Envelope, error) {
	if id == 0 {
		return Envelope{}, fmt.Errorf("take command: %w", ErrInvalidID)
	}
	d.mu.Lock()
	env, ok := d.commands[id]
	if ok {
		delete(d.commands, id)
	}
	d.mu.Unlock()
	if !ok {
		return Envelope{}, fmt.Errorf("take command %d: %w", id, ErrNotFound)
	}
	return env, nil
}

// Pending reports how many submitted commands have not been taken yet.
func (d *Dock) Pending() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.commands)
}

// Queued reports how many ids wait on class's channel.
func (d *Dock) Queued(class Class) int {
	d.mu.RLock()
	q, ok := d.channels[class]
	d.mu.RUnlock()
	if !ok {
		return 0
	}
	return q.len()
}

// ── Entities ──────────────────────────────────────────────────────

// PushEntity allocates a caller-visible id for h.
func (d *Dock) PushEntity(h ecs.EntityID) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.ids.Next(SpaceEntity)
	if err := d.entities.Insert(id, h); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveEntity deletes both directions of id's mapping.
func (d *Dock) RemoveEntity(id uint32) (ecs.EntityID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entities.Remove(id)
}

func (d *Dock) Entity(id uint32) (ecs.EntityID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entities.Lookup(id)
}

// EntityID translates an internal handle back to its caller-visible id.
func (d *Dock) EntityID(h ecs.EntityID) (uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entities.LookupHandle(h)
}

func (d *Dock) EntityCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entities.Len()
}

// ── Assets ────────────────────────────────────────────────────────

func (d *Dock) PushVector(h asset.Handle) uint32 {
	return d.pushAsset(d.vectors, SpaceAsset, h)
}

// AssetCounts reports how many vector and particle assets are mapped.
func (d *Dock) AssetCounts() (vectors, particles int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vectors.Len(), d.particles.Len()
}

func (d *Dock) Vector(id uint32) (asset.Handle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vectors.Lookup(id)
}

func (d *Dock) PushParticle(h asset.Handle) uint32 {
	return d.pushAsset(d.particles, SpaceParticle, h)
}

func (d *Dock) Particle(id uint32) (asset.Handle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.particles.Lookup(id)
}

func (d *Dock) pushAsset(t *Table[asset.Handle], space Space, h asset.Handle) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.ids.Next(space)
	// A freshly allocated id cannot already be present.
	_ = t.Insert(id, h)
	return id
}
