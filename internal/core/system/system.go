package system

import "time"

// Phase fixes execution order within a tick. Removals run before
// modifications, modifications before spawns, spawns before loads, so a
// tick's deletions settle before new allocations and no modification races a
// spawn still in flight.
type Phase int

const (
	PhaseEvents  Phase = iota // 0: swap + dispatch last tick's events
	PhaseRemove               // 1: despawn entities
	PhaseModify               // 2: placements, camera
	PhasePick                 // 3: open pick query regions
	PhaseSpawn                // 4: create entities
	PhaseLoad                 // 5: decode assets
	PhaseCleanup              // 6: destroy queued entities
)

var phaseNames = [...]string{"events", "remove", "modify", "pick", "spawn", "load", "cleanup"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// System is run once per tick by the Runner.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
