package dock

import "sync/atomic"

// Space names one of the independent identifier spaces handed to callers.
type Space int

const (
	SpaceCommand Space = iota
	SpaceEntity
	SpaceAsset
	SpaceParticle
	numSpaces
)

var spaceNames = [numSpaces]string{"command", "entity", "asset", "particle"}

func (s Space) String() string {
	if s < 0 || s >= numSpaces {
		return "unknown"
	}
	return spaceNames[s]
}

// Allocator hands out ids per space. Every space starts at 1; 0 is reserved as
// the invalid id and is never returned.
//
// Wraparound after 2^32-1 allocations is not handled.
type Allocator struct {
	counters [numSpaces]atomic.Uint32
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns the next id in the given space. Safe for concurrent use.
func (a *Allocator) Next(space Space) uint32 {
	if space < 0 || space >= numSpaces {
		panic(&ConfigError{Reason: "unknown id space " + space.String()})
	}
	return a.counters[space].Add(1)
}

// Last returns the most recently allocated id in the space, or 0 if none.
func (a *Allocator) Last(space Space) uint32 {
	if space < 0 || space >= numSpaces {
		return 0
	}
	return a.counters[space].Load()
}
