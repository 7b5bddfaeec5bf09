package scene

import (
	"errors"
	"fmt"

	"github.com/canvasdock/server/internal/core/ecs"
	"github.com/canvasdock/server/internal/dock"
)

var (
	ErrRegionResolved = errors.New("pick region already resolved")
	ErrUnknownRegion  = errors.New("unknown pick region")
	ErrNothingPicked  = errors.New("no entity at position")
)

// Region is a transient pick query. It resolves at most once and is torn
// down right after.
type Region struct {
	ID       uint32
	Area     Circle
	Command  uint32
	resolved bool
}

// Regions tracks open pick regions.
type Regions struct {
	next uint32
	open map[uint32]*Region
}

func NewRegions() *Regions {
	return &Regions{open: make(map[uint32]*Region)}
}

func (r *Regions) Open(area Circle, command uint32) *Region {
	r.next++
	reg := &Region{ID: r.next, Area: area, Command: command}
	r.open[reg.ID] = reg
	return reg
}

func (r *Regions) Get(id uint32) (*Region, bool) {
	reg, ok := r.open[id]
	return reg, ok
}

func (r *Regions) Close(id uint32) {
	delete(r.open, id)
}

func (r *Regions) Len() int { return len(r.open) }

// OpenPick starts a pick at pos. The region overlaps bodies from the next
// resolve onward.
func (s *State) OpenPick(pos dock.Vec2, radius float64, command uint32) (*Region, error) {
	if !inBounds(pos.X) || !inBounds(pos.Y) || !inBounds(radius) || radius < 0 {
		return nil, fmt.Errorf("pick at %v radius %g: %w", pos, radius, ErrBadPlacement)
	}
	return s.Regions.Open(Circle{Center: pos, Radius: radius}, command), nil
}

// ResolvePick settles region id against the live bodies it overlaps and tears
// the region down. The body whose centre is nearest the pick centre wins;
// equal distances go to the lowest handle.
func (s *State) ResolvePick(id uint32) (ecs.EntityID, error) {
	reg, ok := s.Regions.Get(id)
	if !ok {
		return 0, fmt.Errorf("region %d: %w", id, ErrUnknownRegion)
	}
	if reg.resolved {
		return 0, fmt.Errorf("region %d: %w", id, ErrRegionResolved)
	}
	reg.resolved = true
	defer s.Regions.Close(id)

	var (
		best     ecs.EntityID
		bestDist = -1.0
	)
	for _, cand := range s.Grid.Query(reg.Area) {
		if !s.Live(cand) {
			continue
		}
		b, _ := s.Grid.Bounds(cand)
		dx := b.Center.X - reg.Area.Center.X
		dy := b.Center.Y - reg.Area.Center.Y
		d := dx*dx + dy*dy
		// Query returns ascending handles, so strict < keeps the lowest on ties.
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if bestDist < 0 {
		return 0, ErrNothingPicked
	}
	return best, nil
}
