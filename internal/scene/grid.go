package scene

import (
	"math"
	"sort"

	"github.com/canvasdock/server/internal/core/ecs"
	"github.com/canvasdock/server/internal/dock"
)

// cellSize is the side of a grid cell in scene units.
const cellSize = 64.0

// maxCellSpan caps how many cells one body registers into per axis. Bodies
// larger than that are kept in the oversized set and tested on every query.
const maxCellSpan = 16

type cellKey struct {
	cx int32
	cy int32
}

// cellLimit bounds cell indexes so a range loop's increment cannot wrap.
const cellLimit = math.MaxInt32 - maxCellSpan - 1

// MaxCoordinate is the largest scene coordinate magnitude that still maps to
// its own grid cell.
const MaxCoordinate = cellSize * cellLimit

func toCell(v float64) int32 {
	c := math.Floor(v / cellSize)
	switch {
	case math.IsNaN(c):
		return 0
	case c > cellLimit:
		return cellLimit
	case c < -cellLimit:
		return -cellLimit
	}
	return int32(c)
}

// Circle is a body's or query's footprint.
type Circle struct {
	Center dock.Vec2
	Radius float64
}

func (c Circle) Overlaps(o Circle) bool {
	dx := c.Center.X - o.Center.X
	dy := c.Center.Y - o.Center.Y
	r := c.Radius + o.Radius
	return dx*dx+dy*dy <= r*r
}

func (c Circle) cellRange() (minX, minY, maxX, maxY int32, ok bool) {
	minX, maxX = toCell(c.Center.X-c.Radius), toCell(c.Center.X+c.Radius)
	minY, maxY = toCell(c.Center.Y-c.Radius), toCell(c.Center.Y+c.Radius)
	ok = int64(maxX)-int64(minX) < maxCellSpan && int64(maxY)-int64(minY) < maxCellSpan
	return
}

// Grid is a uniform cell index over entity footprints. Tick goroutine only.
type Grid struct {
	cells     map[cellKey]map[ecs.EntityID]struct{}
	bounds    map[ecs.EntityID]Circle
	oversized map[ecs.EntityID]struct{}
}

func NewGrid() *Grid {
	return &Grid{
		cells:     make(map[cellKey]map[ecs.EntityID]struct{}),
		bounds:    make(map[ecs.EntityID]Circle),
		oversized: make(map[ecs.EntityID]struct{}),
	}
}

// Add places id into every cell its footprint touches.
func (g *Grid) Add(id ecs.EntityID, c Circle) {
	g.bounds[id] = c
	minX, minY, maxX, maxY, ok := c.cellRange()
	if !ok {
		g.oversized[id] = struct{}{}
		return
	}
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			k := cellKey{cx: cx, cy: cy}
			cell := g.cells[k]
			if cell == nil {
				cell = make(map[ecs.EntityID]struct{})
				g.cells[k] = cell
			}
			cell[id] = struct{}{}
		}
	}
}

// Remove takes id out of the grid. Unknown ids are ignored.
func (g *Grid) Remove(id ecs.EntityID) {
	c, ok := g.bounds[id]
	if !ok {
		return
	}
	delete(g.bounds, id)
	if _, big := g.oversized[id]; big {
		delete(g.oversized, id)
		return
	}
	minX, minY, maxX, maxY, _ := c.cellRange()
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			k := cellKey{cx: cx, cy: cy}
			if cell := g.cells[k]; cell != nil {
				delete(cell, id)
				if len(cell) == 0 {
					delete(g.cells, k)
				}
			}
		}
	}
}

// Move updates id's footprint.
func (g *Grid) Move(id ecs.EntityID, c Circle) {
	g.Remove(id)
	g.Add(id, c)
}

func (g *Grid) Bounds(id ecs.EntityID) (Circle, bool) {
	c, ok := g.bounds[id]
	return c, ok
}

func (g *Grid) Len() int { return len(g.bounds) }

// Query returns every body overlapping q, in ascending handle order.
func (g *Grid) Query(q Circle) []ecs.EntityID {
	seen := make(map[ecs.EntityID]struct{})
	var out []ecs.EntityID
	consider := func(id ecs.EntityID) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		if g.bounds[id].Overlaps(q) {
			out = append(out, id)
		}
	}

	minX, minY, maxX, maxY, ok := q.cellRange()
	if ok {
		for cx := minX; cx <= maxX; cx++ {
			for cy := minY; cy <= maxY; cy++ {
				for id := range g.cells[cellKey{cx: cx, cy: cy}] {
					consider(id)
				}
			}
		}
	} else {
		for id := range g.bounds {
			consider(id)
		}
	}
	for id := range g.oversized {
		consider(id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
