package collision

import (
	"math"
	"slices"
)

type cellKey struct{ X, Z int }

// Grid is a uniform bucket grid over collider indices. It never holds
// colliders themselves, only their arena indices.
type Grid struct {
	cell  float64
	cells map[cellKey][]int
}

// NewGrid buckets every valid collider into each cell its circle overlaps.
func NewGrid(colliders []Collider, cellSize float64) *Grid {
	g := &Grid{cell: cellSize, cells: make(map[cellKey][]int)}
	for i := range colliders {
		c := &colliders[i]
		if !c.valid() {
			continue
		}
		x0, z0 := g.key(c.X-c.Radius, c.Z-c.Radius)
		x1, z1 := g.key(c.X+c.Radius, c.Z+c.Radius)
		for cz := z0; cz <= z1; cz++ {
			for cx := x0; cx <= x1; cx++ {
				k := cellKey{cx, cz}
				g.cells[k] = append(g.cells[k], i)
			}
		}
	}
	return g
}

// Query appends to out the indices of colliders whose cells overlap the square
// of half-size radius around (x, z), sorted ascending without duplicates.
func (g *Grid) Query(x, z, radius float64, out []int) []int {
	out = out[:0]
	x0, z0 := g.key(x-radius, z-radius)
	x1, z1 := g.key(x+radius, z+radius)
	for cz := z0; cz <= z1; cz++ {
		for cx := x0; cx <= x1; cx++ {
			out = append(out, g.cells[cellKey{cx, cz}]...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (g *Grid) key(x, z float64) (int, int) {
	return int(math.Floor(x / g.cell)), int(math.Floor(z / g.cell))
}
