package world

import "math"

// Vec3 is a block-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// BoxAround returns the cube of half-size r centred on p.
func BoxAround(p Vec3, r float64) Box {
	return Box{
		Min: Vec3{X: p.X - r, Y: p.Y - r, Z: p.Z - r},
		Max: Vec3{X: p.X + r, Y: p.Y + r, Z: p.Z + r},
	}
}

func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

type cellKey struct {
	X, Z int
}

// grid buckets ids by horizontal cell so box queries only scan overlapping cells.
type grid struct {
	size  float64
	cells map[cellKey]map[PlayerID]struct{}
}

func newGrid(size float64) *grid {
	if size <= 0 {
		size = 16
	}
	return &grid{size: size, cells: make(map[cellKey]map[PlayerID]struct{})}
}

func (g *grid) key(p Vec3) cellKey {
	return cellKey{X: int(math.Floor(p.X / g.size)), Z: int(math.Floor(p.Z / g.size))}
}

func (g *grid) insert(id PlayerID, p Vec3) {
	k := g.key(p)
	cell, ok := g.cells[k]
	if !ok {
		cell = make(map[PlayerID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
}

func (g *grid) remove(id PlayerID, p Vec3) {
	k := g.key(p)
	cell, ok := g.cells[k]
	if !ok {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(g.cells, k)
	}
}

func (g *grid) move(id PlayerID, from, to Vec3) {
	if g.key(from) == g.key(to) {
		return
	}
	g.remove(id, from)
	g.insert(id, to)
}

// candidates visits the ids in every cell overlapping box. When the box spans more cells
// than are occupied, every occupied cell is visited instead; callers filter by position.
func (g *grid) candidates(box Box, visit func(PlayerID)) {
	spanX := math.Floor(box.Max.X/g.size) - math.Floor(box.Min.X/g.size) + 1
	spanZ := math.Floor(box.Max.Z/g.size) - math.Floor(box.Min.Z/g.size) + 1
	if !(spanX*spanZ <= float64(len(g.cells))) {
		for _, cell := range g.cells {
			for id := range cell {
				visit(id)
			}
		}
		return
	}
	lo := g.key(box.Min)
	hi := g.key(box.Max)
	for x := lo.X; x <= hi.X; x++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for id := range g.cells[cellKey{X: x, Z: z}] {
				visit(id)
			}
		}
	}
}
