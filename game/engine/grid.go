package engine

// Cell is one grid square: a tile and at most one occupant. The occupant is
// a lookup into the level's roster or collectible list, never an owner.
type Cell struct {
	Tile     Tile
	occupant any // *Actor or *Collectible
}

// Grid is a fixed-size 2D array of cells, row-major
type Grid struct {
	width  int
	height int
	cells  []Cell
}

// NewGrid creates a width x height grid of Path tiles
func NewGrid(width, height int) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	for i := range g.cells {
		g.cells[i].Tile = PathTile()
	}
	return g
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// InBounds reports whether p lies on the grid
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

func (g *Grid) cell(p Position) *Cell {
	return &g.cells[p.Y*g.width+p.X]
}

// TileAt returns the tile at p. Out-of-bounds positions read as Wall.
func (g *Grid) TileAt(p Position) Tile {
	if !g.InBounds(p) {
		return WallTile()
	}
	return g.cell(p).Tile
}

// SetTile replaces the tile at p wholesale; the occupant stays with the cell
func (g *Grid) SetTile(p Position, t Tile) {
	if !g.InBounds(p) {
		return
	}
	g.cell(p).Tile = t
}

// ActorAt returns the actor occupying p, if any
func (g *Grid) ActorAt(p Position) *Actor {
	if !g.InBounds(p) {
		return nil
	}
	a, _ := g.cell(p).occupant.(*Actor)
	return a
}

// CollectibleAt returns the collectible occupying p, if any
func (g *Grid) CollectibleAt(p Position) *Collectible {
	if !g.InBounds(p) {
		return nil
	}
	c, _ := g.cell(p).occupant.(*Collectible)
	return c
}

// Occupied reports whether any actor or collectible sits on p
func (g *Grid) Occupied(p Position) bool {
	return g.InBounds(p) && g.cell(p).occupant != nil
}

func (g *Grid) place(p Position, occupant any) {
	g.cell(p).occupant = occupant
}

func (g *Grid) clear(p Position) {
	if g.InBounds(p) {
		g.cell(p).occupant = nil
	}
}

// Each calls fn for every cell in row-major order
func (g *Grid) Each(fn func(p Position, t Tile)) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			p := Position{X: x, Y: y}
			fn(p, g.cell(p).Tile)
		}
	}
}
