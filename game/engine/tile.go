package engine

// TileKind is the closed set of tile variants
type TileKind int

const (
	// TileEmpty is the placeholder left where a tile could not be decoded.
	TileEmpty TileKind = iota
	TilePath
	TileWall
	TileWater
	TileDirt
	TileIce
	TileLockedDoor
	TileButton
	TileTrap
	TileChipSocket
	TileExit
)

var tileKindNames = map[TileKind]string{
	TileEmpty:      "empty",
	TilePath:       "path",
	TileWall:       "wall",
	TileWater:      "water",
	TileDirt:       "dirt",
	TileIce:        "ice",
	TileLockedDoor: "lockedDoor",
	TileButton:     "button",
	TileTrap:       "trap",
	TileChipSocket: "chipSocket",
	TileExit:       "exit",
}

// String returns the tile type name used in saved documents
func (k TileKind) String() string {
	if name, ok := tileKindNames[k]; ok {
		return name
	}
	return "empty"
}

// ParseTileKind maps a saved type name back to its kind
func ParseTileKind(name string) (TileKind, bool) {
	for kind, n := range tileKindNames {
		if n == name {
			return kind, true
		}
	}
	return TileEmpty, false
}

// MarshalText implements encoding.TextMarshaler
func (k TileKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Tile is a single cell's terrain. Tiles are values: a transforming cell
// receives a whole new Tile.
type Tile struct {
	Kind           TileKind
	Corner         Corner   // Ice
	KeyColor       KeyColor // LockedDoor
	ButtonID       int      // Button
	LinkedButtonID int      // Trap
	RequiredChips  int      // ChipSocket

	// Trap link to its button cell; unset means the trap is inert.
	linked   bool
	buttonAt Position
}

// PathTile returns a plain floor tile
func PathTile() Tile { return Tile{Kind: TilePath} }

// WallTile returns a wall tile
func WallTile() Tile { return Tile{Kind: TileWall} }

// WaterTile returns a water tile
func WaterTile() Tile { return Tile{Kind: TileWater} }

// DirtTile returns a dirt tile
func DirtTile() Tile { return Tile{Kind: TileDirt} }

// ExitTile returns an exit tile
func ExitTile() Tile { return Tile{Kind: TileExit} }

// IceTile returns an ice tile with the given corner
func IceTile(c Corner) Tile { return Tile{Kind: TileIce, Corner: c} }

// DoorTile returns a locked door opened by a key of color c
func DoorTile(c KeyColor) Tile { return Tile{Kind: TileLockedDoor, KeyColor: c} }

// ButtonTile returns a button with the given id
func ButtonTile(id int) Tile { return Tile{Kind: TileButton, ButtonID: id} }

// TrapTile returns an unlinked trap referring to button id
func TrapTile(id int) Tile { return Tile{Kind: TileTrap, LinkedButtonID: id} }

// SocketTile returns a chip socket requiring n chips
func SocketTile(n int) Tile { return Tile{Kind: TileChipSocket, RequiredChips: n} }

// LinkedTo returns a copy of the trap linked to the button at pos
func (t Tile) LinkedTo(pos Position) Tile {
	t.linked = true
	t.buttonAt = pos
	return t
}

// Link returns the linked button position of a trap
func (t Tile) Link() (Position, bool) {
	return t.buttonAt, t.linked
}
