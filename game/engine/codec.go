package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LevelDocument is the on-disk form of a level. Hand-authored levels use
// short tile codes; saved levels use one TileRecord object per cell. Both
// forms decode to the same state.
type LevelDocument struct {
	Name         string              `json:"name,omitempty" jsonschema:"description=Display name"`
	Description  string              `json:"description,omitempty"`
	Tiles        [][]TileEntry       `json:"tiles" jsonschema:"required,description=Rows of tiles; all rows have the same width"`
	Actors       []ActorRecord       `json:"actors" jsonschema:"required"`
	Collectibles []CollectibleRecord `json:"collectibles,omitempty"`
	Timer        int                 `json:"timer" jsonschema:"minimum=0,description=Seconds on the clock; 0 means untimed"`
	LevelPath    string              `json:"levelPath,omitempty"`

	// Resume state, written by the save form only.
	Tick       int  `json:"tick,omitempty"`
	TimerTicks int  `json:"timerTicks,omitempty"`
	ExitAt     *int `json:"exitAt,omitempty"`
	// Timed keeps a run-out clock timed; a zero timer alone reads as untimed.
	Timed bool `json:"timed,omitempty"`
}

// TileRecord is the verbose per-cell save form
type TileRecord struct {
	Type             string `json:"type" jsonschema:"required,enum=empty,enum=path,enum=wall,enum=water,enum=dirt,enum=ice,enum=lockedDoor,enum=button,enum=trap,enum=chipSocket,enum=exit"`
	Corner           string `json:"corner,omitempty" jsonschema:"enum=NONE,enum=BOTTOM_LEFT,enum=BOTTOM_RIGHT,enum=TOP_LEFT,enum=TOP_RIGHT"`
	RequiredKeyColor string `json:"requiredKeyColor,omitempty" jsonschema:"enum=red,enum=green,enum=yellow,enum=blue"`
	ID               *int   `json:"id,omitempty"`
	LinkedButtonID   *int   `json:"linkedButtonId,omitempty"`
	RequiredChips    *int   `json:"requiredChips,omitempty"`
}

// TileEntry is one cell of the tiles array: a short code string or a record
type TileEntry struct {
	Code   string
	Record *TileRecord
}

// MarshalJSON writes the record form when present, else the short code
func (e TileEntry) MarshalJSON() ([]byte, error) {
	if e.Record != nil {
		return json.Marshal(e.Record)
	}
	return json.Marshal(e.Code)
}

// UnmarshalJSON accepts either a string code or a record object
func (e *TileEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty tile entry")
	}
	switch data[0] {
	case '"':
		e.Record = nil
		return json.Unmarshal(data, &e.Code)
	case '{':
		e.Code = ""
		e.Record = &TileRecord{}
		return json.Unmarshal(data, e.Record)
	}
	return fmt.Errorf("tile entry must be a string or an object, got %s", data)
}

// ActorRecord is one roster entry. Type-specific fields are ignored by
// kinds that do not use them.
type ActorRecord struct {
	Type           string   `json:"type" jsonschema:"required,enum=player,enum=block,enum=bug,enum=pinkball,enum=frog"`
	X              int      `json:"x" jsonschema:"required"`
	Y              int      `json:"y" jsonschema:"required"`
	MoveInterval   int      `json:"moveInterval,omitempty" jsonschema:"minimum=1"`
	Facing         string   `json:"facing,omitempty" jsonschema:"enum=up,enum=down,enum=left,enum=right"`
	FollowLeftEdge *bool    `json:"followLeftEdge,omitempty"`
	Chips          int      `json:"chips,omitempty"`
	Keys           []string `json:"keys,omitempty"`
	Queue          []string `json:"queue,omitempty" jsonschema:"description=Player input still waiting to be consumed"`
	Alive          *bool    `json:"alive,omitempty"`
	BusyUntil      int      `json:"busyUntil,omitempty"`
}

// CollectibleRecord is one collectible entry
type CollectibleRecord struct {
	Type  string `json:"type" jsonschema:"required,enum=key,enum=chip,enum=generic"`
	X     int    `json:"x" jsonschema:"required"`
	Y     int    `json:"y" jsonschema:"required"`
	Color string `json:"color,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

var doorCodes = map[string]KeyColor{
	"RD": KeyRed,
	"GD": KeyGreen,
	"YD": KeyYellow,
	"BD": KeyBlue,
}

var iceCodes = map[string]Corner{
	"I":    CornerNone,
	"I_BL": BottomLeft,
	"I_BR": BottomRight,
	"I_TL": TopLeft,
	"I_TR": TopRight,
}

// ParseTileCode decodes a short tile code
func ParseTileCode(code string) (Tile, error) {
	switch code {
	case "P":
		return PathTile(), nil
	case "W":
		return WallTile(), nil
	case "G":
		return DirtTile(), nil
	case "S":
		return WaterTile(), nil
	case "E":
		return ExitTile(), nil
	}
	if color, ok := doorCodes[code]; ok {
		return DoorTile(color), nil
	}
	if corner, ok := iceCodes[code]; ok {
		return IceTile(corner), nil
	}
	for prefix, build := range map[string]func(int) Tile{
		"B_":  ButtonTile,
		"T_":  TrapTile,
		"CS_": SocketTile,
	} {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(code, prefix))
		if err != nil || n < 0 {
			return Tile{}, fmt.Errorf("%w: %q", ErrUnknownTileType, code)
		}
		return build(n), nil
	}
	return Tile{}, fmt.Errorf("%w: %q", ErrUnknownTileType, code)
}

// TileCode returns the short code for t. The placeholder renders as "?".
func TileCode(t Tile) string {
	switch t.Kind {
	case TilePath:
		return "P"
	case TileWall:
		return "W"
	case TileDirt:
		return "G"
	case TileWater:
		return "S"
	case TileExit:
		return "E"
	case TileLockedDoor:
		for code, color := range doorCodes {
			if color == t.KeyColor {
				return code
			}
		}
	case TileIce:
		for code, corner := range iceCodes {
			if corner == t.Corner {
				return code
			}
		}
	case TileButton:
		return "B_" + strconv.Itoa(t.ButtonID)
	case TileTrap:
		return "T_" + strconv.Itoa(t.LinkedButtonID)
	case TileChipSocket:
		return "CS_" + strconv.Itoa(t.RequiredChips)
	}
	return "?"
}

func decodeTileRecord(rec *TileRecord) (Tile, error) {
	kind, ok := ParseTileKind(rec.Type)
	if !ok {
		return Tile{}, fmt.Errorf("%w: %q", ErrUnknownTileType, rec.Type)
	}
	need := func(v *int, field string) (int, error) {
		if v == nil || *v < 0 {
			return 0, fmt.Errorf("%w: %s needs a non-negative %s", ErrUnknownTileType, rec.Type, field)
		}
		return *v, nil
	}
	switch kind {
	case TileIce:
		corner, err := ParseCorner(rec.Corner)
		if err != nil {
			return Tile{}, fmt.Errorf("%w: %v", ErrUnknownTileType, err)
		}
		return IceTile(corner), nil
	case TileLockedDoor:
		color := KeyColor(rec.RequiredKeyColor)
		if !color.Valid() {
			return Tile{}, fmt.Errorf("%w: door color %q", ErrUnknownTileType, rec.RequiredKeyColor)
		}
		return DoorTile(color), nil
	case TileButton:
		id, err := need(rec.ID, "id")
		if err != nil {
			return Tile{}, err
		}
		return ButtonTile(id), nil
	case TileTrap:
		id, err := need(rec.LinkedButtonID, "linkedButtonId")
		if err != nil {
			return Tile{}, err
		}
		return TrapTile(id), nil
	case TileChipSocket:
		n, err := need(rec.RequiredChips, "requiredChips")
		if err != nil {
			return Tile{}, err
		}
		return SocketTile(n), nil
	}
	return Tile{Kind: kind}, nil
}

func encodeTileRecord(t Tile) *TileRecord {
	rec := &TileRecord{Type: t.Kind.String()}
	switch t.Kind {
	case TileIce:
		rec.Corner = t.Corner.String()
	case TileLockedDoor:
		rec.RequiredKeyColor = string(t.KeyColor)
	case TileButton:
		id := t.ButtonID
		rec.ID = &id
	case TileTrap:
		id := t.LinkedButtonID
		rec.LinkedButtonID = &id
	case TileChipSocket:
		n := t.RequiredChips
		rec.RequiredChips = &n
	}
	return rec
}

func decodeTileEntry(e TileEntry) (Tile, error) {
	if e.Record != nil {
		return decodeTileRecord(e.Record)
	}
	return ParseTileCode(e.Code)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDocument, fmt.Sprintf(format, args...))
}

// Deserialize parses a level document. A fatal problem returns an error and
// no state; recoverable problems come back as Diagnostics next to the state.
func Deserialize(data []byte, rules Rules) (*LevelState, Diagnostics, error) {
	var doc LevelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return Decode(&doc, rules)
}

// Decode builds a fresh LevelState from doc
func Decode(doc *LevelDocument, rules Rules) (*LevelState, Diagnostics, error) {
	if doc == nil || len(doc.Tiles) == 0 {
		return nil, nil, malformed("missing tiles")
	}
	if doc.Actors == nil {
		return nil, nil, malformed("missing actors")
	}
	height := len(doc.Tiles)
	width := len(doc.Tiles[0])
	if width < MinGridSize || width > MaxGridSize || height > MaxGridSize {
		return nil, nil, malformed("grid %dx%d outside %d..%d", width, height, MinGridSize, MaxGridSize)
	}
	for y, row := range doc.Tiles {
		if len(row) != width {
			return nil, nil, malformed("row %d has %d tiles, want %d", y, len(row), width)
		}
	}
	if doc.Timer < 0 {
		return nil, nil, malformed("negative timer %d", doc.Timer)
	}

	l := NewLevel(width, height, rules)
	l.Name = doc.Name
	l.LevelPath = doc.LevelPath
	l.SetTimer(doc.Timer)
	if doc.Timed {
		l.timed = true
	}
	l.tick = doc.Tick
	l.timerTicks = doc.TimerTicks
	if doc.ExitAt != nil {
		l.exitPending = true
		l.exitAt = *doc.ExitAt
	}

	diags := decodeTiles(l, doc.Tiles)

	for i, rec := range doc.Actors {
		if err := decodeActor(l, rec); err != nil {
			return nil, nil, fmt.Errorf("actor %d: %w", i, err)
		}
	}

	for i, rec := range doc.Collectibles {
		c, err := decodeCollectible(rec)
		if err != nil {
			diags = append(diags, fmt.Errorf("collectible %d: %w", i, err))
			continue
		}
		if err := l.AddCollectible(c); err != nil {
			return nil, nil, fmt.Errorf("collectible %d: %w: %v", i, ErrMalformedDocument, err)
		}
	}
	return l, diags, nil
}

// decodeTiles places every tile. Buttons are recorded by id as they appear;
// a trap seen before its button waits in deferred until the button shows up,
// and whatever is still waiting at the end stays inert.
func decodeTiles(l *LevelState, rows [][]TileEntry) Diagnostics {
	var diags Diagnostics
	buttons := make(map[int]Position)
	deferred := make(map[int][]Position)

	for y, row := range rows {
		for x, entry := range row {
			p := Position{X: x, Y: y}
			t, err := decodeTileEntry(entry)
			if err != nil {
				diags = append(diags, fmt.Errorf("tile %s: %w", p, err))
				l.Grid.SetTile(p, Tile{Kind: TileEmpty})
				continue
			}
			switch t.Kind {
			case TileButton:
				if first, dup := buttons[t.ButtonID]; dup {
					diags = append(diags, fmt.Errorf("tile %s: %w: %d already at %s", p, ErrDuplicateButton, t.ButtonID, first))
					break
				}
				buttons[t.ButtonID] = p
				for _, trapAt := range deferred[t.ButtonID] {
					l.Grid.SetTile(trapAt, l.Grid.TileAt(trapAt).LinkedTo(p))
				}
				delete(deferred, t.ButtonID)
			case TileTrap:
				if at, ok := buttons[t.LinkedButtonID]; ok {
					t = t.LinkedTo(at)
				} else {
					deferred[t.LinkedButtonID] = append(deferred[t.LinkedButtonID], p)
				}
			}
			l.Grid.SetTile(p, t)
		}
	}

	ids := make([]int, 0, len(deferred))
	for id := range deferred {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		for _, p := range deferred[id] {
			diags = append(diags, fmt.Errorf("tile %s: %w %d", p, ErrDanglingTrap, id))
		}
	}
	return diags
}

func decodeActor(l *LevelState, rec ActorRecord) error {
	kind, ok := ParseActorKind(rec.Type)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownActorType, rec.Type)
	}
	pos := Position{X: rec.X, Y: rec.Y}
	facing, err := ParseDirection(rec.Facing)
	if err != nil {
		return malformed("%v", err)
	}
	if rec.MoveInterval < 0 {
		return malformed("negative moveInterval %d", rec.MoveInterval)
	}

	var a *Actor
	switch kind {
	case ActorPlayer:
		a = NewPlayer(pos)
		a.Chips = rec.Chips
		for _, k := range rec.Keys {
			color := KeyColor(k)
			if !color.Valid() {
				return malformed("unknown key color %q", k)
			}
			a.addKey(color)
		}
		// Input beyond the current rules' queue size is dropped.
		for _, q := range rec.Queue {
			d, err := ParseDirection(q)
			if err != nil {
				return malformed("queued input: %v", err)
			}
			a.QueueInput(d, l.rules.InputQueueSize)
		}
	case ActorBlock:
		a = NewBlock(pos)
	case ActorBug:
		followLeft := true
		if rec.FollowLeftEdge != nil {
			followLeft = *rec.FollowLeftEdge
		}
		a = NewBug(pos, facing, followLeft)
	case ActorPinkBall:
		a = NewPinkBall(pos, facing)
	case ActorFrog:
		a = NewFrog(pos)
	}
	a.MoveInterval = rec.MoveInterval
	a.busyUntil = rec.BusyUntil

	if rec.Alive != nil && !*rec.Alive {
		if kind != ActorPlayer {
			// dead non-player actors are simply not on the roster
			return nil
		}
		if l.player != nil {
			return malformed("%v", ErrSecondPlayer)
		}
		if a.MoveInterval < 1 {
			a.MoveInterval = l.rules.moveInterval(kind)
		}
		l.nextID++
		a.ID = l.nextID
		a.Alive = false
		l.player = a
		return nil
	}

	if err := l.AddActor(a); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return nil
}

func decodeCollectible(rec CollectibleRecord) (*Collectible, error) {
	kind, ok := ParseCollectibleKind(rec.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollectibleType, rec.Type)
	}
	c := &Collectible{Kind: kind, Pos: Position{X: rec.X, Y: rec.Y}}
	switch kind {
	case CollectibleKey:
		c.Color = KeyColor(rec.Color)
		if !c.Color.Valid() {
			return nil, fmt.Errorf("%w: key color %q", ErrUnknownCollectibleType, rec.Color)
		}
	case CollectibleGeneric:
		c.Tag = rec.Tag
	}
	return c, nil
}

// Encode produces the save form of l
func Encode(l *LevelState) *LevelDocument {
	doc := &LevelDocument{
		Name:         l.Name,
		LevelPath:    l.LevelPath,
		Timer:        l.Timer,
		Tick:         l.tick,
		TimerTicks:   l.timerTicks,
		Timed:        l.timed,
		Tiles:        make([][]TileEntry, l.Grid.Height()),
		Actors:       []ActorRecord{},
		Collectibles: []CollectibleRecord{},
	}
	if l.exitPending {
		at := l.exitAt
		doc.ExitAt = &at
	}
	for y := range doc.Tiles {
		doc.Tiles[y] = make([]TileEntry, l.Grid.Width())
	}
	l.Grid.Each(func(p Position, t Tile) {
		doc.Tiles[p.Y][p.X] = TileEntry{Record: encodeTileRecord(t)}
	})

	if p := l.player; p != nil && !p.Alive {
		doc.Actors = append(doc.Actors, encodeActor(p))
	}
	for _, a := range l.roster {
		doc.Actors = append(doc.Actors, encodeActor(a))
	}
	for _, c := range l.collectibles {
		rec := CollectibleRecord{Type: c.Kind.String(), X: c.Pos.X, Y: c.Pos.Y, Tag: c.Tag}
		if c.Kind == CollectibleKey {
			rec.Color = string(c.Color)
		}
		doc.Collectibles = append(doc.Collectibles, rec)
	}
	return doc
}

func encodeActor(a *Actor) ActorRecord {
	rec := ActorRecord{
		Type:         a.Kind.String(),
		X:            a.Pos.X,
		Y:            a.Pos.Y,
		MoveInterval: a.MoveInterval,
		BusyUntil:    a.busyUntil,
	}
	if !a.Alive {
		alive := false
		rec.Alive = &alive
	}
	switch a.Kind {
	case ActorPlayer:
		rec.Chips = a.Chips
		for _, k := range a.KeyList() {
			rec.Keys = append(rec.Keys, string(k))
		}
		for _, d := range a.queue {
			rec.Queue = append(rec.Queue, d.String())
		}
	case ActorBug:
		followLeft := a.FollowLeftEdge
		rec.FollowLeftEdge = &followLeft
		if a.Facing != None {
			rec.Facing = a.Facing.String()
		}
	case ActorPinkBall:
		if a.Facing != None {
			rec.Facing = a.Facing.String()
		}
	}
	return rec
}

// Serialize writes the save form of l as indented JSON
func Serialize(l *LevelState) ([]byte, error) {
	data, err := json.MarshalIndent(Encode(l), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal level: %w", err)
	}
	return data, nil
}

// Codes returns the grid as rows of short tile codes
func Codes(l *LevelState) [][]string {
	rows := make([][]string, l.Grid.Height())
	for y := range rows {
		rows[y] = make([]string, l.Grid.Width())
	}
	l.Grid.Each(func(p Position, t Tile) {
		rows[p.Y][p.X] = TileCode(t)
	})
	return rows
}
