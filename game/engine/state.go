package engine

import (
	"strings"
	"time"
)

// SurroundingCell represents a cell with its absolute position
type SurroundingCell struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Tile     string `json:"tile"`
	Occupant string `json:"occupant,omitempty"`
}

// ActorView is the read-only view of one roster entry
type ActorView struct {
	ID           int      `json:"id"`
	Type         string   `json:"type"`
	Position     Position `json:"position"`
	MoveInterval int      `json:"move_interval"`
	Facing       string   `json:"facing,omitempty"`
}

// CollectibleView is the read-only view of one collectible
type CollectibleView struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Color    string   `json:"color,omitempty"`
	Tag      string   `json:"tag,omitempty"`
}

// PlayerView summarizes the player
type PlayerView struct {
	ID           int      `json:"id"`
	Position     Position `json:"position"`
	Alive        bool     `json:"alive"`
	Chips        int      `json:"chips"`
	Keys         []string `json:"keys"`
	PendingInput []string `json:"pending_input"`
	BusyUntil    int      `json:"busy_until,omitempty"`
}

// GameState is a JSON-friendly snapshot of a running level
type GameState struct {
	Name         string             `json:"name"`
	LevelPath    string             `json:"level_path,omitempty"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	Grid         [][]string         `json:"grid"`
	Actors       []ActorView        `json:"actors"`
	Collectibles []CollectibleView  `json:"collectibles"`
	Player       *PlayerView        `json:"player,omitempty"`
	Tick         int                `json:"tick"`
	Timer        int                `json:"timer"`
	Timed        bool               `json:"timed"`
	Message      string             `json:"message"`
	Complete     bool               `json:"complete"`
	GameOver     bool               `json:"game_over"`
	ExitPending  bool               `json:"exit_pending,omitempty"`
	MoveHistory  []MoveHistoryEntry `json:"move_history"`
	TotalMoves   int                `json:"total_moves"`
	// CurrentMoves tracks only the moves since the last reset. It mirrors MoveHistory entries
	// but gets cleared on reset while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`

	// Computed helper views (not required for core game logic)
	LocalView    []SurroundingCell `json:"local_view,omitempty"`
	LocalView3x3 []string          `json:"local_view_3x3,omitempty"`
	ThreatLevel  string            `json:"threat_level,omitempty"`
	Diagnostics  []string          `json:"diagnostics,omitempty"`
}

// MoveHistoryEntry represents a single player move attempt
type MoveHistoryEntry struct {
	Action       string   `json:"action"`
	FromPosition Position `json:"from_position"`
	ToPosition   Position `json:"to_position"`
	Chips        int      `json:"chips"`
	Tick         int      `json:"tick"`
	Timestamp    int64    `json:"timestamp"`
	Success      bool     `json:"success"`
	Reason       string   `json:"reason,omitempty"`
	MoveNumber   int      `json:"move_number"`
}

// snapshot builds the GameState of l
func snapshot(l *LevelState) *GameState {
	gs := &GameState{
		Name:         l.Name,
		LevelPath:    l.LevelPath,
		Width:        l.Grid.Width(),
		Height:       l.Grid.Height(),
		Grid:         Codes(l),
		Actors:       []ActorView{},
		Collectibles: []CollectibleView{},
		Tick:         l.TickCount(),
		Timer:        l.Timer,
		Timed:        l.Timed(),
		Complete:     l.IsComplete(),
		GameOver:     l.IsGameOver(),
		ExitPending:  l.exitPending,
		ThreatLevel:  ThreatLevel(l),
	}
	for _, a := range l.Actors() {
		view := ActorView{ID: a.ID, Type: a.Kind.String(), Position: a.Pos, MoveInterval: a.MoveInterval}
		if a.Facing != None {
			view.Facing = a.Facing.String()
		}
		gs.Actors = append(gs.Actors, view)
	}
	for _, c := range l.Collectibles() {
		gs.Collectibles = append(gs.Collectibles, CollectibleView{
			ID:       c.ID,
			Type:     c.Kind.String(),
			Position: c.Pos,
			Color:    string(c.Color),
			Tag:      c.Tag,
		})
	}
	if p := l.Player(); p != nil {
		view := &PlayerView{
			ID:           p.ID,
			Position:     p.Pos,
			Alive:        p.Alive,
			Chips:        p.Chips,
			Keys:         []string{},
			PendingInput: []string{},
		}
		if p.busyUntil > l.TickCount() {
			view.BusyUntil = p.busyUntil
		}
		for _, k := range p.KeyList() {
			view.Keys = append(view.Keys, string(k))
		}
		for _, d := range p.PendingInput() {
			view.PendingInput = append(view.PendingInput, d.String())
		}
		gs.Player = view
		gs.LocalView = localView(l, p.Pos)
		gs.LocalView3x3 = localView3x3(l, p.Pos)
	}
	return gs
}

func occupantName(l *LevelState, p Position) string {
	if a := l.Grid.ActorAt(p); a != nil {
		return a.Kind.String()
	}
	if c := l.Grid.CollectibleAt(p); c != nil {
		if c.Kind == CollectibleKey {
			return string(c.Color) + "_key"
		}
		return c.Kind.String()
	}
	return ""
}

// localView lists the 8 cells around center, clockwise from north
func localView(l *LevelState, center Position) []SurroundingCell {
	offsets := []struct{ dx, dy int }{
		{0, -1},  // North
		{1, -1},  // North-East
		{1, 0},   // East
		{1, 1},   // South-East
		{0, 1},   // South
		{-1, 1},  // South-West
		{-1, 0},  // West
		{-1, -1}, // North-West
	}
	cells := make([]SurroundingCell, len(offsets))
	for i, o := range offsets {
		p := Position{X: center.X + o.dx, Y: center.Y + o.dy}
		cells[i] = SurroundingCell{
			X:        p.X,
			Y:        p.Y,
			Tile:     TileCode(l.Grid.TileAt(p)),
			Occupant: occupantName(l, p),
		}
	}
	return cells
}

// localView3x3 renders the cells around center as three rows of codes with
// the player shown as @ and other occupants by their first letter
func localView3x3(l *LevelState, center Position) []string {
	rows := make([]string, 0, 3)
	for dy := -1; dy <= 1; dy++ {
		cells := make([]string, 0, 3)
		for dx := -1; dx <= 1; dx++ {
			p := Position{X: center.X + dx, Y: center.Y + dy}
			code := TileCode(l.Grid.TileAt(p))
			switch {
			case dx == 0 && dy == 0:
				code = "@"
			case occupantName(l, p) != "":
				code = strings.ToUpper(occupantName(l, p)[:1])
			}
			cells = append(cells, code)
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	return rows
}

func newHistoryEntry(action string, move MoveResult, l *LevelState, number int) MoveHistoryEntry {
	entry := MoveHistoryEntry{
		Action:       action,
		FromPosition: move.From,
		ToPosition:   move.To,
		Tick:         l.TickCount(),
		Timestamp:    time.Now().Unix(),
		Success:      move.Moved,
		Reason:       string(move.Reason),
		MoveNumber:   number,
	}
	if p := l.Player(); p != nil {
		entry.Chips = p.Chips
	}
	return entry
}
