package engine

import (
	"fmt"
	"math/rand"
)

// LevelState is the complete simulation state of one level: grid, roster,
// collectibles, timer and tick counter. It is single-threaded; only the
// resolver and scheduler mutate it.
type LevelState struct {
	Grid      *Grid
	Name      string
	LevelPath string
	// Timer is the remaining time in seconds; a level loaded with 0 is untimed.
	Timer int

	rules        Rules
	roster       []*Actor
	collectibles []*Collectible
	player       *Actor
	tick         int
	timed        bool
	timerTicks   int
	exitAt       int
	exitPending  bool
	complete     bool
	rng          *rand.Rand
	listeners    []Listener
	capture      *[]Event
	nextID       int
}

// NewLevel creates an empty width x height level of Path tiles
func NewLevel(width, height int, rules Rules) *LevelState {
	return &LevelState{
		Grid:  NewGrid(width, height),
		rules: rules,
		rng:   rand.New(rand.NewSource(rules.Seed)),
	}
}

// Rules returns the tuning the level runs under
func (l *LevelState) Rules() Rules { return l.rules }

// TickCount returns the number of ticks advanced so far
func (l *LevelState) TickCount() int { return l.tick }

// TileAt returns the tile at (x, y)
func (l *LevelState) TileAt(x, y int) Tile {
	return l.Grid.TileAt(Position{X: x, Y: y})
}

// Actors returns a snapshot of the live roster in move-priority order
func (l *LevelState) Actors() []*Actor {
	return append([]*Actor(nil), l.roster...)
}

// Collectibles returns a snapshot of the collectibles still on the grid
func (l *LevelState) Collectibles() []*Collectible {
	return append([]*Collectible(nil), l.collectibles...)
}

// Player returns the level's player, alive or not, or nil
func (l *LevelState) Player() *Actor { return l.player }

// ActorByID returns the live actor with id, or nil
func (l *LevelState) ActorByID(id int) *Actor {
	for _, a := range l.roster {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// IsComplete reports whether the level-complete signal has fired
func (l *LevelState) IsComplete() bool { return l.complete }

// IsGameOver reports whether the player has died
func (l *LevelState) IsGameOver() bool {
	return l.player != nil && !l.player.Alive
}

// Finished reports whether the level no longer advances
func (l *LevelState) Finished() bool {
	return l.complete || l.IsGameOver()
}

// Timed reports whether the level runs against a countdown
func (l *LevelState) Timed() bool { return l.timed }

// Subscribe registers a listener notified of every grid and roster change
func (l *LevelState) Subscribe(listener Listener) {
	l.listeners = append(l.listeners, listener)
}

// AddActor places a at its position and appends it to the roster. Walls and
// placeholder cells never hold an actor.
func (l *LevelState) AddActor(a *Actor) error {
	if !l.Grid.InBounds(a.Pos) {
		return fmt.Errorf("%w: %s at %s", ErrOutOfBounds, a.Kind, a.Pos)
	}
	if l.Grid.Occupied(a.Pos) {
		return fmt.Errorf("%w: %s at %s", ErrCellOccupied, a.Kind, a.Pos)
	}
	if t := l.Grid.TileAt(a.Pos); t.Kind == TileWall || t.Kind == TileEmpty {
		return fmt.Errorf("%w: %s on %s at %s", ErrSolidTile, a.Kind, t.Kind, a.Pos)
	}
	if a.Kind == ActorPlayer {
		if l.player != nil {
			return fmt.Errorf("%w: at %s", ErrSecondPlayer, a.Pos)
		}
		l.player = a
	}
	if a.MoveInterval < 1 {
		a.MoveInterval = l.rules.moveInterval(a.Kind)
	}
	l.nextID++
	a.ID = l.nextID
	a.Alive = true
	l.roster = append(l.roster, a)
	l.Grid.place(a.Pos, a)
	return nil
}

// AddCollectible places c at its position
func (l *LevelState) AddCollectible(c *Collectible) error {
	if !l.Grid.InBounds(c.Pos) {
		return fmt.Errorf("%w: %s at %s", ErrOutOfBounds, c.Kind, c.Pos)
	}
	if l.Grid.Occupied(c.Pos) {
		return fmt.Errorf("%w: %s at %s", ErrCellOccupied, c.Kind, c.Pos)
	}
	l.nextID++
	c.ID = l.nextID
	l.collectibles = append(l.collectibles, c)
	l.Grid.place(c.Pos, c)
	return nil
}

// SetTimer sets the countdown in seconds; zero makes the level untimed
func (l *LevelState) SetTimer(seconds int) {
	l.Timer = seconds
	l.timed = seconds > 0
	l.timerTicks = 0
}

// QueueInput buffers a direction for the player's next move opportunity
func (l *LevelState) QueueInput(d Direction) bool {
	if l.player == nil || !l.player.Alive {
		return false
	}
	return l.player.QueueInput(d, l.rules.InputQueueSize)
}

// ButtonActive reports whether the button cell at p is occupied
func (l *LevelState) ButtonActive(p Position) bool {
	return l.Grid.TileAt(p).Kind == TileButton && l.Grid.Occupied(p)
}

// emit stamps ev with the current tick and delivers it
func (l *LevelState) emit(ev Event) Event {
	ev.Tick = l.tick
	if l.capture != nil {
		*l.capture = append(*l.capture, ev)
	}
	for _, listener := range l.listeners {
		listener.OnEvent(ev)
	}
	return ev
}

// replaceTile swaps the tile at p for t, keeping the occupant
func (l *LevelState) replaceTile(p Position, t Tile) Event {
	l.Grid.SetTile(p, t)
	return Event{Kind: EventTileReplaced, To: posRef(p), Tile: TileCode(t)}
}

// removeActor takes a off the grid and the roster
func (l *LevelState) removeActor(a *Actor) {
	a.Alive = false
	a.queue = nil
	if l.Grid.ActorAt(a.Pos) == a {
		l.Grid.clear(a.Pos)
	}
	for i, other := range l.roster {
		if other == a {
			l.roster = append(l.roster[:i], l.roster[i+1:]...)
			break
		}
	}
}

// removeCollectible takes c off the grid and out of the collectible list
func (l *LevelState) removeCollectible(c *Collectible) {
	if l.Grid.CollectibleAt(c.Pos) == c {
		l.Grid.clear(c.Pos)
	}
	for i, other := range l.collectibles {
		if other == c {
			l.collectibles = append(l.collectibles[:i], l.collectibles[i+1:]...)
			break
		}
	}
}
