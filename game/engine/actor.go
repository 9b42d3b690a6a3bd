package engine

import (
	"sort"

	"github.com/zyedidia/generic/mapset"
)

// ActorKind is the closed set of actor variants
type ActorKind int

const (
	ActorPlayer ActorKind = iota
	ActorBlock
	ActorBug
	ActorPinkBall
	ActorFrog
)

var actorKindNames = map[ActorKind]string{
	ActorPlayer:   "player",
	ActorBlock:    "block",
	ActorBug:      "bug",
	ActorPinkBall: "pinkball",
	ActorFrog:     "frog",
}

// defaultMoveIntervals are the ticks between move opportunities per kind
var defaultMoveIntervals = map[ActorKind]int{
	ActorPlayer:   1,
	ActorBlock:    1,
	ActorBug:      2,
	ActorPinkBall: 2,
	ActorFrog:     4,
}

// String returns the actor type tag used in level documents
func (k ActorKind) String() string {
	if name, ok := actorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseActorKind maps a type tag to its kind
func ParseActorKind(tag string) (ActorKind, bool) {
	for kind, name := range actorKindNames {
		if name == tag {
			return kind, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler
func (k ActorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsEnemy reports whether the kind is driven by the decision module
func (k ActorKind) IsEnemy() bool {
	return k == ActorBug || k == ActorPinkBall || k == ActorFrog
}

// Actor is anything on the roster: the player, pushable blocks and enemies.
type Actor struct {
	ID           int
	Kind         ActorKind
	Pos          Position
	MoveInterval int
	Alive        bool

	// Player
	Chips int
	Keys  mapset.Set[KeyColor]

	// Bug and PinkBall
	Facing Direction
	// Bug
	FollowLeftEdge bool

	queue     []Direction
	resolving bool
	busyUntil int
}

func newActor(kind ActorKind, pos Position) *Actor {
	return &Actor{
		Kind:         kind,
		Pos:          pos,
		MoveInterval: defaultMoveIntervals[kind],
		Alive:        true,
	}
}

// NewPlayer creates a player with no chips and no keys
func NewPlayer(pos Position) *Actor {
	a := newActor(ActorPlayer, pos)
	a.Keys = mapset.New[KeyColor]()
	return a
}

// NewBlock creates a pushable block
func NewBlock(pos Position) *Actor {
	return newActor(ActorBlock, pos)
}

// NewBug creates a wall-following bug
func NewBug(pos Position, facing Direction, followLeftEdge bool) *Actor {
	a := newActor(ActorBug, pos)
	a.Facing = facing
	a.FollowLeftEdge = followLeftEdge
	return a
}

// NewPinkBall creates a bouncing ball
func NewPinkBall(pos Position, facing Direction) *Actor {
	a := newActor(ActorPinkBall, pos)
	a.Facing = facing
	return a
}

// NewFrog creates a player-hunting frog
func NewFrog(pos Position) *Actor {
	return newActor(ActorFrog, pos)
}

// HasKey reports whether the actor holds a key of color c
func (a *Actor) HasKey(c KeyColor) bool {
	if a.Kind != ActorPlayer || a.Keys.Size() == 0 {
		return false
	}
	return a.Keys.Has(c)
}

// KeyList returns the held key colors in stable order
func (a *Actor) KeyList() []KeyColor {
	if a.Keys.Size() == 0 {
		return nil
	}
	keys := make([]KeyColor, 0, a.Keys.Size())
	a.Keys.Each(func(c KeyColor) {
		keys = append(keys, c)
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (a *Actor) addKey(c KeyColor) {
	if a.Keys.Size() == 0 {
		// the zero Set has no backing map
		a.Keys = mapset.New[KeyColor]()
	}
	a.Keys.Put(c)
}

// QueueInput appends a direction to the actor's bounded input queue. It
// rejects None, a full queue, and a direction that is already queued.
func (a *Actor) QueueInput(d Direction, capacity int) bool {
	if d == None || len(a.queue) >= capacity {
		return false
	}
	for _, queued := range a.queue {
		if queued == d {
			return false
		}
	}
	a.queue = append(a.queue, d)
	return true
}

// PendingInput returns a copy of the queued directions
func (a *Actor) PendingInput() []Direction {
	return append([]Direction(nil), a.queue...)
}

// BusyUntil returns the first tick at which the actor may move again
func (a *Actor) BusyUntil() int { return a.busyUntil }

// ClearInput drops all queued directions
func (a *Actor) ClearInput() {
	a.queue = nil
}

func (a *Actor) nextInput() (Direction, bool) {
	if len(a.queue) == 0 {
		return None, false
	}
	d := a.queue[0]
	a.queue = a.queue[1:]
	return d, true
}

// CollectibleKind is the closed set of collectible variants
type CollectibleKind int

const (
	CollectibleKey CollectibleKind = iota
	CollectibleChip
	CollectibleGeneric
)

var collectibleKindNames = map[CollectibleKind]string{
	CollectibleKey:     "key",
	CollectibleChip:    "chip",
	CollectibleGeneric: "generic",
}

// String returns the collectible type tag used in level documents
func (k CollectibleKind) String() string {
	if name, ok := collectibleKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (k CollectibleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseCollectibleKind maps a type tag to its kind
func ParseCollectibleKind(tag string) (CollectibleKind, bool) {
	for kind, name := range collectibleKindNames {
		if name == tag {
			return kind, true
		}
	}
	return 0, false
}

// Collectible is an item the player picks up by walking onto it
type Collectible struct {
	ID    int
	Kind  CollectibleKind
	Pos   Position
	Color KeyColor // Key
	Tag   string   // Generic
}
