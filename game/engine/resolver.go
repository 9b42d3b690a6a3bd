package engine

// BlockReason explains why a move attempt did nothing
type BlockReason string

const (
	BlockNone           BlockReason = ""
	BlockDead           BlockReason = "dead"
	BlockNoDirection    BlockReason = "no_direction"
	BlockOutOfBounds    BlockReason = "out_of_bounds"
	BlockMidResolution  BlockReason = "mid_resolution"
	BlockDepartureGated BlockReason = "departure_gated"
	BlockBlocked        BlockReason = "blocked"
)

// MoveResult is the outcome of one AttemptMove. A blocked move is an ordinary
// result with Moved false; Err is set only when the chain hit the depth limit.
type MoveResult struct {
	Moved     bool        `json:"moved"`
	Reason    BlockReason `json:"reason,omitempty"`
	ActorID   int         `json:"actor_id"`
	Direction Direction   `json:"direction"`
	From      Position    `json:"from"`
	To        Position    `json:"to"`
	Events    []Event     `json:"events,omitempty"`
	Err       error       `json:"-"`
}

// resolution carries the state of one move and everything it sets off
type resolution struct {
	l      *LevelState
	depth  int
	offset int
	events []Event
	err    error
}

func (r *resolution) emit(ev Event) {
	ev.Offset = r.offset
	r.events = append(r.events, r.l.emit(ev))
}

func (r *resolution) remove(a *Actor, cause RemovalCause) {
	at := a.Pos
	r.l.removeActor(a)
	r.emit(Event{Kind: EventActorRemoved, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(at), Cause: cause})
}

// spend charges one step against the chain budget
func (r *resolution) spend() bool {
	if r.err != nil {
		return false
	}
	r.depth++
	if r.depth > r.l.rules.MaxChainDepth {
		r.err = ErrChainTooDeep
		r.emit(Event{Kind: EventChainAborted, Value: r.l.rules.MaxChainDepth})
		return false
	}
	return true
}

// AttemptMove validates and executes one move of a in direction dir,
// including every push, pickup, tile effect and ice slide it triggers. The
// whole chain resolves before AttemptMove returns.
func (l *LevelState) AttemptMove(a *Actor, dir Direction) MoveResult {
	res := MoveResult{ActorID: a.ID, Direction: dir, From: a.Pos, To: a.Pos}
	switch {
	case !a.Alive:
		res.Reason = BlockDead
	case dir == None:
		res.Reason = BlockNoDirection
	case a.resolving:
		res.Reason = BlockMidResolution
	case !l.Grid.InBounds(a.Pos.Step(dir)):
		res.Reason = BlockOutOfBounds
	case !l.CanLeave(a.Pos):
		res.Reason = BlockDepartureGated
	}
	if res.Reason != BlockNone {
		return res
	}

	r := &resolution{l: l}
	a.resolving = true
	moved := r.travel(a, dir, EventMoved)
	a.resolving = false

	res.Moved = moved
	res.To = a.Pos
	res.Events = r.events
	res.Err = r.err
	if !moved {
		res.Reason = BlockBlocked
	}
	if a.Alive && l.tick+r.offset > a.busyUntil {
		a.busyUntil = l.tick + r.offset
	}
	l.fireDue()
	return res
}

// travel is one step followed by any ice slide it lands on
func (r *resolution) travel(a *Actor, dir Direction, kind EventKind) bool {
	if !r.step(a, dir, kind) {
		return false
	}
	r.slide(a, dir)
	return true
}

// step moves a exactly one cell. It resolves the occupant of the target
// (push, pickup, kill) and then runs the target tile's arrival effect.
func (r *resolution) step(a *Actor, dir Direction, kind EventKind) bool {
	if !r.spend() {
		return false
	}
	l := r.l
	g := l.Grid
	from := a.Pos
	to := from.Step(dir)
	if !g.InBounds(to) || !l.CanLeave(from) || !l.Walkable(a, to) {
		return false
	}

	if occ := g.ActorAt(to); occ != nil {
		switch {
		case a.Kind == ActorPlayer && occ.Kind == ActorBlock:
			if !r.push(occ, dir) || !a.Alive || g.Occupied(to) {
				return false
			}
		case a.Kind.IsEnemy() && occ.Kind == ActorPlayer:
			r.remove(occ, CauseKilled)
		case a.Kind == ActorBlock && kind == EventSlid && occ.Kind == ActorPlayer:
			r.remove(occ, CauseCrushed)
		default:
			return false
		}
	} else if c := g.CollectibleAt(to); c != nil {
		if a.Kind != ActorPlayer {
			return false
		}
		r.pickUp(a, c)
	}

	g.clear(from)
	a.Pos = to
	g.place(to, a)
	r.emit(Event{Kind: kind, ActorID: a.ID, Actor: a.Kind.String(), From: posRef(from), To: posRef(to), Direction: dir})
	if left := g.TileAt(from); left.Kind == TileButton {
		r.emit(Event{Kind: EventButtonReleased, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(from), Value: left.ButtonID})
	}

	t := g.TileAt(to)
	behaviorOf(t).onStep(r, a, to, t)
	return true
}

// push offers a block the pusher's move; the block may slide in turn
func (r *resolution) push(block *Actor, dir Direction) bool {
	if block.resolving {
		return false
	}
	block.resolving = true
	defer func() { block.resolving = false }()
	return r.travel(block, dir, EventPushed)
}

func (r *resolution) pickUp(a *Actor, c *Collectible) {
	switch c.Kind {
	case CollectibleKey:
		a.addKey(c.Color)
	case CollectibleChip:
		a.Chips++
	}
	item := c.Kind.String()
	if c.Kind == CollectibleKey {
		item = string(c.Color) + " key"
	} else if c.Kind == CollectibleGeneric && c.Tag != "" {
		item = c.Tag
	}
	r.l.removeCollectible(c)
	r.emit(Event{Kind: EventPickedUp, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(c.Pos), Item: item})
	r.emit(Event{Kind: EventCollectibleRemoved, To: posRef(c.Pos), Item: item, Value: c.ID})
}

// slide keeps a moving while it stands on ice. Each forced step takes
// IceSlideDelay ticks. A blocked continuation bounces back once, using the
// corner table on the reversed heading; a second obstruction strands the
// actor on the ice.
func (r *resolution) slide(a *Actor, dir Direction) {
	reversed := false
	for a.Alive && r.err == nil {
		t := r.l.Grid.TileAt(a.Pos)
		if t.Kind != TileIce {
			return
		}
		r.offset += r.l.rules.IceSlideDelay
		next := t.Corner.Redirect(dir)
		if r.step(a, next, EventSlid) {
			dir = next
			continue
		}
		if r.err != nil || reversed || !a.Alive {
			return
		}
		reversed = true
		back := t.Corner.Redirect(dir.Opposite())
		r.emit(Event{Kind: EventBounced, ActorID: a.ID, Actor: a.Kind.String(), From: posRef(a.Pos), Direction: back})
		if !r.step(a, back, EventSlid) {
			return
		}
		dir = back
	}
}
