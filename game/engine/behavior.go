package engine

// tileBehavior is the per-kind rule set the resolver consults. Arrival rules
// live in enterable/onStep; canLeave is the departure gate.
type tileBehavior struct {
	enterable func(l *LevelState, a *Actor, t Tile) bool
	onStep    func(r *resolution, a *Actor, p Position, t Tile)
	canLeave  func(l *LevelState, t Tile) bool
}

func always(*LevelState, *Actor, Tile) bool        { return true }
func never(*LevelState, *Actor, Tile) bool         { return false }
func freeToLeave(*LevelState, Tile) bool           { return true }
func noEffect(*resolution, *Actor, Position, Tile) {}

var behaviors = map[TileKind]tileBehavior{
	TilePath: {enterable: always, onStep: noEffect, canLeave: freeToLeave},
	TileWall: {enterable: never, onStep: noEffect, canLeave: freeToLeave},
	// An undecodable cell blocks like a wall.
	TileEmpty: {enterable: never, onStep: noEffect, canLeave: freeToLeave},
	TileWater: {enterable: always, onStep: stepWater, canLeave: freeToLeave},
	TileDirt:  {enterable: always, onStep: stepDirt, canLeave: freeToLeave},
	// Ice continuation is driven by the resolver's slide loop.
	TileIce:        {enterable: always, onStep: noEffect, canLeave: freeToLeave},
	TileLockedDoor: {enterable: enterDoor, onStep: stepDoor, canLeave: freeToLeave},
	TileChipSocket: {enterable: enterSocket, onStep: stepSocket, canLeave: freeToLeave},
	TileButton:     {enterable: always, onStep: stepButton, canLeave: freeToLeave},
	TileTrap:       {enterable: always, onStep: noEffect, canLeave: leaveTrap},
	TileExit:       {enterable: always, onStep: stepExit, canLeave: freeToLeave},
}

func behaviorOf(t Tile) tileBehavior {
	if b, ok := behaviors[t.Kind]; ok {
		return b
	}
	return behaviors[TileEmpty]
}

// Walkable reports whether actor a may step onto the tile at p, ignoring
// whatever occupies the cell.
func (l *LevelState) Walkable(a *Actor, p Position) bool {
	if !l.Grid.InBounds(p) {
		return false
	}
	t := l.Grid.TileAt(p)
	return behaviorOf(t).enterable(l, a, t)
}

// CanLeave reports whether the departure gate of the tile at p is open
func (l *LevelState) CanLeave(p Position) bool {
	return behaviorOf(l.Grid.TileAt(p)).canLeave(l, l.Grid.TileAt(p))
}

func stepWater(r *resolution, a *Actor, p Position, _ Tile) {
	if a.Kind == ActorBlock {
		r.remove(a, CauseFilled)
		r.emit(r.l.replaceTile(p, PathTile()))
		return
	}
	r.remove(a, CauseDrowned)
}

func stepDirt(r *resolution, _ *Actor, p Position, _ Tile) {
	r.emit(r.l.replaceTile(p, PathTile()))
}

func enterDoor(_ *LevelState, a *Actor, t Tile) bool {
	return a.Kind == ActorPlayer && a.HasKey(t.KeyColor)
}

func stepDoor(r *resolution, a *Actor, p Position, t Tile) {
	r.emit(Event{Kind: EventUnlocked, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(p), Item: string(t.KeyColor)})
	r.emit(r.l.replaceTile(p, PathTile()))
}

func enterSocket(_ *LevelState, a *Actor, t Tile) bool {
	return a.Kind == ActorPlayer && a.Chips >= t.RequiredChips
}

func stepSocket(r *resolution, a *Actor, p Position, t Tile) {
	a.Chips -= t.RequiredChips
	r.emit(Event{Kind: EventSocketOpened, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(p), Value: t.RequiredChips})
	r.emit(r.l.replaceTile(p, PathTile()))
}

func stepButton(r *resolution, a *Actor, p Position, t Tile) {
	r.emit(Event{Kind: EventButtonPressed, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(p), Value: t.ButtonID})
}

// leaveTrap opens only while the linked button is held down; a trap whose
// link never resolved holds forever.
func leaveTrap(l *LevelState, t Tile) bool {
	at, ok := t.Link()
	if !ok {
		return false
	}
	return l.ButtonActive(at)
}

func stepExit(r *resolution, a *Actor, p Position, _ Tile) {
	if a.Kind != ActorPlayer {
		return
	}
	r.emit(Event{Kind: EventExitReached, ActorID: a.ID, Actor: a.Kind.String(), To: posRef(p)})
	r.l.scheduleExit(a)
}

// scheduleExit arms the level-complete signal once
func (l *LevelState) scheduleExit(player *Actor) {
	if l.complete || l.exitPending {
		return
	}
	l.exitPending = true
	l.exitAt = l.tick + l.rules.ExitDelay
	if player.busyUntil < l.exitAt {
		player.busyUntil = l.exitAt
	}
}

// fireDue runs deferred effects whose tick has come
func (l *LevelState) fireDue() {
	if !l.exitPending || l.complete || l.tick < l.exitAt {
		return
	}
	l.exitPending = false
	if l.player == nil || !l.player.Alive {
		return
	}
	l.complete = true
	l.emit(Event{Kind: EventLevelComplete, ActorID: l.player.ID, Actor: l.player.Kind.String(), To: posRef(l.player.Pos)})
}
