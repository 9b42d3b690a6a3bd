package engine

// TickResult summarizes one scheduler tick
type TickResult struct {
	Tick     int          `json:"tick"`
	Events   []Event      `json:"events,omitempty"`
	Moves    []MoveResult `json:"moves,omitempty"`
	Complete bool         `json:"complete"`
	GameOver bool         `json:"game_over"`
}

// Tick advances the simulation by one tick: deferred effects fire, the
// timer counts down, then every eligible actor in roster order gets one move
// that resolves completely before the next actor is considered.
func (l *LevelState) Tick() TickResult {
	if l.Finished() {
		return TickResult{Tick: l.tick, Complete: l.complete, GameOver: l.IsGameOver()}
	}

	var events []Event
	l.capture = &events
	defer func() { l.capture = nil }()

	l.tick++
	res := TickResult{Tick: l.tick}

	l.fireDue()
	l.countdown()

	for _, a := range l.Actors() {
		if l.Finished() {
			break
		}
		if !a.Alive || a.Kind == ActorBlock || a.MoveInterval < 1 {
			continue
		}
		if l.tick < a.busyUntil || l.tick%a.MoveInterval != 0 {
			continue
		}

		var dir Direction
		if a.Kind == ActorPlayer {
			d, ok := a.nextInput()
			if !ok {
				continue
			}
			dir = d
		} else {
			dir = DecideMove(a, l)
			if dir == None {
				continue
			}
		}

		move := l.AttemptMove(a, dir)
		if move.Moved && a.Kind != ActorPlayer {
			a.Facing = finalHeading(move.Events, a.ID, dir)
		}
		res.Moves = append(res.Moves, move)
	}

	res.Events = events
	res.Complete = l.complete
	res.GameOver = l.IsGameOver()
	return res
}

// countdown steps the level timer once per TicksPerSecond ticks; running out
// kills the player.
func (l *LevelState) countdown() {
	if !l.timed || l.Timer <= 0 {
		return
	}
	l.timerTicks++
	if l.timerTicks < l.rules.TicksPerSecond {
		return
	}
	l.timerTicks = 0
	l.Timer--
	l.emit(Event{Kind: EventTimer, Value: l.Timer})
	if l.Timer > 0 || l.player == nil || !l.player.Alive {
		return
	}
	p := l.player
	l.removeActor(p)
	l.emit(Event{Kind: EventActorRemoved, ActorID: p.ID, Actor: p.Kind.String(), To: posRef(p.Pos), Cause: CauseTimeout})
}

// finalHeading is the direction of the actor's last step in events. Ice can
// turn an actor away from the direction it set out in.
func finalHeading(events []Event, id int, dir Direction) Direction {
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.ActorID == id && (e.Kind == EventMoved || e.Kind == EventSlid) {
			return e.Direction
		}
	}
	return dir
}
