package engine

// DecideMove returns the direction enemy e wants to move this opportunity,
// or None. It never mutates the level apart from drawing from its RNG.
func DecideMove(e *Actor, l *LevelState) Direction {
	if e == nil || !e.Alive {
		return None
	}
	switch e.Kind {
	case ActorBug:
		return decideBug(e, l)
	case ActorPinkBall:
		return decidePinkBall(e, l)
	case ActorFrog:
		return decideFrog(e, l)
	}
	return None
}

// EnemyCanEnter reports whether enemy e would consider stepping onto p.
// Water counts as blocked here even though the resolver lets enemies in.
func (l *LevelState) EnemyCanEnter(e *Actor, p Position) bool {
	if !l.Walkable(e, p) || l.Grid.TileAt(p).Kind == TileWater {
		return false
	}
	if l.Grid.CollectibleAt(p) != nil {
		return false
	}
	occ := l.Grid.ActorAt(p)
	return occ == nil || occ.Kind == ActorPlayer
}

func decideBug(e *Actor, l *LevelState) Direction {
	facing := e.Facing
	if facing == None {
		facing = Up
	}
	toward, away := facing.TurnRight(), facing.TurnLeft()
	if e.FollowLeftEdge {
		toward, away = away, toward
	}
	for _, d := range []Direction{toward, facing, away, facing.Opposite()} {
		if l.EnemyCanEnter(e, e.Pos.Step(d)) {
			return d
		}
	}
	return None
}

func decidePinkBall(e *Actor, l *LevelState) Direction {
	if e.Facing == None {
		return None
	}
	if l.EnemyCanEnter(e, e.Pos.Step(e.Facing)) {
		return e.Facing
	}
	if back := e.Facing.Opposite(); l.EnemyCanEnter(e, e.Pos.Step(back)) {
		return back
	}
	return None
}

func decideFrog(e *Actor, l *LevelState) Direction {
	if p := l.Player(); p != nil && p.Alive {
		path := FindPath(e.Pos, p.Pos, l.Grid.Width(), l.Grid.Height(), func(pos Position) bool {
			return l.EnemyCanEnter(e, pos)
		})
		if len(path) > 1 {
			return directionBetween(path[0], path[1])
		}
	}
	return randomNeighbor(e, l)
}

func randomNeighbor(e *Actor, l *LevelState) Direction {
	var legal []Direction
	for _, d := range Directions {
		if l.EnemyCanEnter(e, e.Pos.Step(d)) {
			legal = append(legal, d)
		}
	}
	if len(legal) == 0 {
		return None
	}
	return legal[l.rng.Intn(len(legal))]
}

func directionBetween(from, to Position) Direction {
	for _, d := range Directions {
		if from.Step(d) == to {
			return d
		}
	}
	return None
}
