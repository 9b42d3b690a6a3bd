package engine

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// CountTileKind counts the cells of a specific kind in the grid
func CountTileKind(l *LevelState, kind TileKind) int {
	count := 0
	l.Grid.Each(func(_ Position, t Tile) {
		if t.Kind == kind {
			count++
		}
	})
	return count
}

// FindTiles returns the positions of every tile of kind in row-major order
func FindTiles(l *LevelState, kind TileKind) []Position {
	var found []Position
	l.Grid.Each(func(p Position, t Tile) {
		if t.Kind == kind {
			found = append(found, p)
		}
	})
	return found
}

// NearestExit finds the closest exit to the player by Manhattan distance
func NearestExit(l *LevelState) (Position, int, bool) {
	player := l.Player()
	if player == nil {
		return Position{}, 0, false
	}
	best, bestDist, found := Position{}, -1, false
	for _, p := range FindTiles(l, TileExit) {
		d := ManhattanDistance(player.Pos, p)
		if bestDist == -1 || d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, bestDist, found
}

// ThreatLevel describes how close the nearest enemy is to the player
func ThreatLevel(l *LevelState) string {
	player := l.Player()
	if player == nil || !player.Alive {
		return "DEAD: Player is gone"
	}
	nearest := -1
	for _, a := range l.Actors() {
		if !a.Kind.IsEnemy() {
			continue
		}
		d := ManhattanDistance(player.Pos, a.Pos)
		if nearest == -1 || d < nearest {
			nearest = d
		}
	}
	switch {
	case nearest == -1:
		return "SAFE: No enemies"
	case nearest <= 1:
		return "DANGER: Enemy adjacent!"
	case nearest <= 3:
		return "CAUTION: Enemy nearby"
	}
	return "SAFE: Enemies far away"
}
