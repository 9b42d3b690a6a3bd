package engine

import (
	"math"

	"github.com/zyedidia/generic/heap"
)

type pathNode struct {
	pos   Position
	g     int
	f     float64
	order int
}

// FindPath runs A* on a width x height grid with uniform step cost and a
// straight-line heuristic. passable decides every cell except start; goal is
// always accepted. It returns the path from start to goal inclusive, or nil.
func FindPath(start, goal Position, width, height int, passable func(Position) bool) []Position {
	if start == goal {
		return []Position{start}
	}
	inBounds := func(p Position) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height
	}
	if !inBounds(start) || !inBounds(goal) {
		return nil
	}

	// ties on f go to the deeper node, then to insertion order
	open := heap.New(func(a, b pathNode) bool {
		if a.f != b.f {
			return a.f < b.f
		}
		if a.g != b.g {
			return a.g > b.g
		}
		return a.order < b.order
	})
	gScore := map[Position]int{start: 0}
	cameFrom := make(map[Position]Position)
	closed := make(map[Position]bool)
	order := 0

	open.Push(pathNode{pos: start, f: euclidean(start, goal)})
	for open.Size() > 0 {
		current, _ := open.Pop()
		if closed[current.pos] {
			continue
		}
		if current.pos == goal {
			return reconstructPath(cameFrom, goal)
		}
		closed[current.pos] = true

		for _, d := range Directions {
			next := current.pos.Step(d)
			if !inBounds(next) || closed[next] {
				continue
			}
			if next != goal && !passable(next) {
				continue
			}
			tentative := current.g + 1
			if g, seen := gScore[next]; seen && tentative >= g {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = current.pos
			order++
			open.Push(pathNode{pos: next, g: tentative, f: float64(tentative) + euclidean(next, goal), order: order})
		}
	}
	return nil
}

func euclidean(a, b Position) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func reconstructPath(cameFrom map[Position]Position, goal Position) []Position {
	path := []Position{goal}
	for {
		prev, ok := cameFrom[path[len(path)-1]]
		if !ok {
			break
		}
		path = append(path, prev)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
