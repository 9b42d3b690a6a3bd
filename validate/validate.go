// Package validate checks level files offline. It checks:
//   - JSON structure and tile codes (undecodable cells are diagnostics)
//   - Grid bounds, a live player and at least one exit
//   - Every chip socket can be fed and every door has a key
//   - Connectivity: the exit, chips and keys can be reached from the player
//   - Timing: a greedy collection route fits in the level timer
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/chipgrid/game/engine"
)

// Result captures the outcome of checking a single level file.
// Errors make the level unplayable; Warnings are diagnostics and heuristics
// worth a look; Info summarizes a valid level.
type Result struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// Route is the greedy collection tour from the player through every chip
// and key to the nearest reachable exit.
type Route struct {
	Steps      int
	Ticks      int
	BudgetTick int // 0 when the level is untimed
	Missing    []string
}

// CheckFile loads and checks a single level file.
func CheckFile(path string, rules engine.Rules) Result {
	result := Result{
		File:  filepath.Base(path),
		Valid: true,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	level, diags, err := engine.Deserialize(data, rules)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid level: %v", err))
		return result
	}
	for _, d := range diags {
		result.Warnings = append(result.Warnings, d.Error())
	}

	if err := engine.ValidateLevel(level); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, strings.TrimPrefix(err.Error(), "level validation: "))
		return result
	}

	route := PlanRoute(level)
	for _, m := range route.Missing {
		result.Warnings = append(result.Warnings, "Unreachable: "+m)
	}
	if route.BudgetTick > 0 && route.Ticks > route.BudgetTick {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Timer: collection route needs ~%d ticks but the timer allows %d", route.Ticks, route.BudgetTick))
	}

	result.Info = summarize(level, route)
	return result
}

// CheckDir checks every *.json level in dir with the rules from its rules.yaml
func CheckDir(dir string) ([]Result, error) {
	rules, err := engine.LoadRules(filepath.Join(dir, "rules.yaml"))
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("error finding level files: %w", err)
	}
	sort.Strings(files)

	results := make([]Result, 0, len(files))
	for _, file := range files {
		results = append(results, CheckFile(file, rules))
	}
	return results, nil
}

func summarize(l *engine.LevelState, route Route) []string {
	chips, keys, items := 0, 0, 0
	for _, c := range l.Collectibles() {
		switch c.Kind {
		case engine.CollectibleChip:
			chips++
		case engine.CollectibleKey:
			keys++
		default:
			items++
		}
	}
	enemies, blocks := 0, 0
	for _, a := range l.Actors() {
		switch {
		case a.Kind.IsEnemy():
			enemies++
		case a.Kind == engine.ActorBlock:
			blocks++
		}
	}

	info := []string{
		fmt.Sprintf("✓ Name: %s", l.Name),
		fmt.Sprintf("✓ Grid: %dx%d", l.Grid.Width(), l.Grid.Height()),
		fmt.Sprintf("✓ Chips: %d (sockets: %d)", chips, engine.CountTileKind(l, engine.TileChipSocket)),
		fmt.Sprintf("✓ Keys: %d (doors: %d)", keys, engine.CountTileKind(l, engine.TileLockedDoor)),
		fmt.Sprintf("✓ Enemies: %d, Blocks: %d", enemies, blocks),
	}
	if items > 0 {
		info = append(info, fmt.Sprintf("✓ Other items: %d", items))
	}
	if l.Timed() {
		info = append(info, fmt.Sprintf("✓ Timer: %ds (%d ticks)", l.Timer, route.BudgetTick))
	} else {
		info = append(info, "✓ Timer: none")
	}
	info = append(info, fmt.Sprintf("✓ Route: %d steps, ~%d ticks", route.Steps, route.Ticks))
	return info
}

// PlanRoute walks greedily from the player to the nearest remaining chip or
// key, then to the nearest exit. Paths avoid walls only, so the estimate is
// optimistic about doors, sockets and water.
func PlanRoute(l *engine.LevelState) Route {
	var route Route
	player := l.Player()
	if player == nil {
		return route
	}

	w, h := l.Grid.Width(), l.Grid.Height()
	passable := func(p engine.Position) bool {
		k := l.Grid.TileAt(p).Kind
		return k != engine.TileWall && k != engine.TileEmpty
	}
	distance := func(from, to engine.Position) int {
		path := engine.FindPath(from, to, w, h, passable)
		if path == nil {
			return -1
		}
		return len(path) - 1
	}

	type target struct {
		name string
		pos  engine.Position
	}
	var pending []target
	for _, c := range l.Collectibles() {
		switch c.Kind {
		case engine.CollectibleChip:
			pending = append(pending, target{fmt.Sprintf("chip at %s", c.Pos), c.Pos})
		case engine.CollectibleKey:
			pending = append(pending, target{fmt.Sprintf("%s key at %s", c.Color, c.Pos), c.Pos})
		}
	}

	at := player.Pos
	for len(pending) > 0 {
		best, bestDist := -1, -1
		for i, t := range pending {
			if d := distance(at, t.pos); d >= 0 && (bestDist == -1 || d < bestDist) {
				best, bestDist = i, d
			}
		}
		if best == -1 {
			for _, t := range pending {
				route.Missing = append(route.Missing, t.name)
			}
			break
		}
		route.Steps += bestDist
		at = pending[best].pos
		pending = append(pending[:best], pending[best+1:]...)
	}

	exitDist := -1
	for _, exit := range engine.FindTiles(l, engine.TileExit) {
		if d := distance(at, exit); d >= 0 && (exitDist == -1 || d < exitDist) {
			exitDist = d
		}
	}
	if exitDist == -1 {
		route.Missing = append(route.Missing, fmt.Sprintf("exit from %s", at))
	} else {
		route.Steps += exitDist
	}

	rules := l.Rules()
	interval := player.MoveInterval
	if interval < 1 {
		interval = 1
	}
	route.Ticks = route.Steps*interval + rules.ExitDelay
	if l.Timed() {
		route.BudgetTick = l.Timer * rules.TicksPerSecond
	}
	return route
}

// WriteReport prints a concise report of results and reports whether every
// level is valid.
func WriteReport(w io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  ⚠️  "+warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All levels are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some levels have errors")
	}
	return allValid
}
