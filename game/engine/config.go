package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidateLevel checks a decoded level for playability
func ValidateLevel(l *LevelState) error {
	if l == nil {
		return fmt.Errorf("level validation: level is nil")
	}
	w, h := l.Grid.Width(), l.Grid.Height()
	if w < MinGridSize || w > MaxGridSize || h < MinGridSize || h > MaxGridSize {
		return fmt.Errorf("level validation: grid must be between %d and %d cells per side, got %dx%d", MinGridSize, MaxGridSize, w, h)
	}

	player := l.Player()
	if player == nil {
		return fmt.Errorf("level validation: level must contain a player")
	}
	if !player.Alive {
		return fmt.Errorf("level validation: player must start alive")
	}

	exits := FindTiles(l, TileExit)
	if len(exits) == 0 {
		return fmt.Errorf("level validation: level must contain at least one exit (E) tile")
	}

	chips := player.Chips
	keys := make(map[KeyColor]bool)
	for _, k := range player.KeyList() {
		keys[k] = true
	}
	for _, c := range l.Collectibles() {
		switch c.Kind {
		case CollectibleChip:
			chips++
		case CollectibleKey:
			keys[c.Color] = true
		}
	}

	var problem error
	l.Grid.Each(func(p Position, t Tile) {
		if problem != nil {
			return
		}
		switch t.Kind {
		case TileChipSocket:
			if t.RequiredChips > chips {
				problem = fmt.Errorf("level validation: chip socket at %s needs %d chips but only %d exist", p, t.RequiredChips, chips)
			}
		case TileLockedDoor:
			if !keys[t.KeyColor] {
				problem = fmt.Errorf("level validation: %s door at %s has no matching key", t.KeyColor, p)
			}
		}
	})
	if problem != nil {
		return problem
	}

	// Reachability is optimistic: every door, socket and water cell is
	// assumed passable eventually.
	reached := reachable(l, player.Pos)
	for _, exit := range exits {
		if reached[exit] {
			return nil
		}
	}
	return fmt.Errorf("level validation: no exit is reachable from the player at %s", player.Pos)
}

func reachable(l *LevelState, start Position) map[Position]bool {
	seen := map[Position]bool{start: true}
	queue := []Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			next := cur.Step(d)
			if seen[next] || !l.Grid.InBounds(next) {
				continue
			}
			if k := l.Grid.TileAt(next).Kind; k == TileWall || k == TileEmpty {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}

// LoadRules reads engine tuning from a YAML file. A missing file yields the
// defaults; fields absent from the file keep their default values.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return rules, nil
	}
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return DefaultRules(), fmt.Errorf("failed to parse rules file '%s': %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return DefaultRules(), err
	}
	return rules, nil
}

// LoadLevelFile loads and validates a level document from disk
func LoadLevelFile(filename string, rules Rules) (*LevelState, Diagnostics, error) {
	// Support CONFIG_DIR environment variable for alternative level directory
	levelPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "levels/") {
			levelPath = filepath.Join(configDir, strings.TrimPrefix(filename, "levels/"))
		}
	}

	data, err := os.ReadFile(levelPath)
	if err != nil {
		return nil, nil, err
	}

	level, diags, err := Deserialize(data, rules)
	if err != nil {
		return nil, nil, err
	}
	if level.LevelPath == "" {
		level.LevelPath = filename
	}
	if err := ValidateLevel(level); err != nil {
		return nil, diags, err
	}
	return level, diags, nil
}

// LoadLevelByName loads a level by name from the levels directory
func LoadLevelByName(name string, rules Rules) (*LevelState, Diagnostics, error) {
	if !strings.HasSuffix(name, ".json") {
		name = name + ".json"
	}
	levelPath := filepath.Join("levels", name)

	if _, err := os.Stat(levelPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("level file '%s' not found", name)
	}

	level, diags, err := LoadLevelFile(levelPath, rules)
	if err != nil {
		return nil, diags, fmt.Errorf("invalid level '%s': %w", name, err)
	}
	return level, diags, nil
}

// DefaultLevelDocument is the built-in level used when no level directory is
// available: a walled room with a key, a door and the exit behind it.
func DefaultLevelDocument() []byte {
	return []byte(`{
  "name": "Starter Room",
  "description": "Pick up the chip and the red key, open the door and reach the exit.",
  "tiles": [
    ["W", "W", "W", "W", "W", "W", "W"],
    ["W", "P", "P", "P", "W", "E", "W"],
    ["W", "P", "P", "P", "W", "P", "W"],
    ["W", "P", "P", "P", "RD", "P", "W"],
    ["W", "P", "P", "P", "W", "CS_1", "W"],
    ["W", "P", "P", "P", "P", "P", "W"],
    ["W", "W", "W", "W", "W", "W", "W"]
  ],
  "actors": [
    {"type": "player", "x": 1, "y": 1}
  ],
  "collectibles": [
    {"type": "key", "x": 3, "y": 1, "color": "red"},
    {"type": "chip", "x": 2, "y": 5}
  ],
  "timer": 0,
  "levelPath": "builtin/starter"
}`)
}
