package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/game/service"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidLevel  = errors.New("invalid level")
)

// RulesFile is the name of the optional rules file in the level directory
const RulesFile = "rules.yaml"

// DefaultLevelID is preferred as the default level when present
const DefaultLevelID = "intro"

// Manager handles level loading and caching
type Manager struct {
	levelDir     string
	rules        engine.Rules
	defaultID    string
	defaultLevel *engine.LevelDocument
	levels       map[string]*engine.LevelDocument
	mu           sync.RWMutex
}

// NewManager creates a new level manager over levelDir. The rules in
// levelDir/rules.yaml apply to every level; defaults are used when the file
// is absent.
func NewManager(levelDir string) (*Manager, error) {
	if _, err := os.Stat(levelDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("level directory does not exist: %s", levelDir)
	}

	m := &Manager{
		levelDir: levelDir,
		levels:   make(map[string]*engine.LevelDocument),
	}

	if err := m.loadRules(); err != nil {
		return nil, err
	}
	m.loadDefaultLevel()

	return m, nil
}

func (m *Manager) loadRules() error {
	rules, err := engine.LoadRules(filepath.Join(m.levelDir, RulesFile))
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	m.mu.Lock()
	m.rules = rules
	m.mu.Unlock()
	return nil
}

// Rules returns the rules levels are played with
func (m *Manager) Rules() engine.Rules {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules
}

// levelID strips a trailing .json so "intro" and "intro.json" share a cache entry
func levelID(name string) string {
	return strings.TrimSuffix(name, ".json")
}

// LoadLevel loads a level by name
func (m *Manager) LoadLevel(name string) (*engine.LevelDocument, error) {
	id := levelID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, ErrLevelNotFound
	}

	m.mu.RLock()
	if level, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	rules := m.rules
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[id]; exists {
		return level, nil
	}

	path := filepath.Join(m.levelDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrLevelNotFound
		}
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}

	var level engine.LevelDocument
	if err := json.Unmarshal(data, &level); err != nil {
		return nil, fmt.Errorf("%w: failed to parse level: %v", ErrInvalidLevel, err)
	}
	if level.LevelPath == "" {
		level.LevelPath = path
	}

	if err := validate(&level, rules); err != nil {
		return nil, err
	}

	m.levels[id] = &level
	return &level, nil
}

// validate decodes level and checks it is playable. Recoverable decode
// problems are tolerated; the engine reports them as diagnostics.
func validate(level *engine.LevelDocument, rules engine.Rules) error {
	state, _, err := engine.Decode(level, rules)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if err := engine.ValidateLevel(state); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	return nil
}

// ListLevels returns information about all valid levels, sorted by ID
func (m *Manager) ListLevels() ([]*service.LevelInfo, error) {
	entries, err := os.ReadDir(m.levelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read level directory: %w", err)
	}

	var levels []*service.LevelInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := levelID(entry.Name())
		level, err := m.LoadLevel(id)
		if err != nil {
			// Skip invalid levels
			continue
		}

		levels = append(levels, newLevelInfo(entry.Name(), id, level))
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].LevelID < levels[j].LevelID })
	return levels, nil
}

func newLevelInfo(filename, id string, level *engine.LevelDocument) *service.LevelInfo {
	info := &service.LevelInfo{
		Filename:    filename,
		LevelID:     id,
		Name:        level.Name,
		Description: level.Description,
		Height:      len(level.Tiles),
		Timer:       level.Timer,
	}
	if len(level.Tiles) > 0 {
		info.Width = len(level.Tiles[0])
	}
	for _, c := range level.Collectibles {
		if c.Type == "chip" {
			info.Chips++
		}
	}
	for _, a := range level.Actors {
		switch a.Type {
		case "bug", "pinkball", "frog":
			info.Enemies++
		}
	}
	return info
}

// GetDefault returns the default level and its ID
func (m *Manager) GetDefault() (string, *engine.LevelDocument) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID, m.defaultLevel
}

// SetDefault sets the default level by name
func (m *Manager) SetDefault(name string) error {
	level, err := m.LoadLevel(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = levelID(name)
	m.defaultLevel = level
	return nil
}

// RefreshCache drops all cached levels and reloads the rules and the
// default level from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.levels = make(map[string]*engine.LevelDocument)
	m.mu.Unlock()

	if err := m.loadRules(); err != nil {
		return err
	}
	m.loadDefaultLevel()
	return nil
}

// loadDefaultLevel picks intro, else the first valid level, else the
// built-in starter room
func (m *Manager) loadDefaultLevel() {
	id := DefaultLevelID
	level, err := m.LoadLevel(id)
	if err != nil {
		levels, listErr := m.ListLevels()
		if listErr == nil && len(levels) > 0 {
			id = levels[0].LevelID
			level, err = m.LoadLevel(id)
		}
	}
	if err != nil || level == nil {
		id, level = "starter", builtinLevel()
	}

	m.mu.Lock()
	m.defaultID = id
	m.defaultLevel = level
	m.mu.Unlock()
}

// SaveLevel validates level and writes it to the level directory
func (m *Manager) SaveLevel(name string, level *engine.LevelDocument) error {
	if level == nil {
		return fmt.Errorf("%w: level is nil", ErrInvalidLevel)
	}
	id := levelID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: bad level name %q", ErrInvalidLevel, name)
	}
	if err := validate(level, m.Rules()); err != nil {
		return err
	}

	data, err := json.MarshalIndent(level, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.levelDir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	m.mu.Lock()
	m.levels[id] = level
	m.mu.Unlock()

	return nil
}

// Count returns the number of cached levels
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.levels)
}

// builtinLevel decodes the engine's starter room
func builtinLevel() *engine.LevelDocument {
	var level engine.LevelDocument
	if err := json.Unmarshal(engine.DefaultLevelDocument(), &level); err != nil {
		panic(fmt.Sprintf("built-in level is invalid: %v", err))
	}
	return &level
}
