package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/wricardo/chipgrid/game/engine"
)

func createTestLevelDir(t *testing.T) string {
	return t.TempDir()
}

func createValidLevel() *engine.LevelDocument {
	var level engine.LevelDocument
	source := `{
  "name": "Test Level",
  "description": "Test level",
  "tiles": [
    ["W", "W", "W", "W", "W"],
    ["W", "P", "P", "E", "W"],
    ["W", "P", "S", "P", "W"],
    ["W", "W", "W", "W", "W"]
  ],
  "actors": [
    {"type": "player", "x": 1, "y": 1},
    {"type": "bug", "x": 3, "y": 2, "facing": "up"}
  ],
  "collectibles": [{"type": "chip", "x": 2, "y": 1}],
  "timer": 30
}`
	if err := json.Unmarshal([]byte(source), &level); err != nil {
		panic(err)
	}
	return &level
}

func writeLevelFile(t *testing.T, dir, name string, level *engine.LevelDocument) {
	t.Helper()
	data, err := json.MarshalIndent(level, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal level: %v", err)
	}

	filename := name
	if filepath.Ext(filename) == "" {
		filename = name + ".json"
	}

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		t.Fatalf("Failed to write level file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := createTestLevelDir(t)
		writeLevelFile(t, dir, "intro", createValidLevel())

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if id, level := manager.GetDefault(); id != "intro" || level == nil {
			t.Errorf("Expected intro as default, got %q", id)
		}
		if !reflect.DeepEqual(manager.Rules(), engine.DefaultRules()) {
			t.Errorf("Expected default rules without rules.yaml, got %+v", manager.Rules())
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path"); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to the built-in level", func(t *testing.T) {
		dir := createTestLevelDir(t)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("NewManager should succeed without level files, got error: %v", err)
		}
		id, level := manager.GetDefault()
		if id != "starter" || level == nil || level.Name != "Starter Room" {
			t.Errorf("Expected the built-in starter room, got %q %+v", id, level)
		}
	})

	t.Run("first level when intro is missing", func(t *testing.T) {
		dir := createTestLevelDir(t)
		writeLevelFile(t, dir, "zeta", createValidLevel())
		writeLevelFile(t, dir, "alpha", createValidLevel())

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if id, _ := manager.GetDefault(); id != "alpha" {
			t.Errorf("Expected alpha as default, got %q", id)
		}
	})

	t.Run("rules file", func(t *testing.T) {
		dir := createTestLevelDir(t)
		if err := os.WriteFile(filepath.Join(dir, RulesFile), []byte("exit_delay: 7\nseed: 42\n"), 0644); err != nil {
			t.Fatalf("Failed to write rules: %v", err)
		}

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		rules := manager.Rules()
		if rules.ExitDelay != 7 || rules.Seed != 42 || rules.MaxChainDepth != engine.DefaultRules().MaxChainDepth {
			t.Errorf("Unexpected rules: %+v", rules)
		}
	})

	t.Run("broken rules file", func(t *testing.T) {
		dir := createTestLevelDir(t)
		if err := os.WriteFile(filepath.Join(dir, RulesFile), []byte("max_chain_depth: 0\n"), 0644); err != nil {
			t.Fatalf("Failed to write rules: %v", err)
		}
		if _, err := NewManager(dir); err == nil {
			t.Error("Expected invalid rules to fail")
		}
	})
}

func TestManager_LoadLevel(t *testing.T) {
	dir := createTestLevelDir(t)

	writeLevelFile(t, dir, "intro", createValidLevel())
	easy := createValidLevel()
	easy.Name = "Easy"
	easy.Timer = 0
	writeLevelFile(t, dir, "easy", easy)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("load existing level", func(t *testing.T) {
		level, err := manager.LoadLevel("easy")
		if err != nil {
			t.Fatalf("Failed to load level: %v", err)
		}
		if level.Name != "Easy" {
			t.Errorf("Expected level name 'Easy', got '%s'", level.Name)
		}
		if level.LevelPath != filepath.Join(dir, "easy.json") {
			t.Errorf("Expected level path to default to the file, got '%s'", level.LevelPath)
		}
	})

	t.Run("load with .json extension", func(t *testing.T) {
		level, err := manager.LoadLevel("easy.json")
		if err != nil {
			t.Fatalf("Failed to load level with extension: %v", err)
		}
		if level.Name != "Easy" {
			t.Errorf("Expected level name 'Easy', got '%s'", level.Name)
		}
	})

	t.Run("load from cache", func(t *testing.T) {
		level1, _ := manager.LoadLevel("easy")
		level2, err := manager.LoadLevel("easy.json")
		if err != nil {
			t.Fatalf("Failed to load level from cache: %v", err)
		}
		if level1 != level2 {
			t.Error("Expected level to be loaded from cache")
		}
	})

	t.Run("load non-existent level", func(t *testing.T) {
		if _, err := manager.LoadLevel("non-existent"); err != ErrLevelNotFound {
			t.Errorf("Expected ErrLevelNotFound, got %v", err)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		for _, name := range []string{"../intro", "sub/intro", ""} {
			if _, err := manager.LoadLevel(name); err != ErrLevelNotFound {
				t.Errorf("Expected ErrLevelNotFound for %q, got %v", name, err)
			}
		}
	})

	t.Run("load unplayable level", func(t *testing.T) {
		body := `{"tiles": [["P", "W", "E"]], "actors": [{"type": "player", "x": 0, "y": 0}]}`
		if err := os.WriteFile(filepath.Join(dir, "walled.json"), []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write level: %v", err)
		}

		_, err := manager.LoadLevel("walled")
		if !errors.Is(err, ErrInvalidLevel) || !strings.Contains(err.Error(), "no exit is reachable") {
			t.Errorf("Expected ErrInvalidLevel for an unreachable exit, got %v", err)
		}
	})

	t.Run("load unknown actor", func(t *testing.T) {
		body := `{"tiles": [["P", "E"]], "actors": [{"type": "dragon", "x": 0, "y": 0}]}`
		if err := os.WriteFile(filepath.Join(dir, "dragon.json"), []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write level: %v", err)
		}

		if _, err := manager.LoadLevel("dragon"); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Expected ErrInvalidLevel, got %v", err)
		}
	})

	t.Run("load malformed JSON", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "malformed.json"), []byte(`{"name": "Malformed", invalid json}`), 0644); err != nil {
			t.Fatalf("Failed to write malformed level: %v", err)
		}

		if _, err := manager.LoadLevel("malformed"); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Expected ErrInvalidLevel for malformed JSON, got %v", err)
		}
	})

	t.Run("recoverable problems are tolerated", func(t *testing.T) {
		body := `{"tiles": [["P", "E", "T_3"]], "actors": [{"type": "player", "x": 0, "y": 0}]}`
		if err := os.WriteFile(filepath.Join(dir, "dangling.json"), []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write level: %v", err)
		}

		if _, err := manager.LoadLevel("dangling"); err != nil {
			t.Errorf("Expected a dangling trap to load, got %v", err)
		}
	})
}

func TestManager_ListLevels(t *testing.T) {
	dir := createTestLevelDir(t)

	levels := []struct {
		filename string
		name     string
	}{
		{"intro", "Intro"},
		{"easy", "Easy"},
		{"medium", "Medium"},
		{"hard", "Hard"},
	}
	for _, lv := range levels {
		level := createValidLevel()
		level.Name = lv.name
		writeLevelFile(t, dir, lv.filename, level)
	}

	// Files that should be ignored
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("readme"), 0644)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644)
	os.Mkdir(filepath.Join(dir, "drafts.json"), 0755)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	levelList, err := manager.ListLevels()
	if err != nil {
		t.Fatalf("Failed to list levels: %v", err)
	}
	if len(levelList) != 4 {
		t.Fatalf("Expected 4 levels, got %d", len(levelList))
	}

	wantOrder := []string{"easy", "hard", "intro", "medium"}
	for i, info := range levelList {
		if info.LevelID != wantOrder[i] {
			t.Errorf("Expected level %d to be %s, got %s", i, wantOrder[i], info.LevelID)
		}
	}

	info := levelList[0]
	if info.Filename != "easy.json" || info.Name != "Easy" || info.Width != 5 || info.Height != 4 {
		t.Errorf("Unexpected level info: %+v", info)
	}
	if info.Chips != 1 || info.Enemies != 1 || info.Timer != 30 {
		t.Errorf("Expected 1 chip, 1 enemy and a 30s timer, got %+v", info)
	}
}

func TestManager_SaveLevel(t *testing.T) {
	dir := createTestLevelDir(t)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("valid level", func(t *testing.T) {
		level := createValidLevel()
		level.Name = "Saved"
		if err := manager.SaveLevel("saved", level); err != nil {
			t.Fatalf("Failed to save level: %v", err)
		}

		if _, err := os.Stat(filepath.Join(dir, "saved.json")); err != nil {
			t.Errorf("Expected level file on disk: %v", err)
		}

		loaded, err := manager.LoadLevel("saved")
		if err != nil || loaded.Name != "Saved" {
			t.Errorf("Expected saved level to load, got %v %v", loaded, err)
		}

		// A fresh manager reads what was written
		fresh, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		reread, err := fresh.LoadLevel("saved")
		if err != nil {
			t.Fatalf("Failed to reload saved level: %v", err)
		}
		if reread.Tiles[1][3].Code != "E" || len(reread.Actors) != 2 {
			t.Errorf("Saved level lost content: %+v", reread)
		}
	})

	t.Run("invalid level - no player", func(t *testing.T) {
		level := createValidLevel()
		level.Actors = []engine.ActorRecord{}
		err := manager.SaveLevel("noplayer", level)
		if !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Expected ErrInvalidLevel, got %v", err)
		}
		if _, statErr := os.Stat(filepath.Join(dir, "noplayer.json")); statErr == nil {
			t.Error("Invalid level should not be written")
		}
	})

	t.Run("invalid level - door without key", func(t *testing.T) {
		level := createValidLevel()
		level.Tiles[2][1] = engine.TileEntry{Code: "BD"}
		if err := manager.SaveLevel("locked", level); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Expected ErrInvalidLevel, got %v", err)
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		if err := manager.SaveLevel("../escape", createValidLevel()); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Expected ErrInvalidLevel for a bad name, got %v", err)
		}
	})

	t.Run("nil level", func(t *testing.T) {
		if err := manager.SaveLevel("nil", nil); err == nil {
			t.Error("Expected error for nil level")
		}
	})
}

func TestManager_ReloadLevel(t *testing.T) {
	dir := createTestLevelDir(t)

	level := createValidLevel()
	level.Name = "Changeable"
	writeLevelFile(t, dir, "intro", level)
	writeLevelFile(t, dir, "changeable", level)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	loaded, _ := manager.LoadLevel("changeable")
	if loaded.Timer != 30 {
		t.Errorf("Expected initial timer 30, got %d", loaded.Timer)
	}

	level.Timer = 90
	writeLevelFile(t, dir, "changeable", level)

	if err := manager.ReloadLevel("changeable"); err != nil {
		t.Fatalf("Failed to reload level: %v", err)
	}

	reloaded, _ := manager.LoadLevel("changeable")
	if reloaded.Timer != 90 {
		t.Errorf("Expected reloaded timer 90, got %d", reloaded.Timer)
	}
}

func TestManager_RefreshCache(t *testing.T) {
	dir := createTestLevelDir(t)
	writeLevelFile(t, dir, "other", createValidLevel())

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if id, _ := manager.GetDefault(); id != "other" {
		t.Fatalf("Expected other as default, got %q", id)
	}

	intro := createValidLevel()
	intro.Name = "Intro"
	writeLevelFile(t, dir, "intro", intro)
	os.WriteFile(filepath.Join(dir, RulesFile), []byte("exit_delay: 1\n"), 0644)

	if err := manager.RefreshCache(); err != nil {
		t.Fatalf("RefreshCache failed: %v", err)
	}
	if id, level := manager.GetDefault(); id != "intro" || level.Name != "Intro" {
		t.Errorf("Expected intro after refresh, got %q", id)
	}
	if manager.Rules().ExitDelay != 1 {
		t.Errorf("Expected rules to be reloaded, got %+v", manager.Rules())
	}
}

func TestManager_SetDefault(t *testing.T) {
	dir := createTestLevelDir(t)
	writeLevelFile(t, dir, "intro", createValidLevel())
	other := createValidLevel()
	other.Name = "Other"
	writeLevelFile(t, dir, "other", other)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.SetDefault("other.json"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if id, level := manager.GetDefault(); id != "other" || level.Name != "Other" {
		t.Errorf("Expected other as default, got %q", id)
	}
	if err := manager.SetDefault("missing"); err != ErrLevelNotFound {
		t.Errorf("Expected ErrLevelNotFound, got %v", err)
	}
}

func TestManager_BundledLevels(t *testing.T) {
	manager, err := NewManager("../../levels")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	levels, err := manager.ListLevels()
	if err != nil {
		t.Fatalf("Failed to list levels: %v", err)
	}
	found := make(map[string]bool)
	for _, info := range levels {
		found[info.LevelID] = true
	}
	for _, id := range []string{"intro", "ice", "buttons", "crawlers"} {
		if !found[id] {
			t.Errorf("Bundled level %s is missing or invalid", id)
		}
	}
	if id, _ := manager.GetDefault(); id != "intro" {
		t.Errorf("Expected intro as default, got %q", id)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := createTestLevelDir(t)
	writeLevelFile(t, dir, "intro", createValidLevel())

	for i := 1; i <= 5; i++ {
		level := createValidLevel()
		level.Name = "Level" + string(rune('0'+i))
		writeLevelFile(t, dir, "level"+string(rune('0'+i)), level)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := "level" + string(rune('0'+((id%5)+1)))
			if _, err := manager.LoadLevel(name); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}

	// intro plus the five levels
	if manager.Count() != 6 {
		t.Errorf("Expected 6 levels in cache, got %d", manager.Count())
	}
}

// ReloadLevel drops one level from the cache and reads it again
func (m *Manager) ReloadLevel(name string) error {
	m.mu.Lock()
	delete(m.levels, levelID(name))
	m.mu.Unlock()

	_, err := m.LoadLevel(name)
	return err
}
