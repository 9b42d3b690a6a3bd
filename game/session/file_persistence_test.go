package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/chipgrid/game/config"
	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/game/service"
)

func newIntroSession(t *testing.T, levels *config.Manager, id string) *service.Session {
	t.Helper()
	levelID, level := levels.GetDefault()
	source, err := json.Marshal(level)
	if err != nil {
		t.Fatalf("Failed to encode level: %v", err)
	}
	gameEngine, err := engine.NewEngine(source, levels.Rules())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return &service.Session{
		ID:             id,
		LevelID:        levelID,
		Engine:         gameEngine,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
}

func TestFilePersistence(t *testing.T) {
	tempDir := t.TempDir()

	levels, err := config.NewManager("../../levels")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, levels)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newIntroSession(t, levels, "test1")

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}

		if loadedSession.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loadedSession.ID)
		}
		if loadedSession.LevelID != "intro" {
			t.Errorf("Expected level ID intro, got %s", loadedSession.LevelID)
		}
		if loadedSession.Engine.GetState().Name != session.Engine.GetState().Name {
			t.Errorf("Expected level name %s, got %s", session.Engine.GetState().Name, loadedSession.Engine.GetState().Name)
		}
		if !loadedSession.CreatedAt.Equal(session.CreatedAt) {
			t.Errorf("Expected created at %v, got %v", session.CreatedAt, loadedSession.CreatedAt)
		}
	})

	t.Run("Save State Changes", func(t *testing.T) {
		for _, dir := range []string{"right", "right"} {
			if outcome := session.Engine.Move(dir); !outcome.Success {
				t.Fatalf("Expected move %s to succeed, got %s", dir, outcome.Reason)
			}
		}

		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save updated session: %v", err)
		}

		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load updated session: %v", err)
		}

		want := session.Engine.GetState()
		got := loadedSession.Engine.GetState()
		if got.Player.Position != want.Player.Position {
			t.Errorf("Player position not persisted: want %v, got %v", want.Player.Position, got.Player.Position)
		}
		if got.Player.Chips != 1 {
			t.Errorf("Expected 1 chip after loading, got %d", got.Player.Chips)
		}
		if got.Tick != want.Tick || got.Timer != want.Timer {
			t.Errorf("Clock not persisted: want tick %d timer %d, got tick %d timer %d", want.Tick, want.Timer, got.Tick, got.Timer)
		}
		if len(loadedSession.Engine.GetMoveHistory()) != 2 || loadedSession.Engine.GetTotalMoves() != 2 {
			t.Errorf("Move history not persisted correctly")
		}
	})

	t.Run("Reset After Load Uses Original Level", func(t *testing.T) {
		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}

		state := loadedSession.Engine.Reset()
		if state.Player.Position != (engine.Position{X: 1, Y: 1}) {
			t.Errorf("Expected reset to start position, got %v", state.Player.Position)
		}
		if state.Player.Chips != 0 || len(state.Collectibles) != 3 {
			t.Errorf("Expected reset to restore collectibles, got %d chips and %d collectibles", state.Player.Chips, len(state.Collectibles))
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		session2 := newIntroSession(t, levels, "test2")
		if err := persistence.Save(session2); err != nil {
			t.Fatalf("Failed to save second session: %v", err)
		}

		sessionIDs, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}

		found := make(map[string]bool)
		for _, id := range sessionIDs {
			found[id] = true
		}
		if len(sessionIDs) != 2 || !found["test1"] || !found["test2"] {
			t.Errorf("Expected test1 and test2, got %v", sessionIDs)
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}

		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}

		if _, err := persistence.Load("test2"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if _, err := persistence.Load("nonexistent"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}

		if err := persistence.Delete("nonexistent"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}

		if err := persistence.Save(nil); err == nil {
			t.Error("Should get error when saving nil session")
		}

		escaping := newIntroSession(t, levels, "../escape")
		if err := persistence.Save(escaping); !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
		if persistence.Exists("../escape") {
			t.Error("Path-like IDs should never exist")
		}
	})

	t.Run("Corrupt File", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(tempDir, "corrupt.json"), []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write corrupt file: %v", err)
		}
		if _, err := persistence.Load("corrupt"); err == nil || err == ErrSessionNotFound {
			t.Errorf("Expected an unmarshal error, got %v", err)
		}
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	tempDir := t.TempDir()

	levels, err := config.NewManager("../../levels")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, levels)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newIntroSession(t, levels, "file_test")
	session.Engine.Move("down")

	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	expectedFile := filepath.Join(tempDir, "file_test.json")
	data, err := os.ReadFile(expectedFile)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}

	content := string(data)
	expectedFields := []string{`"id"`, `"level_id"`, `"created_at"`, `"source"`, `"level"`, `"history"`, `"total_moves"`}
	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Session file should contain field %s", field)
		}
	}

	var stored PersistedSessionData
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}

	// The running level is written in the per-cell record form
	var level engine.LevelDocument
	if err := json.Unmarshal(stored.Level, &level); err != nil {
		t.Fatalf("Stored level is not a level document: %v", err)
	}
	if level.Tiles[0][0].Record == nil {
		t.Error("Expected the saved level to use tile records")
	}
	if level.Tick == 0 {
		t.Error("Expected the saved level to carry its tick counter")
	}
}

func TestFilePersistenceAtomicSave(t *testing.T) {
	tempDir := t.TempDir()

	levels, err := config.NewManager("../../levels")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}
	persistence, err := NewFilePersistence(tempDir, levels)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newIntroSession(t, levels, "slot1")
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	session.Engine.Move("right")
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to overwrite session: %v", err)
	}

	// Debris a crashed writer could leave next to real slots
	for _, name := range []string{".slot1-123.tmp", "not a session.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := persistence.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "slot1" {
		t.Errorf("Expected only slot1, got %v", ids)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".slot1-") && entry.Name() != ".slot1-123.tmp" {
			t.Errorf("Temp file %s left behind", entry.Name())
		}
	}

	loaded, err := persistence.Load("slot1")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if pos := loaded.Engine.GetPlayerPosition(); pos != (engine.Position{X: 2, Y: 1}) {
		t.Errorf("Expected the latest save at (2,1), got %v", pos)
	}
}
