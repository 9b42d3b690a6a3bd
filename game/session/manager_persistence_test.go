package session

import (
	"testing"
	"time"

	"github.com/wricardo/chipgrid/game/config"
	"github.com/wricardo/chipgrid/game/engine"
)

func TestManagerWithPersistence(t *testing.T) {
	tempDir := t.TempDir()

	levels, err := config.NewManager("../../levels")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, levels)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	manager := NewManagerWithPersistence(persistence)
	levelID, level := levels.GetDefault()

	t.Run("Create Session Auto-Saves", func(t *testing.T) {
		session, err := manager.Create("auto1", levelID, level, levels.Rules())
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if !persistence.Exists(session.ID) {
			t.Error("Session should be auto-saved on creation")
		}

		loadedSession, err := persistence.Load(session.ID)
		if err != nil {
			t.Fatalf("Failed to load auto-saved session: %v", err)
		}
		if loadedSession.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loadedSession.ID)
		}
	})

	t.Run("Get Session Loads from Persistence", func(t *testing.T) {
		manager2 := NewManagerWithPersistence(persistence)

		session, err := manager2.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session from persistence: %v", err)
		}
		if session.ID != "auto1" {
			t.Errorf("Expected ID auto1, got %s", session.ID)
		}

		session2, err := manager2.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session from memory: %v", err)
		}
		if session2 != session {
			t.Error("Session should be cached in memory after loading from persistence")
		}
	})

	t.Run("Save Method Persists Changes", func(t *testing.T) {
		session, err := manager.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}

		originalPos := session.Engine.GetPlayerPosition()
		if outcome := session.Engine.Move("down"); !outcome.Success {
			t.Fatalf("Expected move to succeed, got %s", outcome.Reason)
		}

		if err := manager.Save("auto1"); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		manager3 := NewManagerWithPersistence(persistence)
		loadedSession, err := manager3.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to load session after manual save: %v", err)
		}

		if loadedSession.Engine.GetPlayerPosition() == originalPos {
			t.Error("Player position changes should be persisted")
		}
		if len(loadedSession.Engine.GetMoveHistory()) != 1 {
			t.Error("Move history should be persisted")
		}
	})

	t.Run("Queued Input Survives Reload", func(t *testing.T) {
		session, err := manager.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if err := session.Engine.QueueInput("right"); err != nil {
			t.Fatalf("Failed to queue input: %v", err)
		}
		if err := manager.Save("auto1"); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		loadedSession, err := NewManagerWithPersistence(persistence).Get("auto1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		pending := loadedSession.Engine.GetState().Player.PendingInput
		if len(pending) != 1 || pending[0] != "right" {
			t.Errorf("Expected pending input [right], got %v", pending)
		}
	})

	t.Run("Save Unknown Session", func(t *testing.T) {
		if err := manager.Save("missing"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Delete Removes from Persistence", func(t *testing.T) {
		session, err := manager.Create("delete_test", levelID, level, levels.Rules())
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if !persistence.Exists(session.ID) {
			t.Error("Session should exist in persistence")
		}

		if err := manager.Delete("DELETE_TEST"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}

		if persistence.Exists(session.ID) {
			t.Error("Session should be removed from persistence on delete")
		}
		if _, err := manager.Get(session.ID); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Delete Persisted-Only Session", func(t *testing.T) {
		if _, err := manager.Create("cold", levelID, level, levels.Rules()); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		fresh := NewManagerWithPersistence(persistence)
		if err := fresh.Delete("cold"); err != nil {
			t.Fatalf("Failed to delete persisted session: %v", err)
		}
		if persistence.Exists("cold") {
			t.Error("Persisted copy should be gone")
		}
	})

	t.Run("Generated IDs Avoid Persisted Sessions", func(t *testing.T) {
		fresh := NewManagerWithPersistence(persistence)
		for i := 0; i < 20; i++ {
			session, err := fresh.Create("", levelID, level, levels.Rules())
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}
			if session.ID == "auto1" {
				t.Fatal("Generated ID collided with a persisted session")
			}
		}
	})

	t.Run("Load Persisted Sessions on Startup", func(t *testing.T) {
		ids := []string{"startup1", "startup2", "startup3"}
		for _, id := range ids {
			if _, err := manager.Create(id, levelID, level, levels.Rules()); err != nil {
				t.Fatalf("Failed to create session %s: %v", id, err)
			}
		}

		manager4 := NewManagerWithPersistence(persistence)
		if err := manager4.LoadPersistedSessions(); err != nil {
			t.Fatalf("Failed to load persisted sessions: %v", err)
		}

		for _, id := range ids {
			session, err := manager4.Get(id)
			if err != nil {
				t.Errorf("Failed to get session %s after loading persisted sessions: %v", id, err)
				continue
			}
			if session.ID != id {
				t.Errorf("Expected ID %s, got %s", id, session.ID)
			}
		}

		if len(manager4.List()) < len(ids) {
			t.Errorf("Expected at least %d sessions, got %d", len(ids), len(manager4.List()))
		}
	})

	t.Run("Last Accessed Persists On Save", func(t *testing.T) {
		session, err := manager.Get("startup1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}

		originalTime := session.LastAccessedAt
		time.Sleep(10 * time.Millisecond)

		if err := manager.UpdateLastAccessed("startup1"); err != nil {
			t.Fatalf("Failed to update last accessed: %v", err)
		}
		if err := manager.SaveAllSessions(); err != nil {
			t.Fatalf("Failed to save sessions: %v", err)
		}

		manager5 := NewManagerWithPersistence(persistence)
		loadedSession, err := manager5.Get("startup1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if !loadedSession.LastAccessedAt.After(originalTime) {
			t.Error("Last accessed time should be updated and persisted")
		}
	})
}

func TestManagerWithoutPersistence(t *testing.T) {
	manager := NewManager()

	if err := manager.Save("anything"); err != nil {
		t.Errorf("Save without persistence should be a no-op, got %v", err)
	}
	if err := manager.LoadPersistedSessions(); err != nil {
		t.Errorf("LoadPersistedSessions without persistence should be a no-op, got %v", err)
	}
	if err := manager.SaveAllSessions(); err != nil {
		t.Errorf("SaveAllSessions without persistence should be a no-op, got %v", err)
	}
	if _, err := manager.Create("plain", "test", createTestLevel(), engine.DefaultRules()); err != nil {
		t.Errorf("Create without persistence failed: %v", err)
	}
}
