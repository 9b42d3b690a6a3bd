package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session. Source is the level
// document the session started from, so Reset still works after a restart;
// Level is the save form of the running level.
type PersistedSessionData struct {
	ID             string                    `json:"id"`
	LevelID        string                    `json:"level_id"`
	CreatedAt      time.Time                 `json:"created_at"`
	LastAccessedAt time.Time                 `json:"last_accessed_at"`
	Source         json.RawMessage           `json:"source"`
	Level          json.RawMessage           `json:"level"`
	History        []engine.MoveHistoryEntry `json:"history"`
	TotalMoves     int                       `json:"total_moves"`
}

// newPersistedData captures everything needed to rebuild session
func newPersistedData(session *service.Session) (*PersistedSessionData, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if session.Engine == nil {
		return nil, fmt.Errorf("session %s has no engine", session.ID)
	}

	level, err := session.Engine.Save()
	if err != nil {
		return nil, fmt.Errorf("failed to save level state: %w", err)
	}

	return &PersistedSessionData{
		ID:             session.ID,
		LevelID:        session.LevelID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		Source:         json.RawMessage(session.Engine.Source()),
		Level:          json.RawMessage(level),
		History:        session.Engine.GetMoveHistory(),
		TotalMoves:     session.Engine.GetTotalMoves(),
	}, nil
}

// restore rebuilds the session: a fresh engine on the original document,
// then the saved level and history on top
func (d *PersistedSessionData) restore(rules engine.Rules) (*service.Session, error) {
	gameEngine, err := engine.NewEngine(d.Source, rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}

	if err := gameEngine.Restore(d.Level, d.History, d.TotalMoves); err != nil {
		return nil, fmt.Errorf("failed to restore game state: %w", err)
	}

	return &service.Session{
		ID:             d.ID,
		LevelID:        d.LevelID,
		Engine:         gameEngine,
		CreatedAt:      d.CreatedAt,
		LastAccessedAt: d.LastAccessedAt,
	}, nil
}
