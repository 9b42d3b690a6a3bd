package service

import (
	"context"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/wricardo/chipgrid/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, levelID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Input and time
	QueueInput(ctx context.Context, sessionID, direction string) (*InputResult, error)
	Tick(ctx context.Context, sessionID string, n int) (*TickResponse, error)

	// Game Operations
	Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Levels
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	LoadLevel(ctx context.Context, levelID string) (*engine.LevelDocument, error)
	SaveLevel(ctx context.Context, levelID string, level *engine.LevelDocument) error
	LevelSchema(ctx context.Context) *jsonschema.Schema
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, levelID string, level *engine.LevelDocument, rules engine.Rules) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, levelID string, level *engine.LevelDocument, rules engine.Rules) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// LevelManager handles level loading and the rules they are played with
type LevelManager interface {
	LoadLevel(name string) (*engine.LevelDocument, error)
	ListLevels() ([]*LevelInfo, error)
	GetDefault() (string, *engine.LevelDocument)
	SaveLevel(name string, level *engine.LevelDocument) error
	Rules() engine.Rules
}

// Session represents an active game session
type Session struct {
	ID             string
	LevelID        string
	Engine         *engine.GameEngine
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
