package service

import (
	"time"

	"github.com/wricardo/chipgrid/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	LevelID        string            `json:"level_id"`
	LevelName      string            `json:"level_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success     bool              `json:"success"`
	Reason      string            `json:"reason,omitempty"`
	Ticks       int               `json:"ticks"`
	GameState   *engine.GameState `json:"game_state"`
	Message     string            `json:"message"`
	Events      []engine.Event    `json:"events,omitempty"`
	Step        *StepInfo         `json:"step,omitempty"`
	AttemptedTo *AttemptInfo      `json:"attempted_to,omitempty"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	// Summary
	MovesExecuted  int               `json:"moves_executed"`
	RequestedMoves int               `json:"requested_moves"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []engine.Event    `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`
	StopReasonCode string            `json:"stop_reason_code,omitempty"` // blocked reason code, game_over or complete
	StoppedOnMove  int               `json:"stopped_on_move,omitempty"`  // 1-based
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	// Start/end snapshot
	StartPos   engine.Position `json:"start_pos"`
	EndPos     engine.Position `json:"end_pos"`
	StartChips int             `json:"start_chips"`
	EndChips   int             `json:"end_chips"`
	Ticks      int             `json:"ticks"`

	Steps       []StepInfo   `json:"steps,omitempty"`
	AttemptedTo *AttemptInfo `json:"attempted_to,omitempty"`

	// Final status aids
	GameOver      bool     `json:"game_over"`
	Complete      bool     `json:"complete"`
	Message       string   `json:"message,omitempty"`
	PossibleMoves []string `json:"possible_moves,omitempty"`
	LocalView3x3  []string `json:"local_view_3x3,omitempty"`
	ThreatLevel   string   `json:"threat_level,omitempty"`
}

// StepInfo is a compact record for each executed move in the bulk call
type StepInfo struct {
	Idx         int             `json:"idx"`
	Dir         string          `json:"dir"`
	From        engine.Position `json:"from"`
	To          engine.Position `json:"to"`
	Tile        string          `json:"tile"`
	Ticks       int             `json:"ticks"`
	ChipsBefore int             `json:"chips_before"`
	ChipsAfter  int             `json:"chips_after"`
	Success     bool            `json:"success"`
	PickedUp    []string        `json:"picked_up,omitempty"`
	Slid        bool            `json:"slid,omitempty"`
	Complete    bool            `json:"complete,omitempty"`
}

// AttemptInfo details the first failed target cell attempted
type AttemptInfo struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Tile     string `json:"tile"`
	Occupant string `json:"occupant,omitempty"`
	Reason   string `json:"reason"`
}

// InputResult reports a queued direction and what is still pending
type InputResult struct {
	Direction string   `json:"direction"`
	Pending   []string `json:"pending"`
	Tick      int      `json:"tick"`
}

// TickResponse contains the result of advancing a session's clock
type TickResponse struct {
	Requested int               `json:"requested"`
	Ticks     int               `json:"ticks"`
	Events    []engine.Event    `json:"events"`
	GameState *engine.GameState `json:"game_state"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// LevelInfo provides information about a level file
type LevelInfo struct {
	Filename    string `json:"filename"`
	LevelID     string `json:"level_id"` // The identifier to use for session creation
	Name        string `json:"name"`     // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Timer       int    `json:"timer"`
	Chips       int    `json:"chips"`
	Enemies     int    `json:"enemies"`
}
