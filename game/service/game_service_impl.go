package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/wricardo/chipgrid/game/engine"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	levels   LevelManager
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, levels LevelManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
	}
}

func newSessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		LevelID:        sess.LevelID,
		LevelName:      sess.Engine.Level().Name,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
	}
}

// CreateSession creates a new game session on the named level, or on the
// default level when levelID is empty
func (s *gameServiceImpl) CreateSession(ctx context.Context, levelID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var level *engine.LevelDocument
	var err error
	if levelID != "" {
		level, err = s.levels.LoadLevel(levelID)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "level not found") {
				available, listErr := s.levels.ListLevels()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, info := range available {
						ids = append(ids, info.LevelID)
					}
					return nil, fmt.Errorf("level '%s' not found. Available levels: %v", levelID, ids)
				}
				return nil, fmt.Errorf("level '%s' not found. Use /api/levels to list available levels", levelID)
			}
			return nil, fmt.Errorf("failed to load level %s: %w", levelID, err)
		}
	} else {
		levelID, level = s.levels.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", levelID, level, s.levels.Rules())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return newSessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return newSessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, newSessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// QueueInput buffers a direction for the player's next move opportunity
// without advancing time
func (s *gameServiceImpl) QueueInput(ctx context.Context, sessionID, direction string) (*InputResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if err := sess.Engine.QueueInput(direction); err != nil {
		return nil, fmt.Errorf("failed to queue %q: %w", direction, err)
	}

	state := sess.Engine.GetState()
	result := &InputResult{Direction: strings.ToLower(direction), Pending: []string{}, Tick: state.Tick}
	if state.Player != nil {
		result.Pending = state.Player.PendingInput
	}

	if err := s.sessions.Save(sessionID); err != nil {
		fmt.Printf("Warning: Failed to persist session %s after input: %v\n", sessionID, err)
	}
	return result, nil
}

// Tick advances a session's clock by n ticks
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, n int) (*TickResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	results := sess.Engine.Tick(n)
	resp := &TickResponse{Requested: n, Ticks: len(results), Events: []engine.Event{}}
	for _, r := range results {
		resp.Events = append(resp.Events, r.Events...)
	}
	resp.GameState = sess.Engine.GetState()

	if err := s.sessions.Save(sessionID); err != nil {
		fmt.Printf("Warning: Failed to persist session %s after tick: %v\n", sessionID, err)
	}
	return resp, nil
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if reset {
		sess.Engine.Reset()
	}

	chipsBefore := chipsOf(sess.Engine.GetState())
	outcome := sess.Engine.Move(direction)
	state := sess.Engine.GetState()

	result := &MoveResult{
		Success:   outcome.Success,
		Reason:    outcome.Reason,
		Ticks:     outcome.Ticks,
		GameState: state,
		Message:   outcome.Message,
		Events:    outcome.Events,
	}
	if outcome.Success {
		step := newStepInfo(1, outcome, chipsBefore, state)
		result.Step = &step
	} else if outcome.Reason != "invalid_direction" && outcome.Reason != "finished" {
		result.AttemptedTo = attemptAt(state, outcome.From, direction, outcome.Reason)
	}

	// Auto-save session after move
	if err := s.sessions.Save(sessionID); err != nil {
		fmt.Printf("Warning: Failed to persist session %s after move: %v\n", sessionID, err)
	}

	return result, nil
}

// BulkMove executes multiple moves in sequence, stopping at the first move
// that is refused or when the level ends
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if reset {
		sess.Engine.Reset()
	}

	start := sess.Engine.GetState()
	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         []engine.Event{},
		Success:        true,
		StartPos:       sess.Engine.GetPlayerPosition(),
		StartChips:     chipsOf(start),
	}

	// Limit moves to prevent abuse
	if len(moves) > engine.MaxBulkMoves {
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
		moves = moves[:engine.MaxBulkMoves]
	}

	for i, move := range moves {
		if sess.Engine.IsGameOver() || sess.Engine.IsComplete() {
			result.StoppedReason = "level finished"
			result.StopReasonCode = finishCode(sess.Engine)
			result.StoppedOnMove = i + 1
			break
		}

		chipsBefore := chipsOf(sess.Engine.GetState())
		outcome := sess.Engine.Move(move)
		result.Ticks += outcome.Ticks
		result.Events = append(result.Events, outcome.Events...)

		if !outcome.Success {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("move %d blocked: %s", i+1, move)
			result.StopReasonCode = outcome.Reason
			result.StoppedOnMove = i + 1
			if outcome.Reason != "invalid_direction" && outcome.Reason != "finished" {
				result.AttemptedTo = attemptAt(sess.Engine.GetState(), outcome.From, move, outcome.Reason)
			}
			break
		}

		result.MovesExecuted++
		result.Steps = append(result.Steps, newStepInfo(i+1, outcome, chipsBefore, sess.Engine.GetState()))
	}

	end := sess.Engine.GetState()
	result.GameState = end
	result.EndPos = sess.Engine.GetPlayerPosition()
	result.EndChips = chipsOf(end)
	result.GameOver = end.GameOver
	result.Complete = end.Complete
	result.Message = end.Message
	if (end.GameOver || end.Complete) && result.StopReasonCode == "" {
		result.StopReasonCode = finishCode(sess.Engine)
	}

	// Decision aids
	result.PossibleMoves = sess.Engine.GetPossibleMoves()
	result.LocalView3x3 = end.LocalView3x3
	result.ThreatLevel = end.ThreatLevel

	// Auto-save session after bulk moves
	if err := s.sessions.Save(sessionID); err != nil {
		fmt.Printf("Warning: Failed to persist session %s after bulk moves: %v\n", sessionID, err)
	}

	return result, nil
}

// Reset resets a game session to initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	state := sess.Engine.Reset()

	// Auto-save session after reset
	if err := s.sessions.Save(sessionID); err != nil {
		fmt.Printf("Warning: Failed to persist session %s after reset: %v\n", sessionID, err)
	}

	return state, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := sess.Engine.GetMoveHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var moves []engine.MoveHistoryEntry
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = history[start:end]
	}

	if moves == nil {
		moves = []engine.MoveHistoryEntry{}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListLevels returns the available levels
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	return s.levels.ListLevels()
}

// LoadLevel loads a specific level document
func (s *gameServiceImpl) LoadLevel(ctx context.Context, levelID string) (*engine.LevelDocument, error) {
	return s.levels.LoadLevel(levelID)
}

// SaveLevel validates a level document and writes it to the level directory
func (s *gameServiceImpl) SaveLevel(ctx context.Context, levelID string, level *engine.LevelDocument) error {
	return s.levels.SaveLevel(levelID, level)
}

// LevelSchema returns the JSON schema of level documents
func (s *gameServiceImpl) LevelSchema(ctx context.Context) *jsonschema.Schema {
	return engine.LevelSchema()
}

func chipsOf(state *engine.GameState) int {
	if state == nil || state.Player == nil {
		return 0
	}
	return state.Player.Chips
}

func finishCode(e *engine.GameEngine) string {
	if e.IsComplete() {
		return "complete"
	}
	return "game_over"
}

// newStepInfo condenses one successful move
func newStepInfo(idx int, outcome engine.MoveOutcome, chipsBefore int, state *engine.GameState) StepInfo {
	step := StepInfo{
		Idx:         idx,
		Dir:         strings.ToLower(outcome.Direction),
		From:        outcome.From,
		To:          outcome.To,
		Tile:        cellCode(state, outcome.To),
		Ticks:       outcome.Ticks,
		ChipsBefore: chipsBefore,
		ChipsAfter:  chipsOf(state),
		Success:     outcome.Success,
		Complete:    state.Complete,
	}
	for _, ev := range outcome.Events {
		switch ev.Kind {
		case engine.EventPickedUp:
			step.PickedUp = append(step.PickedUp, ev.Item)
		case engine.EventSlid:
			step.Slid = true
		}
	}
	return step
}

// attemptAt describes the cell a refused move was aimed at
func attemptAt(state *engine.GameState, from engine.Position, direction, reason string) *AttemptInfo {
	d, err := engine.ParseDirection(direction)
	if err != nil || d == engine.None {
		return nil
	}
	target := from.Step(d)
	return &AttemptInfo{
		X:        target.X,
		Y:        target.Y,
		Tile:     cellCode(state, target),
		Occupant: occupantAt(state, target),
		Reason:   reason,
	}
}

// cellCode returns the tile code at p, treating the outside as wall
func cellCode(state *engine.GameState, p engine.Position) string {
	if p.Y < 0 || p.Y >= len(state.Grid) || p.X < 0 || p.X >= len(state.Grid[p.Y]) {
		return "W"
	}
	return state.Grid[p.Y][p.X]
}

func occupantAt(state *engine.GameState, p engine.Position) string {
	for _, a := range state.Actors {
		if a.Position == p {
			return a.Type
		}
	}
	for _, c := range state.Collectibles {
		if c.Position == p {
			return c.Type
		}
	}
	return ""
}
