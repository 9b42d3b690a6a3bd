package engine

import "fmt"

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	Level() *LevelState
	Reset() *GameState
	IsGameOver() bool
	IsComplete() bool
	GetPlayerPosition() Position

	// Input and time
	QueueInput(direction string) error
	Tick(n int) []TickResult

	// Movement operations
	Move(direction string) MoveOutcome
	BulkMove(moves []string) []MoveOutcome
	CanMove(direction string) bool
	GetPossibleMoves() []string

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry

	// Local view
	GetLocalView() []SurroundingCell

	// Persistence and observers
	Save() ([]byte, error)
	Subscribe(listener Listener)
}

// MoveOutcome reports what one player move did, including the ticks it took
type MoveOutcome struct {
	Direction string   `json:"direction"`
	Success   bool     `json:"success"`
	Reason    string   `json:"reason,omitempty"`
	From      Position `json:"from"`
	To        Position `json:"to"`
	Ticks     int      `json:"ticks"`
	Events    []Event  `json:"events,omitempty"`
	Message   string   `json:"message"`
}

// GameEngine implements the Engine interface on top of one LevelState
type GameEngine struct {
	source    []byte
	rules     Rules
	level     *LevelState
	diags     Diagnostics
	message   string
	listeners []Listener

	history    []MoveHistoryEntry
	current    []MoveHistoryEntry
	totalMoves int
}

// NewEngine decodes and validates a level document and starts a game on it
func NewEngine(source []byte, rules Rules) (*GameEngine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	level, diags, err := Deserialize(source, rules)
	if err != nil {
		return nil, err
	}
	if err := ValidateLevel(level); err != nil {
		return nil, err
	}
	e := &GameEngine{
		source:  append([]byte(nil), source...),
		rules:   rules,
		level:   level,
		diags:   diags,
		history: []MoveHistoryEntry{},
		current: []MoveHistoryEntry{},
	}
	e.message = e.welcome()
	return e, nil
}

// NewEngineWithDefaults starts a game on the built-in level
func NewEngineWithDefaults() *GameEngine {
	e, err := NewEngine(DefaultLevelDocument(), DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("built-in level is invalid: %v", err))
	}
	return e
}

// Restore replaces the running level with a saved one while keeping the
// original document for Reset. History is restored as given.
func (e *GameEngine) Restore(saved []byte, history []MoveHistoryEntry, totalMoves int) error {
	level, diags, err := Deserialize(saved, e.rules)
	if err != nil {
		return fmt.Errorf("failed to restore level: %w", err)
	}
	for _, l := range e.listeners {
		level.Subscribe(l)
	}
	e.level = level
	e.diags = diags
	if history == nil {
		history = []MoveHistoryEntry{}
	}
	e.history = history
	e.totalMoves = totalMoves
	e.current = []MoveHistoryEntry{}
	e.message = "Game restored"
	return nil
}

func (e *GameEngine) welcome() string {
	if e.level.Name != "" {
		return fmt.Sprintf("Welcome to %s! Reach the exit.", e.level.Name)
	}
	return "Welcome! Reach the exit."
}

// Level returns the running level
func (e *GameEngine) Level() *LevelState {
	return e.level
}

// Source returns the document the game was started from
func (e *GameEngine) Source() []byte {
	return e.source
}

// Rules returns the tuning the engine runs under
func (e *GameEngine) Rules() Rules {
	return e.rules
}

// Diagnostics returns the recoverable problems met while loading the level
func (e *GameEngine) Diagnostics() Diagnostics {
	return e.diags
}

// GetState returns a snapshot of the current game state
func (e *GameEngine) GetState() *GameState {
	gs := snapshot(e.level)
	gs.Message = e.message
	gs.MoveHistory = e.history
	gs.TotalMoves = e.totalMoves
	gs.CurrentMoves = e.current
	gs.CurrentMovesCount = len(e.current)
	gs.Diagnostics = e.diags.Strings()
	return gs
}

// Reset restarts the level from its original document
func (e *GameEngine) Reset() *GameState {
	// Source was decoded once already, so this cannot fail.
	level, diags, err := Deserialize(e.source, e.rules)
	if err == nil {
		for _, l := range e.listeners {
			level.Subscribe(l)
		}
		e.level = level
		e.diags = diags
	}
	// Preserve cumulative history and totals; clear only the current segment
	e.current = []MoveHistoryEntry{}
	e.message = e.welcome()
	return e.GetState()
}

// IsGameOver returns whether the player has died
func (e *GameEngine) IsGameOver() bool {
	return e.level.IsGameOver()
}

// IsComplete returns whether the level-complete signal has fired
func (e *GameEngine) IsComplete() bool {
	return e.level.IsComplete()
}

// GetPlayerPosition returns the current player position
func (e *GameEngine) GetPlayerPosition() Position {
	if p := e.level.Player(); p != nil {
		return p.Pos
	}
	return Position{}
}

// Subscribe registers a listener for every engine event, surviving resets
func (e *GameEngine) Subscribe(listener Listener) {
	e.listeners = append(e.listeners, listener)
	e.level.Subscribe(listener)
}

// Save returns the save form of the running level
func (e *GameEngine) Save() ([]byte, error) {
	return Serialize(e.level)
}

// QueueInput buffers a direction for the player's next move opportunity
func (e *GameEngine) QueueInput(direction string) error {
	d, err := ParseDirection(direction)
	if err != nil {
		return err
	}
	if d == None {
		return fmt.Errorf("direction is required")
	}
	if e.level.Finished() {
		return ErrLevelFinished
	}
	if e.level.Player() == nil {
		return ErrNoPlayer
	}
	if !e.level.QueueInput(d) {
		return ErrInputRejected
	}
	return nil
}

// Tick advances the level up to n ticks, stopping early when it finishes
func (e *GameEngine) Tick(n int) []TickResult {
	if n < 1 {
		n = 1
	}
	if n > MaxTicksPerRequest {
		n = MaxTicksPerRequest
	}
	results := make([]TickResult, 0, n)
	for i := 0; i < n && !e.level.Finished(); i++ {
		results = append(results, e.tick())
	}
	return results
}

// tick runs one level tick and records the player's move in the history
func (e *GameEngine) tick() TickResult {
	res := e.level.Tick()
	player := e.level.Player()
	for _, move := range res.Moves {
		if player == nil || move.ActorID != player.ID {
			continue
		}
		e.record(move.Direction.String(), move)
	}
	if msg := describe(res.Events); msg != "" {
		e.message = msg
	}
	return res
}

func (e *GameEngine) record(action string, move MoveResult) {
	entry := newHistoryEntry(action, move, e.level, e.totalMoves+1)
	// Append to cumulative history (never cleared by reset) and increment total
	e.history = append(e.history, entry)
	e.totalMoves++
	e.current = append(e.current, entry)
}

// Move queues one direction and advances time until the player has acted
// and can act again, or the level finishes
func (e *GameEngine) Move(direction string) MoveOutcome {
	out := MoveOutcome{Direction: direction, From: e.GetPlayerPosition(), To: e.GetPlayerPosition()}
	d, err := ParseDirection(direction)
	if err != nil || d == None {
		out.Reason = "invalid_direction"
		out.Message = fmt.Sprintf("Invalid direction %q", direction)
		e.message = out.Message
		return out
	}
	player := e.level.Player()
	if player == nil || e.level.Finished() {
		out.Reason = "finished"
		out.Message = "The level is over; reset to play again"
		e.message = out.Message
		return out
	}

	player.ClearInput()
	e.level.QueueInput(d)
	before := len(e.history)
	for out.Ticks < MaxTicksPerRequest && !e.level.Finished() {
		res := e.tick()
		out.Ticks++
		out.Events = append(out.Events, res.Events...)
		if len(player.PendingInput()) == 0 && e.level.TickCount() >= player.busyUntil {
			break
		}
	}

	out.To = player.Pos
	if len(e.history) > before {
		last := e.history[len(e.history)-1]
		out.Success = last.Success
		out.Reason = last.Reason
	}
	if !out.Success && out.Reason == "" {
		out.Reason = string(BlockBlocked)
	}
	if !out.Success && !e.level.Finished() {
		e.message = fmt.Sprintf("Can't move %s from %s", d, out.From)
	}
	out.Message = e.message
	return out
}

// BulkMove executes multiple moves in sequence, stopping when the level ends
func (e *GameEngine) BulkMove(moves []string) []MoveOutcome {
	results := make([]MoveOutcome, 0, len(moves))
	for _, direction := range moves {
		if e.level.Finished() {
			break
		}
		results = append(results, e.Move(direction))
	}
	return results
}

// CanMove predicts whether the player's next move in direction would start.
// Chains set off by the move are not simulated.
func (e *GameEngine) CanMove(direction string) bool {
	d, err := ParseDirection(direction)
	if err != nil || d == None {
		return false
	}
	l := e.level
	p := l.Player()
	if p == nil || !p.Alive || l.Finished() || !l.CanLeave(p.Pos) {
		return false
	}
	to := p.Pos.Step(d)
	if !l.Walkable(p, to) {
		return false
	}
	if occ := l.Grid.ActorAt(to); occ != nil {
		if occ.Kind != ActorBlock {
			return false
		}
		beyond := to.Step(d)
		return l.CanLeave(to) && l.Walkable(occ, beyond) && !l.Grid.Occupied(beyond)
	}
	return true
}

// GetPossibleMoves returns all directions the player can start moving in
func (e *GameEngine) GetPossibleMoves() []string {
	var possible []string
	for _, d := range Directions {
		if e.CanMove(d.String()) {
			possible = append(possible, d.String())
		}
	}
	return possible
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.history
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.history) == 0 {
		return nil
	}
	return &e.history[len(e.history)-1]
}

// GetTotalMoves returns the cumulative number of recorded moves
func (e *GameEngine) GetTotalMoves() int {
	return e.totalMoves
}

// GetLocalView returns the local view around the player
func (e *GameEngine) GetLocalView() []SurroundingCell {
	return localView(e.level, e.GetPlayerPosition())
}

// describe turns the most significant event of a tick into a status line
func describe(events []Event) string {
	msg := ""
	for _, ev := range events {
		switch ev.Kind {
		case EventLevelComplete:
			return "Level complete!"
		case EventActorRemoved:
			if ev.Actor != ActorPlayer.String() {
				continue
			}
			switch ev.Cause {
			case CauseDrowned:
				return "You drowned! Game Over!"
			case CauseCrushed:
				return "Crushed by a block! Game Over!"
			case CauseTimeout:
				return "Out of time! Game Over!"
			}
			return "Caught by an enemy! Game Over!"
		case EventExitReached:
			msg = "Exit reached!"
		case EventPickedUp:
			msg = fmt.Sprintf("Picked up %s", ev.Item)
		case EventUnlocked:
			msg = fmt.Sprintf("Unlocked the %s door", ev.Item)
		case EventSocketOpened:
			msg = fmt.Sprintf("Chip socket opened (%d chips used)", ev.Value)
		case EventChainAborted:
			msg = "Move chain stopped: too many chained steps"
		case EventMoved:
			if msg == "" && ev.Actor == ActorPlayer.String() && ev.To != nil {
				msg = fmt.Sprintf("Moved %s to %s", ev.Direction, *ev.To)
			}
		}
	}
	return msg
}
