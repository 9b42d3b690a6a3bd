package engine

import "fmt"

// Rules holds the tick-level tuning of the simulation. All delays are counted
// in ticks, never wall-clock time.
type Rules struct {
	// IceSlideDelay is the number of ticks each forced ice step takes.
	IceSlideDelay int `yaml:"ice_slide_delay" json:"ice_slide_delay"`
	// ExitDelay is the number of ticks between reaching the exit and the
	// level-complete signal.
	ExitDelay int `yaml:"exit_delay" json:"exit_delay"`
	// MaxChainDepth bounds the number of steps one move may trigger.
	MaxChainDepth int `yaml:"max_chain_depth" json:"max_chain_depth"`
	// InputQueueSize bounds the player's buffered directions.
	InputQueueSize int `yaml:"input_queue_size" json:"input_queue_size"`
	// TicksPerSecond converts the level timer (seconds) into ticks.
	TicksPerSecond int `yaml:"ticks_per_second" json:"ticks_per_second"`
	// Seed drives the frog's random fallback.
	Seed int64 `yaml:"seed" json:"seed"`
	// MoveIntervals overrides the default cadence by actor type tag.
	MoveIntervals map[string]int `yaml:"move_intervals,omitempty" json:"move_intervals,omitempty"`
}

// DefaultRules returns the standard tuning
func DefaultRules() Rules {
	return Rules{
		IceSlideDelay:  1,
		ExitDelay:      3,
		MaxChainDepth:  256,
		InputQueueSize: 2,
		TicksPerSecond: 10,
		Seed:           1,
	}
}

// Validate checks every field is usable
func (r Rules) Validate() error {
	if r.IceSlideDelay < 0 {
		return fmt.Errorf("rules validation: ice_slide_delay must be >= 0, got %d", r.IceSlideDelay)
	}
	if r.ExitDelay < 0 {
		return fmt.Errorf("rules validation: exit_delay must be >= 0, got %d", r.ExitDelay)
	}
	if r.MaxChainDepth < 1 {
		return fmt.Errorf("rules validation: max_chain_depth must be >= 1, got %d", r.MaxChainDepth)
	}
	if r.InputQueueSize < 1 {
		return fmt.Errorf("rules validation: input_queue_size must be >= 1, got %d", r.InputQueueSize)
	}
	if r.TicksPerSecond < 1 {
		return fmt.Errorf("rules validation: ticks_per_second must be >= 1, got %d", r.TicksPerSecond)
	}
	for tag, interval := range r.MoveIntervals {
		if _, ok := ParseActorKind(tag); !ok {
			return fmt.Errorf("rules validation: move_intervals has unknown actor type %q", tag)
		}
		if interval < 1 {
			return fmt.Errorf("rules validation: move_intervals[%s] must be >= 1, got %d", tag, interval)
		}
	}
	return nil
}

// moveInterval returns the cadence for kind under these rules
func (r Rules) moveInterval(kind ActorKind) int {
	if v, ok := r.MoveIntervals[kind.String()]; ok && v > 0 {
		return v
	}
	return defaultMoveIntervals[kind]
}
