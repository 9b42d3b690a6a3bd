package engine

// EventKind names a discrete change produced by the resolver or scheduler
type EventKind string

const (
	EventMoved              EventKind = "moved"
	EventSlid               EventKind = "slid"
	EventPushed             EventKind = "pushed"
	EventBounced            EventKind = "bounced"
	EventPickedUp           EventKind = "picked_up"
	EventUnlocked           EventKind = "unlocked"
	EventSocketOpened       EventKind = "socket_opened"
	EventTileReplaced       EventKind = "tile_replaced"
	EventActorRemoved       EventKind = "actor_removed"
	EventCollectibleRemoved EventKind = "collectible_removed"
	EventButtonPressed      EventKind = "button_pressed"
	EventButtonReleased     EventKind = "button_released"
	EventExitReached        EventKind = "exit_reached"
	EventLevelComplete      EventKind = "level_complete"
	EventTimer              EventKind = "timer"
	EventChainAborted       EventKind = "chain_aborted"
)

// RemovalCause explains why an actor left the roster
type RemovalCause string

const (
	CauseDrowned RemovalCause = "drowned"
	CauseFilled  RemovalCause = "filled"
	CauseCrushed RemovalCause = "crushed"
	CauseKilled  RemovalCause = "killed"
	CauseTimeout RemovalCause = "timeout"
)

// Event is one ordered, discrete change. Renderers drive all visual
// interpolation from these; Offset is the number of ticks after Tick at
// which the step should appear (ice slides spread over several ticks).
type Event struct {
	Kind      EventKind    `json:"kind"`
	Tick      int          `json:"tick"`
	Offset    int          `json:"offset,omitempty"`
	ActorID   int          `json:"actor_id,omitempty"`
	Actor     string       `json:"actor,omitempty"`
	From      *Position    `json:"from,omitempty"`
	To        *Position    `json:"to,omitempty"`
	Direction Direction    `json:"direction,omitempty"`
	Tile      string       `json:"tile,omitempty"`
	Item      string       `json:"item,omitempty"`
	Cause     RemovalCause `json:"cause,omitempty"`
	Value     int          `json:"value,omitempty"`
}

// Listener receives every event as it is emitted
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Event)

// OnEvent calls f(e)
func (f ListenerFunc) OnEvent(e Event) { f(e) }

func posRef(p Position) *Position {
	return &p
}
