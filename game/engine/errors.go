package engine

import (
	"errors"
	"strings"
)

var (
	// Fatal decode errors: the load is aborted and no state is produced.
	ErrMalformedDocument = errors.New("malformed level document")
	ErrUnknownActorType  = errors.New("unknown actor type")

	// Recoverable decode conditions, reported through Diagnostics.
	ErrUnknownTileType        = errors.New("unknown tile type")
	ErrUnknownCollectibleType = errors.New("unknown collectible type")
	ErrDanglingTrap           = errors.New("trap references missing button")
	ErrDuplicateButton        = errors.New("duplicate button id")

	// Placement errors from AddActor / AddCollectible.
	ErrOutOfBounds  = errors.New("position out of bounds")
	ErrCellOccupied = errors.New("cell already occupied")
	ErrSecondPlayer = errors.New("level already has a player")
	ErrSolidTile    = errors.New("cell cannot hold an actor")

	// ErrChainTooDeep is reported on a MoveResult whose chain of slides and
	// pushes exceeded Rules.MaxChainDepth. The chain stops where it is.
	ErrChainTooDeep = errors.New("move chain exceeded depth limit")

	ErrNoPlayer      = errors.New("level has no player")
	ErrLevelFinished = errors.New("level is finished")
	ErrInputRejected = errors.New("input rejected: queue full or direction already queued")
)

// Diagnostics collects the recoverable conditions met while decoding a level
type Diagnostics []error

// Err joins the diagnostics into one error, or nil when there are none
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	return errors.Join(d...)
}

// Has reports whether any diagnostic matches target
func (d Diagnostics) Has(target error) bool {
	for _, err := range d {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Strings renders each diagnostic for logs and API responses
func (d Diagnostics) Strings() []string {
	out := make([]string, 0, len(d))
	for _, err := range d {
		out = append(out, err.Error())
	}
	return out
}

func (d Diagnostics) String() string {
	return strings.Join(d.Strings(), "; ")
}
