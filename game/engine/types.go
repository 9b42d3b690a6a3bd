package engine

import (
	"fmt"
	"strings"
)

// Direction is one of the four grid moves, or None
type Direction int

const (
	None Direction = iota
	Up
	Down
	Left
	Right
)

// Validation and service limits
const (
	MinGridSize         = 1
	MaxGridSize         = 128
	MaxBulkMoves        = 50
	MaxTicksPerRequest  = 1000
	WebSocketBufferSize = 256
)

// Directions lists the four movable directions in neighbor-scan order
var Directions = []Direction{Up, Down, Left, Right}

var directionNames = [...]string{"none", "up", "down", "left", "right"}

// String returns the lowercase direction name
func (d Direction) String() string {
	if d < None || d > Right {
		return "none"
	}
	return directionNames[d]
}

// ParseDirection parses a direction name (case-insensitive)
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "north":
		return Up, nil
	case "down", "d", "south":
		return Down, nil
	case "left", "l", "west":
		return Left, nil
	case "right", "r", "east":
		return Right, nil
	case "", "none":
		return None, nil
	}
	return None, fmt.Errorf("unknown direction %q", s)
}

// Delta returns the (dx, dy) step for the direction. Y grows downward.
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return None
}

// TurnLeft rotates the direction a quarter turn counterclockwise
func (d Direction) TurnLeft() Direction {
	switch d {
	case Up:
		return Left
	case Left:
		return Down
	case Down:
		return Right
	case Right:
		return Up
	}
	return None
}

// TurnRight rotates the direction a quarter turn clockwise
func (d Direction) TurnRight() Direction {
	switch d {
	case Up:
		return Right
	case Right:
		return Down
	case Down:
		return Left
	case Left:
		return Up
	}
	return None
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Corner selects the deflecting walls of an Ice tile
type Corner int

const (
	CornerNone Corner = iota
	BottomLeft
	BottomRight
	TopLeft
	TopRight
)

var cornerNames = [...]string{"NONE", "BOTTOM_LEFT", "BOTTOM_RIGHT", "TOP_LEFT", "TOP_RIGHT"}

// String returns the corner name used in saved documents
func (c Corner) String() string {
	if c < CornerNone || c > TopRight {
		return "NONE"
	}
	return cornerNames[c]
}

// ParseCorner parses a saved corner name
func ParseCorner(s string) (Corner, error) {
	if s == "" {
		return CornerNone, nil
	}
	for i, name := range cornerNames {
		if strings.EqualFold(name, s) {
			return Corner(i), nil
		}
	}
	return CornerNone, fmt.Errorf("unknown corner %q", s)
}

// Redirect returns the continuation direction for an actor entering an ice
// tile with this corner while moving incoming. A corner turns the two
// directions that run into its walls and passes the other two through.
func (c Corner) Redirect(incoming Direction) Direction {
	switch c {
	case BottomLeft:
		switch incoming {
		case Left:
			return Up
		case Down:
			return Right
		}
	case BottomRight:
		switch incoming {
		case Right:
			return Up
		case Down:
			return Left
		}
	case TopLeft:
		switch incoming {
		case Left:
			return Down
		case Up:
			return Right
		}
	case TopRight:
		switch incoming {
		case Right:
			return Down
		case Up:
			return Left
		}
	}
	return incoming
}

// KeyColor identifies a key and the doors it opens
type KeyColor string

const (
	KeyRed    KeyColor = "red"
	KeyGreen  KeyColor = "green"
	KeyYellow KeyColor = "yellow"
	KeyBlue   KeyColor = "blue"
)

// Valid reports whether the color is one of the four key colors
func (k KeyColor) Valid() bool {
	switch k {
	case KeyRed, KeyGreen, KeyYellow, KeyBlue:
		return true
	}
	return false
}

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step returns the neighboring position in direction d
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// String formats the position as (x,y)
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
