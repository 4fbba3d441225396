package grid_world

import (
	"fmt"
	"strings"
)

// Action is one of the four compass moves.
type Action int

const (
	UP Action = iota
	DOWN
	LEFT
	RIGHT
)

// Actions is the fixed iteration order used everywhere a best action is searched for.
// Ties keep the first action found, so this order is also the tie-break order.
var Actions = [...]Action{UP, DOWN, LEFT, RIGHT}

// Valid reports whether the action is one of the four compass moves.
func (a Action) Valid() bool {
	return a >= UP && a <= RIGHT
}

// Offset returns the unit (row, col) displacement of the action; row 0 is the top.
func (a Action) Offset() (dr, dc int) {
	switch a {
	case UP:
		return -1, 0
	case DOWN:
		return 1, 0
	case LEFT:
		return 0, -1
	case RIGHT:
		return 0, 1
	}
	return 0, 0
}

// Perpendicular returns the two slip directions of the action, in slip order.
func (a Action) Perpendicular() (Action, Action) {
	switch a {
	case UP:
		return LEFT, RIGHT
	case DOWN:
		return RIGHT, LEFT
	case LEFT:
		return DOWN, UP
	default:
		return UP, DOWN
	}
}

func (a Action) String() string {
	switch a {
	case UP:
		return "UP"
	case DOWN:
		return "DOWN"
	case LEFT:
		return "LEFT"
	case RIGHT:
		return "RIGHT"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Rune returns an arrow for console display.
func (a Action) Rune() rune {
	switch a {
	case UP:
		return '^'
	case DOWN:
		return 'v'
	case LEFT:
		return '<'
	case RIGHT:
		return '>'
	}
	return '?'
}

// Degrees is the clockwise rotation of an upward arrow that points along the action.
func (a Action) Degrees() int {
	switch a {
	case RIGHT:
		return 90
	case DOWN:
		return 180
	case LEFT:
		return 270
	}
	return 0
}

// ParseAction is the inverse of String, case-insensitive.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
