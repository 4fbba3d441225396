package reinforcement

import (
	"errors"
	"fmt"

	. "gridmdp/grid_world"

	"gonum.org/v1/gonum/mat"
)

// Transition probabilities: the intended move succeeds with INTENDED_PROB, otherwise the
// agent slips to either side with SLIP_PROB each. It never slips backward.
const (
	INTENDED_PROB = 0.8
	SLIP_PROB     = 0.1
)

var (
	ErrOutOfBounds   = errors.New("coordinates out of bounds")
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidGamma  = errors.New("gamma must be a finite number")
)

// Outcome is one weighted successor of a (state, action) pair.
type Outcome struct {
	Prob     float64
	Row, Col int
}

// Transitions returns the three outcomes of attempting @action from (row, col): the
// intended direction first, then the two slips. A move off the grid or into a wall
// leaves the agent where it was.
func Transitions(grid *Grid, row, col int, action Action) ([]Outcome, error) {
	if !grid.InBounds(row, col) {
		return nil, fmt.Errorf("transitions from (%d,%d) on %dx%d grid: %w", row, col, grid.Rows(), grid.Cols(), ErrOutOfBounds)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("transitions for %v: %w", action, ErrInvalidAction)
	}
	return transitions(grid, row, col, action), nil
}

// transitions is the unchecked form, for callers iterating the grid's own cells.
func transitions(grid *Grid, row, col int, action Action) []Outcome {
	left, right := action.Perpendicular()
	outcomes := make([]Outcome, 0, 3)
	outcomes = append(outcomes, successor(grid, row, col, action, INTENDED_PROB))
	outcomes = append(outcomes, successor(grid, row, col, left, SLIP_PROB))
	outcomes = append(outcomes, successor(grid, row, col, right, SLIP_PROB))
	return outcomes
}

func successor(grid *Grid, row, col int, dir Action, prob float64) Outcome {
	dr, dc := dir.Offset()
	nr, nc := row+dr, col+dc
	if grid.IsBlocked(nr, nc) {
		nr, nc = row, col
	}
	return Outcome{Prob: prob, Row: nr, Col: nc}
}

// TransitionMatrix returns the row-stochastic matrix P[s][s'] of taking @action in every
// state, with states indexed by Grid.Index. Terminal and wall rows absorb into themselves,
// since no transition ever leaves them.
func TransitionMatrix(grid *Grid, action Action) (*mat.Dense, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("transition matrix for %v: %w", action, ErrInvalidAction)
	}

	n := grid.Rows() * grid.Cols()
	p := mat.NewDense(n, n, nil)
	grid.Visit(func(cell *Cell) {
		s := grid.Index(cell.Row, cell.Col)
		if !cell.IsLive() {
			p.Set(s, s, 1)
			return
		}
		for _, out := range transitions(grid, cell.Row, cell.Col, action) {
			next := grid.Index(out.Row, out.Col)
			p.Set(s, next, p.At(s, next)+out.Prob)
		}
	})
	return p, nil
}
