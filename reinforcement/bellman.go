package reinforcement

import (
	"fmt"
	"math"

	. "gridmdp/grid_world"
)

// QValue is the one-step Bellman backup of taking @action in (row, col) and then
// following the current value estimates: the expectation over the transition outcomes of
// STEP_REWARD plus the discounted value of the landing cell. Landing on a terminal
// discounts the terminal's stored value; no separate terminal reward is paid.
func QValue(grid *Grid, row, col int, action Action, gamma float64) (float64, error) {
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return 0, fmt.Errorf("q-value with gamma %v: %w", gamma, ErrInvalidGamma)
	}
	if _, err := Transitions(grid, row, col, action); err != nil {
		return 0, fmt.Errorf("q-value: %w", err)
	}
	return qValue(grid, row, col, action, gamma), nil
}

func qValue(grid *Grid, row, col int, action Action, gamma float64) (q float64) {
	for _, out := range transitions(grid, row, col, action) {
		q += out.Prob * (STEP_REWARD + gamma*grid.At(out.Row, out.Col).Value)
	}
	return
}

// bestAction searches the actions in their fixed order and keeps the first one with the
// strictly greatest q-value, so ties resolve to the earliest of UP, DOWN, LEFT, RIGHT.
func bestAction(grid *Grid, row, col int, gamma float64) (best Action, bestVal float64) {
	bestVal = math.Inf(-1)
	for _, action := range Actions {
		if q := qValue(grid, row, col, action, gamma); q > bestVal {
			bestVal = q
			best = action
		}
	}
	return
}
