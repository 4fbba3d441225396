package reinforcement

import (
	. "gridmdp/grid_world"
)

// EVALUATION_PASSES is the number of policy-evaluation sweeps per policy iteration step.
// Evaluation is truncated rather than run to convergence.
const EVALUATION_PASSES = 5

// PolicyIterationStep performs a truncated evaluation of the current policy followed by one
// greedy improvement. Evaluation recomputes each live cell's value under its own policy
// action, reading and writing the working copy in place, so later cells in a pass see the
// earlier cells' new values. Improvement then re-derives each live cell's best action from
// the evaluated values and reports whether any action changed.
// The input grid is not modified.
func PolicyIterationStep(grid *Grid, gamma float64) (next *Grid, policyChanged bool) {
	next = grid.Clone()

	for pass := 0; pass < EVALUATION_PASSES; pass++ {
		evaluatePolicy(next, gamma)
	}

	next.Visit(func(cell *Cell) {
		if !cell.IsLive() {
			return
		}
		if best, _ := bestAction(next, cell.Row, cell.Col, gamma); best != cell.Policy {
			cell.Policy = best
			policyChanged = true
		}
	})
	return
}

// evaluatePolicy is a single in-place sweep of policy evaluation.
func evaluatePolicy(grid *Grid, gamma float64) {
	grid.Visit(func(cell *Cell) {
		if cell.IsLive() {
			cell.Value = qValue(grid, cell.Row, cell.Col, cell.Policy, gamma)
		}
	})
}
