package reinforcement

import (
	"math"

	. "gridmdp/grid_world"
)

// ValueIterationStep performs one synchronous Bellman-optimality sweep. Every live cell of
// the returned grid holds its best q-value and greedy action, each computed only from the
// input grid's values. Terminal and wall cells are copied as is. The second result is the
// largest absolute value change over the updated cells, for convergence checks.
// The input grid is not modified.
func ValueIterationStep(grid *Grid, gamma float64) (next *Grid, maxChange float64) {
	next = grid.Clone()
	grid.Visit(func(cell *Cell) {
		if !cell.IsLive() {
			return
		}

		action, value := bestAction(grid, cell.Row, cell.Col, gamma)
		updated := next.At(cell.Row, cell.Col)
		updated.Value = value
		updated.Policy = action
		maxChange = math.Max(maxChange, math.Abs(value-cell.Value))
	})
	return
}
