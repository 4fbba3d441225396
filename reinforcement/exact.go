package reinforcement

import (
	"fmt"
	"math"

	. "gridmdp/grid_world"

	"gonum.org/v1/gonum/mat"
)

// EvaluatePolicyExact solves for the value of the grid's current policy directly, rather
// than by repeated sweeps: over the live states, (I - gamma*P) V = r + gamma*P_t V_t, where
// P is the policy's transition matrix restricted to live states and the terminal values
// V_t are held fixed. The returned grid carries the exact values; policies are unchanged.
// Solving fails when the system is singular, e.g. gamma=1 with a policy that never
// reaches a terminal.
func EvaluatePolicyExact(grid *Grid, gamma float64) (*Grid, error) {
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("exact evaluation with gamma %v: %w", gamma, ErrInvalidGamma)
	}

	// Map live cells to rows of the linear system.
	index := map[[2]int]int{}
	live := []*Cell{}
	grid.Visit(func(cell *Cell) {
		if cell.IsLive() {
			index[[2]int{cell.Row, cell.Col}] = len(live)
			live = append(live, cell)
		}
	})

	result := grid.Clone()
	n := len(live)
	if n == 0 {
		return result, nil
	}

	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)
	for i, cell := range live {
		a.Set(i, i, 1)
		for _, out := range transitions(grid, cell.Row, cell.Col, cell.Policy) {
			b.SetVec(i, b.AtVec(i)+out.Prob*STEP_REWARD)
			if j, ok := index[[2]int{out.Row, out.Col}]; ok {
				a.Set(i, j, a.At(i, j)-gamma*out.Prob)
			} else {
				b.SetVec(i, b.AtVec(i)+gamma*out.Prob*grid.At(out.Row, out.Col).Value)
			}
		}
	}

	var v mat.VecDense
	if err := v.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("exact evaluation: %w", err)
	}

	for i, cell := range live {
		result.At(cell.Row, cell.Col).Value = v.AtVec(i)
	}
	return result, nil
}
