package grid_world

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CellType classifies a grid cell. The type of a cell is fixed when the grid is built.
type CellType int

const (
	EMPTY CellType = iota
	WALL
	GOAL
	TRAP
)

// Layout runes, one per cell type.
const (
	EMPTY_RUNE = 'o'
	WALL_RUNE  = 'W'
	GOAL_RUNE  = '+'
	TRAP_RUNE  = '-'
)

// Default problem dimensions and rewards.
const (
	ROWS        = 4
	COLS        = 4
	STEP_REWARD = -0.1
	GOAL_REWARD = 10.0
	TRAP_REWARD = -10.0
)

// DefaultLayout is the classic 4x4 problem: goal in the top right corner, the trap
// directly beneath it, and a single wall at (1,1).
var DefaultLayout []string = []string{
	"ooo+",
	"oWo-",
	"oooo",
	"oooo",
}

func (ct CellType) String() string {
	switch ct {
	case EMPTY:
		return "empty"
	case WALL:
		return "wall"
	case GOAL:
		return "goal"
	case TRAP:
		return "trap"
	}
	return fmt.Sprintf("CellType(%d)", int(ct))
}

// Rune returns the layout rune of the cell type.
func (ct CellType) Rune() rune {
	switch ct {
	case WALL:
		return WALL_RUNE
	case GOAL:
		return GOAL_RUNE
	case TRAP:
		return TRAP_RUNE
	}
	return EMPTY_RUNE
}

// Cell is a single grid position. Row, Col, Type and IsTerminal never change after
// construction; Value and Policy are rewritten by the solvers, but only on copies.
// Terminal cells hold their reward as their value. Walls hold zero and are only
// ever visited as obstacles.
type Cell struct {
	Row, Col   int
	Type       CellType
	IsTerminal bool
	Value      float64
	Policy     Action
}

// IsLive reports whether the cell's value and policy are subject to updates.
func (c *Cell) IsLive() bool {
	return !c.IsTerminal && c.Type != WALL
}

// Grid is a fixed-size rectangular collection of cells, indexed [row][col].
type Grid struct {
	rows, cols int
	cells      [][]Cell
}

var (
	ErrEmptyLayout   = errors.New("layout has no cells")
	ErrRaggedLayout  = errors.New("layout rows differ in length")
	ErrUnknownLayout = errors.New("unknown layout rune")
)

// NewInitialGrid builds the default 4x4 problem.
func NewInitialGrid() *Grid {
	grid, err := Convert(DefaultLayout)
	if err != nil {
		// DefaultLayout is a package constant; this is unreachable.
		panic(err)
	}
	return grid
}

// Convert transforms a layout of rune rows into a grid. Row 0 is the first string,
// matching the console orientation, so (0,0) is the top left cell. Goal and trap cells
// take the goal and trap rewards as their values; every other cell starts at zero with
// an UP policy.
func Convert(layout []string) (*Grid, error) {
	if len(layout) == 0 || len(layout[0]) == 0 {
		return nil, ErrEmptyLayout
	}

	rows := len(layout)
	cols := len([]rune(layout[0]))
	cells := make([][]Cell, 0, rows)
	for r, line := range layout {
		runes := []rune(line)
		if len(runes) != cols {
			return nil, fmt.Errorf("row %d has %d cells, expected %d: %w", r, len(runes), cols, ErrRaggedLayout)
		}

		row := make([]Cell, 0, cols)
		for c, ch := range runes {
			cell := Cell{Row: r, Col: c, Policy: UP}
			switch ch {
			case EMPTY_RUNE:
				cell.Type = EMPTY
			case WALL_RUNE:
				cell.Type = WALL
			case GOAL_RUNE:
				cell.Type = GOAL
				cell.IsTerminal = true
				cell.Value = GOAL_REWARD
			case TRAP_RUNE:
				cell.Type = TRAP
				cell.IsTerminal = true
				cell.Value = TRAP_REWARD
			default:
				return nil, fmt.Errorf("%q at (%d,%d): %w", ch, r, c, ErrUnknownLayout)
			}
			row = append(row, cell)
		}
		cells = append(cells, row)
	}

	return &Grid{
		rows:  rows,
		cols:  cols,
		cells: cells,
	}, nil
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether (row, col) addresses a cell of the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// IsBlocked reports whether a move onto (row, col) is impossible: off the grid or a wall.
func (g *Grid) IsBlocked(row, col int) bool {
	return !g.InBounds(row, col) || g.cells[row][col].Type == WALL
}

// At returns the cell at (row, col). The caller must check bounds; At panics otherwise.
func (g *Grid) At(row, col int) *Cell {
	return &g.cells[row][col]
}

// Clone returns a deep copy of the grid. Solvers write only to clones, so the input
// grid of a step is left exactly as the caller passed it.
func (g *Grid) Clone() *Grid {
	cells := make([][]Cell, g.rows)
	for r := range g.cells {
		cells[r] = make([]Cell, g.cols)
		copy(cells[r], g.cells[r])
	}
	return &Grid{
		rows:  g.rows,
		cols:  g.cols,
		cells: cells,
	}
}

// Equal reports whether both grids have the same dimensions and identical cells.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.rows != other.rows || g.cols != other.cols {
		return false
	}
	for r := range g.cells {
		for c := range g.cells[r] {
			if g.cells[r][c] != other.cells[r][c] {
				return false
			}
		}
	}
	return true
}

// Visit calls fn for every cell, row by row.
func (g *Grid) Visit(fn func(cell *Cell)) {
	for r := range g.cells {
		for c := range g.cells[r] {
			fn(&g.cells[r][c])
		}
	}
}

// Values returns a rows x cols snapshot of the cell values.
func (g *Grid) Values() *mat.Dense {
	data := make([]float64, 0, g.rows*g.cols)
	g.Visit(func(cell *Cell) {
		data = append(data, cell.Value)
	})
	return mat.NewDense(g.rows, g.cols, data)
}

// Index flattens (row, col) into a state index, row-major.
func (g *Grid) Index(row, col int) int {
	return row*g.cols + col
}
