// cell_views contains views derived from the Board view-model.
package cell_views

import (
	"fmt"
	"math"

	"gridmdp/grid_world"
	"gridmdp/reinforcement"

	"gonum.org/v1/gonum/mat"
)

// Cell is a flattened grid cell whose fields are immediately usable as view parameters,
// so the templates need no helper funcs to interpret grid types. X is the column and
// Y the row, which is also the svg orientation: [0][0] is the top left cell.
type Cell struct {
	X, Y      int
	Value     float64
	ValueText string
	// Label is "GOAL", "TRAP" or empty.
	Label string
	// PolicyArrowRotation is the clockwise rotation in degrees of an upward arrow.
	PolicyArrowRotation int
	// ShowArrow is false for terminal and wall cells, which have no policy.
	ShowArrow bool
	// ShowValue is false for walls.
	ShowValue bool
	Fill      string
	TextColor string
}

// Board is the view-model of a session snapshot: the cells indexed [row][col] plus the
// status line fields.
type Board struct {
	Cells     [][]Cell
	Status    string
	Algorithm string
	Iteration int
	Gamma     float64
	Delta     float64
	Running   bool
	// MinValue and MaxValue bound the cell values, walls and terminals included.
	MinValue, MaxValue float64
}

// Dims returns the number of rows and columns.
func (b Board) Dims() (rows, cols int) {
	if len(b.Cells) == 0 {
		return 0, 0
	}
	return len(b.Cells), len(b.Cells[0])
}

// Convert transforms a session snapshot into a Board for consumption by the views.
func Convert(snap reinforcement.Snapshot) Board {
	grid := snap.Grid
	cells := make([][]Cell, grid.Rows())
	for row := range cells {
		cells[row] = make([]Cell, grid.Cols())
	}

	grid.Visit(func(cell *grid_world.Cell) {
		cells[cell.Row][cell.Col] = Cell{
			X:                   cell.Col,
			Y:                   cell.Row,
			Value:               cell.Value,
			ValueText:           formatValue(cell.Value),
			Label:               getLabel(cell.Type),
			PolicyArrowRotation: cell.Policy.Degrees(),
			ShowArrow:           cell.IsLive(),
			ShowValue:           cell.Type != grid_world.WALL,
			Fill:                getFill(cell.Type, cell.Value),
			TextColor:           getTextColor(cell.Type),
		}
	})

	values := grid.Values()
	return Board{
		Cells:     cells,
		MinValue:  mat.Min(values),
		MaxValue:  mat.Max(values),
		Status:    string(snap.Status),
		Algorithm: snap.Algorithm.String(),
		Iteration: snap.Iteration,
		Gamma:     snap.Gamma,
		Delta:     snap.Delta,
		Running:   snap.Running,
	}
}

func formatValue(val float64) string {
	return fmt.Sprintf("%.2f", val)
}

func getLabel(cellType grid_world.CellType) string {
	switch cellType {
	case grid_world.GOAL:
		return "GOAL"
	case grid_world.TRAP:
		return "TRAP"
	}
	return ""
}

// fillScale is the magnitude at which value shading saturates.
const fillScale = grid_world.GOAL_REWARD

// getFill colors terminals and walls by type, and shades other cells green for
// positive values and red for negative ones, in proportion to their magnitude.
func getFill(cellType grid_world.CellType, val float64) string {
	switch cellType {
	case grid_world.WALL:
		return "#1f2937"
	case grid_world.GOAL:
		return "#22c55e"
	case grid_world.TRAP:
		return "#ef4444"
	}

	intensity := math.Min(1, math.Abs(val)/fillScale)
	fade := int(math.Round(255 - 255*intensity))
	switch {
	case val > 0:
		return fmt.Sprintf("rgb(%d,%d,%d)", fade, int(math.Round(200+55*(1-intensity))), fade)
	case val < 0:
		return fmt.Sprintf("rgb(255,%d,%d)", fade, fade)
	}
	return "#ffffff"
}

func getTextColor(cellType grid_world.CellType) string {
	if cellType == grid_world.EMPTY {
		return "#000"
	}
	return "#fff"
}
