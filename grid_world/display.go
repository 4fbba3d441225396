package grid_world

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// Printer writes console views of a grid. Colors are optional so the output can be
// piped or compared in tests.
type Printer struct {
	w  io.Writer
	au aurora.Aurora
}

func NewPrinter(w io.Writer, colors bool) *Printer {
	return &Printer{
		w:  w,
		au: aurora.NewAurora(colors),
	}
}

// paint colors a cell's text by its type: goal green, trap red, wall white, others blue.
func (p *Printer) paint(cell *Cell, text string) aurora.Value {
	switch cell.Type {
	case GOAL:
		return p.au.Green(text)
	case TRAP:
		return p.au.Red(text)
	case WALL:
		return p.au.White(text)
	}
	return p.au.Blue(text)
}

// ShowGrid prints the layout, for visual reference.
func (p *Printer) ShowGrid(g *Grid) {
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			cell := g.At(r, c)
			fmt.Fprintf(p.w, "%v ", p.paint(cell, string(cell.Type.Rune())))
		}
		fmt.Fprintln(p.w)
	}
}

// ShowValues prints every cell's value; walls are printed as a bar.
func (p *Printer) ShowValues(g *Grid) {
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			cell := g.At(r, c)
			text := "   ###"
			if cell.Type != WALL {
				text = formatValue(cell.Value)
			}
			fmt.Fprintf(p.w, "%v%v", p.paint(cell, text), p.au.White("|"))
		}
		fmt.Fprintln(p.w)
	}
}

// ShowPolicy prints an arrow per live cell, and the cell rune for terminals and walls.
func (p *Printer) ShowPolicy(g *Grid) {
	for r := 0; r < g.Rows(); r++ {
		fmt.Fprint(p.w, " ")
		for c := 0; c < g.Cols(); c++ {
			cell := g.At(r, c)
			if cell.IsLive() {
				fmt.Fprintf(p.w, "%c ", cell.Policy.Rune())
			} else {
				fmt.Fprintf(p.w, "%v ", p.paint(cell, string(cell.Type.Rune())))
			}
		}
		fmt.Fprintln(p.w)
	}
}

// formatValue pads values to a fixed width so columns line up with signs.
func formatValue(x float64) string {
	if x < 0 {
		return fmt.Sprintf("%6.2f", x)
	}
	return fmt.Sprintf(" %5.2f", x)
}
