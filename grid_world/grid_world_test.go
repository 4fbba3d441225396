package grid_world

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewInitialGrid(t *testing.T) {
	Convey("When the default grid is built", t, func() {
		grid := NewInitialGrid()

		Convey("It has the default dimensions", func() {
			So(grid.Rows(), ShouldEqual, ROWS)
			So(grid.Cols(), ShouldEqual, COLS)
		})

		Convey("The goal, trap and wall are placed per the default layout", func() {
			goal := grid.At(0, 3)
			So(goal.Type, ShouldEqual, GOAL)
			So(goal.IsTerminal, ShouldBeTrue)
			So(goal.Value, ShouldEqual, GOAL_REWARD)

			trap := grid.At(1, 3)
			So(trap.Type, ShouldEqual, TRAP)
			So(trap.IsTerminal, ShouldBeTrue)
			So(trap.Value, ShouldEqual, TRAP_REWARD)

			wall := grid.At(1, 1)
			So(wall.Type, ShouldEqual, WALL)
			So(wall.IsTerminal, ShouldBeFalse)
			So(wall.Value, ShouldEqual, 0)
		})

		Convey("The remaining 13 cells are empty, zero-valued and point UP", func() {
			empties := 0
			grid.Visit(func(cell *Cell) {
				if cell.Type != EMPTY {
					return
				}
				empties++
				So(cell.IsTerminal, ShouldBeFalse)
				So(cell.Value, ShouldEqual, 0)
				So(cell.Policy, ShouldEqual, UP)
			})
			So(empties, ShouldEqual, 13)
		})

		Convey("Cells know their own coordinates", func() {
			grid.Visit(func(cell *Cell) {
				So(grid.At(cell.Row, cell.Col), ShouldEqual, cell)
			})
		})
	})
}

func TestConvert(t *testing.T) {
	Convey("When converting layouts", t, func() {
		Convey("Multiple goals and traps are tolerated", func() {
			grid, err := Convert([]string{
				"+o+",
				"-W-",
			})
			So(err, ShouldBeNil)
			So(grid.Rows(), ShouldEqual, 2)
			So(grid.Cols(), ShouldEqual, 3)
			So(grid.At(0, 2).Type, ShouldEqual, GOAL)
			So(grid.At(1, 2).Type, ShouldEqual, TRAP)
		})

		Convey("A layout without goals or traps is valid", func() {
			grid, err := Convert([]string{"oo", "oo"})
			So(err, ShouldBeNil)
			grid.Visit(func(cell *Cell) {
				So(cell.IsLive(), ShouldBeTrue)
			})
		})

		Convey("Empty layouts are rejected", func() {
			_, err := Convert(nil)
			So(errors.Is(err, ErrEmptyLayout), ShouldBeTrue)
			_, err = Convert([]string{""})
			So(errors.Is(err, ErrEmptyLayout), ShouldBeTrue)
		})

		Convey("Ragged layouts are rejected", func() {
			_, err := Convert([]string{"ooo", "oo"})
			So(errors.Is(err, ErrRaggedLayout), ShouldBeTrue)
		})

		Convey("Unknown runes are rejected", func() {
			_, err := Convert([]string{"oxo"})
			So(errors.Is(err, ErrUnknownLayout), ShouldBeTrue)
		})
	})
}

func TestGridBounds(t *testing.T) {
	Convey("Given the default grid", t, func() {
		grid := NewInitialGrid()

		Convey("InBounds accepts only grid coordinates", func() {
			So(grid.InBounds(0, 0), ShouldBeTrue)
			So(grid.InBounds(3, 3), ShouldBeTrue)
			So(grid.InBounds(-1, 0), ShouldBeFalse)
			So(grid.InBounds(0, 4), ShouldBeFalse)
			So(grid.InBounds(4, 0), ShouldBeFalse)
		})

		Convey("IsBlocked covers walls and the outside", func() {
			So(grid.IsBlocked(1, 1), ShouldBeTrue)
			So(grid.IsBlocked(-1, 2), ShouldBeTrue)
			So(grid.IsBlocked(0, 0), ShouldBeFalse)
			So(grid.IsBlocked(0, 3), ShouldBeFalse)
		})
	})
}

func TestClone(t *testing.T) {
	Convey("When a grid is cloned", t, func() {
		grid := NewInitialGrid()
		clone := grid.Clone()

		So(clone.Equal(grid), ShouldBeTrue)

		Convey("Writes to the clone do not reach the original", func() {
			clone.At(2, 2).Value = 42
			clone.At(2, 2).Policy = LEFT
			So(grid.At(2, 2).Value, ShouldEqual, 0)
			So(grid.At(2, 2).Policy, ShouldEqual, UP)
			So(clone.Equal(grid), ShouldBeFalse)
		})
	})
}

func TestValues(t *testing.T) {
	Convey("Values snapshots the grid as a matrix", t, func() {
		grid := NewInitialGrid()
		values := grid.Values()
		rows, cols := values.Dims()
		So(rows, ShouldEqual, ROWS)
		So(cols, ShouldEqual, COLS)
		So(values.At(0, 3), ShouldEqual, GOAL_REWARD)
		So(values.At(1, 3), ShouldEqual, TRAP_REWARD)
		So(grid.Index(1, 3), ShouldEqual, 7)
	})
}

func TestActions(t *testing.T) {
	Convey("Actions", t, func() {
		Convey("Iterate in tie-break order", func() {
			So(Actions, ShouldResemble, [...]Action{UP, DOWN, LEFT, RIGHT})
		})

		Convey("Slip perpendicular to themselves", func() {
			for _, a := range Actions {
				dr, dc := a.Offset()
				p1, p2 := a.Perpendicular()
				for _, p := range []Action{p1, p2} {
					pr, pc := p.Offset()
					So(dr*pr+dc*pc, ShouldEqual, 0)
				}
				So(p1, ShouldNotEqual, p2)
			}
		})

		Convey("Round trip through their names", func() {
			for _, a := range Actions {
				parsed, err := ParseAction(strings.ToLower(a.String()))
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, a)
			}
			_, err := ParseAction("diagonal")
			So(err, ShouldNotBeNil)
		})

		Convey("Reject values outside the enumeration", func() {
			So(Action(4).Valid(), ShouldBeFalse)
			So(Action(-1).Valid(), ShouldBeFalse)
		})
	})
}

func TestPrinter(t *testing.T) {
	Convey("When printing the default grid without colors", t, func() {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, false)
		grid := NewInitialGrid()

		Convey("ShowGrid prints the layout", func() {
			printer.ShowGrid(grid)
			So(buf.String(), ShouldEqual, "o o o + \no W o - \no o o o \no o o o \n")
		})

		Convey("ShowValues prints terminal rewards", func() {
			printer.ShowValues(grid)
			out := buf.String()
			So(out, ShouldContainSubstring, "10.00")
			So(out, ShouldContainSubstring, "-10.00")
			So(out, ShouldContainSubstring, "###")
		})

		Convey("ShowPolicy prints arrows for live cells", func() {
			printer.ShowPolicy(grid)
			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			So(lines, ShouldHaveLength, ROWS)
			So(lines[0], ShouldEqual, " ^ ^ ^ + ")
			So(lines[1], ShouldEqual, " ^ W ^ - ")
		})
	})
}
