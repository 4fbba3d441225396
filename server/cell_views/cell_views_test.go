package cell_views

import (
	"bytes"
	"html/template"
	"testing"

	"gridmdp/grid_world"
	"gridmdp/reinforcement"
	"gridmdp/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func testBoard() Board {
	grid, _ := reinforcement.ValueIterationStep(grid_world.NewInitialGrid(), 0.9)
	return Convert(reinforcement.Snapshot{
		Iteration: 1,
		Algorithm: reinforcement.VALUE_ITERATION,
		Gamma:     0.9,
		Status:    reinforcement.STATUS_RUNNING,
		Delta:     7.1,
		Grid:      grid,
	})
}

// testTemplate provides the func-map the views expect from their parent page.
func testTemplate() *template.Template {
	return template.New("test").Funcs(template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
	})
}

func render(vc fastview.ViewComponent, board Board) string {
	t := testTemplate()
	name, err := vc.Parse(t)
	So(err, ShouldBeNil)
	_, err = t.Parse(`{{ template "` + name + `" . }}`)
	So(err, ShouldBeNil)
	buf := &bytes.Buffer{}
	So(t.Execute(buf, board), ShouldBeNil)
	return buf.String()
}

func TestConvert(t *testing.T) {
	Convey("Given a snapshot after one value iteration step", t, func() {
		board := testBoard()

		Convey("The board keeps the grid's shape and status", func() {
			rows, cols := board.Dims()
			So(rows, ShouldEqual, grid_world.ROWS)
			So(cols, ShouldEqual, grid_world.COLS)
			So(board.Iteration, ShouldEqual, 1)
			So(board.Algorithm, ShouldEqual, "VI")
			So(board.Status, ShouldEqual, "Running")
		})

		Convey("The value bounds span the terminals", func() {
			So(board.MinValue, ShouldEqual, grid_world.TRAP_REWARD)
			So(board.MaxValue, ShouldEqual, grid_world.GOAL_REWARD)
		})

		Convey("Cells are indexed [row][col] with X the column", func() {
			cell := board.Cells[0][2]
			So(cell.X, ShouldEqual, 2)
			So(cell.Y, ShouldEqual, 0)
			So(cell.ValueText, ShouldEqual, "7.10")
			So(cell.PolicyArrowRotation, ShouldEqual, 90)
			So(cell.ShowArrow, ShouldBeTrue)
		})

		Convey("Terminals and walls are colored by type and show no arrow", func() {
			goal, trap, wall := board.Cells[0][3], board.Cells[1][3], board.Cells[1][1]
			So(goal.Fill, ShouldEqual, "#22c55e")
			So(goal.Label, ShouldEqual, "GOAL")
			So(goal.ShowArrow, ShouldBeFalse)
			So(goal.ShowValue, ShouldBeTrue)
			So(trap.Fill, ShouldEqual, "#ef4444")
			So(trap.Label, ShouldEqual, "TRAP")
			So(trap.ShowArrow, ShouldBeFalse)
			So(wall.Fill, ShouldEqual, "#1f2937")
			So(wall.ShowValue, ShouldBeFalse)
			So(wall.ShowArrow, ShouldBeFalse)
			So(wall.TextColor, ShouldEqual, "#fff")
		})
	})

	Convey("Empty cells are shaded by value", t, func() {
		So(getFill(grid_world.EMPTY, 0), ShouldEqual, "#ffffff")
		So(getFill(grid_world.EMPTY, 10), ShouldEqual, "rgb(0,200,0)")
		So(getFill(grid_world.EMPTY, 25), ShouldEqual, "rgb(0,200,0)")
		So(getFill(grid_world.EMPTY, 5), ShouldEqual, "rgb(128,228,128)")
		So(getFill(grid_world.EMPTY, -5), ShouldEqual, "rgb(255,128,128)")
		So(getFill(grid_world.EMPTY, -10), ShouldEqual, "rgb(255,0,0)")
	})
}

func TestValuesGrid(t *testing.T) {
	Convey("Given a values grid", t, func() {
		boards := make(chan Board)
		done := make(chan struct{})
		defer close(done)
		vg := NewValuesGrid(done, boards)
		board := testBoard()

		Convey("Each board produces rect, value and arrow updates for every cell", func() {
			go func() { boards <- board }()
			ops := <-vg.Updates()
			So(ops, ShouldHaveLength, 3*grid_world.ROWS*grid_world.COLS)

			byId := map[string]fastview.EleUpdate{}
			for _, op := range ops {
				byId[op.EleId] = op
			}
			So(byId["2-0-value-text"].Ops[0], ShouldResemble, fastview.Op{Key: fastview.TEXT_CONTENT, Value: "7.10"})
			So(byId["2-0-policy-arrow"].Ops, ShouldContain, fastview.Op{Key: "transform", Value: "rotate(90)"})
			So(byId["3-0-policy-arrow"].Ops, ShouldContain, fastview.Op{Key: "visibility", Value: "hidden"})
			So(byId["1-1-rect"].Ops, ShouldContain, fastview.Op{Key: "fill", Value: "#1f2937"})
		})

		Convey("The template renders every cell with matching ids", func() {
			html := render(vg, board)
			So(html, ShouldContainSubstring, `id="2-0-value-text"`)
			So(html, ShouldContainSubstring, `id="3-3-policy-arrow"`)
			So(html, ShouldContainSubstring, `id="1-1-rect"`)
			So(html, ShouldContainSubstring, "7.10")
			So(html, ShouldContainSubstring, "GOAL")
			So(html, ShouldContainSubstring, "TRAP")
		})
	})
}

func TestStatusLine(t *testing.T) {
	Convey("Given a status line", t, func() {
		sl := NewStatusLine(nil, make(chan Board))
		board := testBoard()

		Convey("Updates carry every status field", func() {
			ops := sl.onUpdate(board)
			texts := map[string]string{}
			for _, op := range ops {
				texts[op.EleId] = op.Ops[0].Value
			}
			So(texts, ShouldResemble, map[string]string{
				"statusline-iteration": "1",
				"statusline-status":    "Running",
				"statusline-algorithm": "VI",
				"statusline-gamma":     "0.90",
				"statusline-delta":     "7.1000",
			})
		})

		Convey("The template renders the same ids", func() {
			html := render(sl, board)
			So(html, ShouldContainSubstring, `id="statusline-delta"`)
			So(html, ShouldContainSubstring, "Running")
		})
	})
}

func TestValueFunction(t *testing.T) {
	Convey("Given a value function surface", t, func() {
		vf := NewValueFunction(nil, make(chan Board), grid_world.ROWS, grid_world.COLS)
		board := testBoard()

		Convey("Each interior quad becomes a polygon, plus the centering transform", func() {
			ops := vf.onUpdate(board)
			So(ops, ShouldHaveLength, (grid_world.ROWS-1)*(grid_world.COLS-1)+1)
			So(ops[len(ops)-1].EleId, ShouldEqual, "valuefunction-group")
			So(ops[0].EleId, ShouldEqual, "0-0-value-polygon")
			So(ops[0].Ops[0].Key, ShouldEqual, "points")
		})

		Convey("A single row has no surface", func() {
			grid, err := grid_world.Convert([]string{"oo+"})
			So(err, ShouldBeNil)
			flat := Convert(reinforcement.Snapshot{Grid: grid})
			So(vf.onUpdate(flat), ShouldBeEmpty)
		})

		Convey("Fill runs from red at the minimum to green at the maximum", func() {
			So(getRGBFill(0, 0, 10), ShouldEqual, "rgb(100%,0%,0%)")
			So(getRGBFill(10, 0, 10), ShouldEqual, "rgb(0%,100%,0%)")
			So(getRGBFill(5, 0, 10), ShouldEqual, "rgb(50%,50%,0%)")
			So(getRGBFill(3, 3, 3), ShouldEqual, "rgb(50%,50%,0%)")
		})

		Convey("The template renders a polygon per quad", func() {
			html := render(vf, board)
			So(html, ShouldContainSubstring, `id="valuefunction-group"`)
			So(html, ShouldContainSubstring, `id="2-2-value-polygon"`)
		})
	})
}
