package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"gridmdp/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValueFunction provides a view of the current value function as a 2d
// isometric projection of the 3d surface (col, row, value).
type ValueFunction struct {
	id      string
	updates <-chan []fastview.EleUpdate
	// Canvas size in pixels, derived from the grid dimensions.
	width, height float64
	xyscale       float64 // pixels per x or y unit
	zscale        float64 // pixels per z unit
}

const (
	surfaceCellDim = 80          // Cell height/width size in pixels
	surfaceAngle   = math.Pi / 6 // angle of x, y axes (=30°)
)

var sinAng, cosAng = math.Sin(surfaceAngle), math.Cos(surfaceAngle)

// NewValueFunction builds the surface view for a grid of the given dimensions.
func NewValueFunction(
	done <-chan struct{},
	boards <-chan Board,
	rows, cols int,
) (vf *ValueFunction) {
	vf = &ValueFunction{
		id:      "valuefunction",
		width:   float64(cols) * surfaceCellDim,
		height:  float64(rows) * surfaceCellDim,
		xyscale: surfaceCellDim,
		zscale:  surfaceCellDim * 0.1,
	}
	vf.updates = channerics.Convert(done, boards, vf.onUpdate)
	return
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

// project applies an isometric projection to the passed point.
func (vf *ValueFunction) project(x, y, z float64) (float64, float64) {
	sx := (x - y) * cosAng * vf.xyscale
	sy := (x+y)*sinAng*vf.xyscale - z*vf.zscale
	return sx, sy
}

// Cell-A is bottom left, Cell-B is top left, Cell-C is top right, and Cell-D is bottom right.
func (vf *ValueFunction) polyPoints(
	cellA Cell,
	cellB Cell,
	cellC Cell,
	cellD Cell,
) string {
	return vf.makeFuncPolygon("", cellA, cellB, cellC, cellD).String()
}

// Returns an svg polygon describing these four adjacent cells, projected into 2d
// in the manner of the surface plot in The Go Programming Language.
func (vf *ValueFunction) makeFuncPolygon(
	id string,
	cellA Cell,
	cellB Cell,
	cellC Cell,
	cellD Cell,
) (fp *funcPolygon) {
	fp = &funcPolygon{
		Id: id,
	}
	fp.ax, fp.ay = vf.project(float64(cellA.X), float64(cellA.Y), cellA.Value)
	fp.bx, fp.by = vf.project(float64(cellB.X), float64(cellB.Y), cellB.Value)
	fp.cx, fp.cy = vf.project(float64(cellC.X), float64(cellC.Y), cellC.Value)
	fp.dx, fp.dy = vf.project(float64(cellD.X), float64(cellD.Y), cellD.Value)
	return
}

type funcPolygon struct {
	Id     string
	ax, ay float64
	bx, by float64
	cx, cy float64
	dx, dy float64
}

// String returns a string suitable for the svg-polygon 'points' attribute.
// The values are truncated to ints.
func (fp *funcPolygon) String() string {
	return fmt.Sprintf("%d,%d %d,%d %d,%d %d,%d",
		int(fp.ax), int(fp.ay),
		int(fp.bx), int(fp.by),
		int(fp.cx), int(fp.cy),
		int(fp.dx), int(fp.dy),
	)
}

func minFour(f1, f2, f3, f4 float64) float64 {
	return math.Min(
		math.Min(f1, f2),
		math.Min(f3, f4),
	)
}

func maxFour(f1, f2, f3, f4 float64) float64 {
	return math.Max(
		math.Max(f1, f2),
		math.Max(f3, f4),
	)
}

func (fp *funcPolygon) MinX() float64 {
	return minFour(fp.ax, fp.bx, fp.cx, fp.dx)
}

func (fp *funcPolygon) MinY() float64 {
	return minFour(fp.ay, fp.by, fp.cy, fp.dy)
}

func (fp *funcPolygon) MaxX() float64 {
	return maxFour(fp.ax, fp.bx, fp.cx, fp.dx)
}

func (fp *funcPolygon) MaxY() float64 {
	return maxFour(fp.ay, fp.by, fp.cy, fp.dy)
}

func avg(f ...float64) float64 {
	n, sum := 0.0, 0.0
	for _, fn := range f {
		sum += fn
		n++
	}
	return sum / n
}

// Returns the set of view updates needed for the view to reflect current values.
func (vf *ValueFunction) onUpdate(board Board) (ops []fastview.EleUpdate) {
	cells := board.Cells
	if rows, cols := board.Dims(); rows < 2 || cols < 2 {
		return
	}

	// The min and max function values set the extremes of the pseudo-gradient;
	// each polygon is shaded by the average of its four corner values.
	minVal, maxVal := board.MinValue, board.MaxValue

	// First build up the polygons, so we can later center their svg coordinates within the view.
	xmin, ymin := math.MaxFloat64, math.MaxFloat64
	xmax, ymax := -math.MaxFloat64, -math.MaxFloat64
	for ri, row := range cells[:len(cells)-1] {
		for ci, cell := range row[:len(row)-1] {
			cellA := cells[ri+1][ci]
			cellB := cells[ri][ci]
			cellC := cells[ri][ci+1]
			cellD := cells[ri+1][ci+1]
			polygon := vf.makeFuncPolygon(
				fmt.Sprintf("%d-%d-value-polygon", cell.X, cell.Y),
				cellA, cellB, cellC, cellD,
			)

			xmin = math.Min(xmin, polygon.MinX())
			xmax = math.Max(xmax, polygon.MaxX())

			ymin = math.Min(ymin, polygon.MinY())
			ymax = math.Max(ymax, polygon.MaxY())

			avgVal := avg(cellA.Value, cellB.Value, cellC.Value, cellD.Value)
			ops = append(ops, fastview.EleUpdate{
				EleId: polygon.Id,
				Ops: []fastview.Op{
					{
						Key:   "points",
						Value: polygon.String(),
					},
					{
						Key:   "fill",
						Value: getRGBFill(avgVal, minVal, maxVal),
					},
				},
			})
		}
	}

	// Shift all points by the min x and y to center the view, and scale it down to fit only if needed.
	scaler := math.Min(
		math.Min(
			math.Abs(2*vf.width/(xmax-xmin)),
			math.Abs(2*vf.height/(ymax-ymin)),
		),
		1.0,
	)

	ops = append(ops, fastview.EleUpdate{
		EleId: vf.id + "-group",
		Ops: []fastview.Op{
			{
				Key:   "transform",
				Value: fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-xmin), int(-ymin)),
			},
		},
	})

	return
}

// Returns an RGB value defined by where avgVal lies along the number line between minVal and
// maxVal: red at the minimum, green at the maximum.
func getRGBFill(avgVal, minVal, maxVal float64) string {
	greenPct := 50
	if span := maxVal - minVal; span > 0 {
		greenPct = int(100.0 * (avgVal - minVal) / span)
	}
	return fmt.Sprintf("rgb(%d%%,%d%%,0%%)", 100-greenPct, greenPct)
}

// Parse returns an svg of polygons plotting the value function surface as a 2D projection.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	addedMap := template.FuncMap{
		"getPolyPoints": vf.polyPoints,
	}
	// The order of polygon creation forms the visual surface by obscuring prior polygons.
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:40px;">
			{{ $cells := .Cells }}
			{{ $x_cells := len $cells }}
			{{ $y_cells := len (index $cells 0) }}
			{{ $num_x_polys := sub $x_cells 1 }}
			{{ $num_y_polys := sub $y_cells 1 }}
			<svg id="` + vf.id + `" xmlns='http://www.w3.org/2000/svg'
				width="` + fmt.Sprintf("%d", int(2*vf.width)) + `px"
				height="` + fmt.Sprintf("%d", int(2*vf.height)) + `px"
				style="shape-rendering: crispEdges; stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 3;">
				<g id="` + vf.id + "-group" + `" transform="translate(0 0)">
				{{ range $ri, $row := $cells }}
					{{ if lt $ri $num_x_polys }}
						{{ range $j, $unused := $row }}
							{{ $ci := sub (sub (len $row) $j) 1 }}
							{{ $cell := index $row $ci }}
							{{ if lt $ci $num_y_polys }}
								<polygon id="{{$cell.X}}-{{$cell.Y}}-value-polygon"
									fill="black" fill-opacity="1.0"
									{{ $cell_a := index $cells (add $ri 1) $ci }}
									{{ $cell_b := index $cells $ri $ci }}
									{{ $cell_c := index $cells $ri (add $ci 1) }}
									{{ $cell_d := index $cells (add $ri 1) (add $ci 1) }}
									points="{{ getPolyPoints $cell_a $cell_b $cell_c $cell_d }}" />
							{{ end }}
						{{ end }}
					{{ end }}
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
