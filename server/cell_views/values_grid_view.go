package cell_views

import (
	"fmt"
	"html/template"

	"gridmdp/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValuesGrid shows every cell as a colored square with its value, its label and
// its policy arrow.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

const cellDim = 100 // Cell height/width size in pixels

func NewValuesGrid(
	done <-chan struct{},
	boards <-chan Board,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, boards, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

func cellId(cell Cell, part string) string {
	return fmt.Sprintf("%d-%d-%s", cell.X, cell.Y, part)
}

func visibility(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}

// Returns the set of view updates needed for the view to reflect the current values.
func (vg *ValuesGrid) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, row := range board.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: cellId(cell, "rect"),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				},
				fastview.EleUpdate{
					EleId: cellId(cell, "value-text"),
					Ops: []fastview.Op{
						{Key: fastview.TEXT_CONTENT, Value: cell.ValueText},
						{Key: "visibility", Value: visibility(cell.ShowValue)},
					},
				},
				fastview.EleUpdate{
					EleId: cellId(cell, "policy-arrow"),
					Ops: []fastview.Op{
						{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)},
						{Key: "visibility", Value: visibility(cell.ShowArrow)},
					},
				})
		}
	}
	return
}

// Parse defines the grid's svg template, executed against a Board.
func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.id
	_, err = t.Funcs(template.FuncMap{
		"visibility": visibility,
	}).Parse(
		`{{ define "` + name + `" }}
		<div id="` + vg.id + `">
			{{ $rows := len .Cells }}
			{{ $cols := len (index .Cells 0) }}
			{{ $cell_width := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $cell_height := $cell_width }}
			{{ $width := mult $cell_width $cols }}
			{{ $height := mult $cell_height $rows }}
			{{ $half_height := div $cell_height 2 }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + vg.id + `-svg"
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges; font-family: sans-serif;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-rect"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						{{ if $cell.Label }}
						<text
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) 18 }}"
							fill="{{ $cell.TextColor }}" font-size="12"
							text-anchor="middle">{{ $cell.Label }}</text>
						{{ end }}
						<text id="{{$cell.X}}-{{$cell.Y}}-value-text"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) (sub $half_height 5) }}"
							fill="{{ $cell.TextColor }}"
							visibility="{{ visibility $cell.ShowValue }}"
							dominant-baseline="text-top" text-anchor="middle"
							>{{ $cell.ValueText }}</text>
						<g transform="translate({{ add (mult $cell.X $cell_width) $half_width }}, {{ add (mult $cell.Y $cell_height) (add $half_height 20) }})">
							<text id="{{$cell.X}}-{{$cell.Y}}-policy-arrow"
							fill="{{ $cell.TextColor }}" font-size="20"
							visibility="{{ visibility $cell.ShowArrow }}"
							dominant-baseline="central" text-anchor="middle"
							transform="rotate({{ $cell.PolicyArrowRotation }})"
							>&uarr;</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
