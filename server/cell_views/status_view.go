package cell_views

import (
	"fmt"
	"html/template"

	"gridmdp/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatusLine shows the session's iteration, status, algorithm, gamma and last delta.
type StatusLine struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusLine(
	done <-chan struct{},
	boards <-chan Board,
) (sl *StatusLine) {
	sl = &StatusLine{id: "statusline"}
	sl.updates = channerics.Convert(done, boards, sl.onUpdate)
	return
}

func (sl *StatusLine) Updates() <-chan []fastview.EleUpdate {
	return sl.updates
}

func text(id, val string) fastview.EleUpdate {
	return fastview.EleUpdate{
		EleId: id,
		Ops:   []fastview.Op{{Key: fastview.TEXT_CONTENT, Value: val}},
	}
}

func (sl *StatusLine) onUpdate(board Board) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		text(sl.id+"-iteration", fmt.Sprintf("%d", board.Iteration)),
		text(sl.id+"-status", board.Status),
		text(sl.id+"-algorithm", board.Algorithm),
		text(sl.id+"-gamma", fmt.Sprintf("%.2f", board.Gamma)),
		text(sl.id+"-delta", fmt.Sprintf("%.4f", board.Delta)),
	}
}

// Parse defines the status line template, executed against a Board.
func (sl *StatusLine) Parse(t *template.Template) (name string, err error) {
	name = sl.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div id="` + sl.id + `" style="font-family: sans-serif; padding: 8px 0;">
			Iteration: <span id="` + sl.id + `-iteration">{{ .Iteration }}</span> |
			Status: <span id="` + sl.id + `-status">{{ .Status }}</span> |
			Algorithm: <span id="` + sl.id + `-algorithm">{{ .Algorithm }}</span> |
			Gamma: <span id="` + sl.id + `-gamma">{{ printf "%.2f" .Gamma }}</span> |
			Delta: <span id="` + sl.id + `-delta">{{ printf "%.4f" .Delta }}</span>
		</div>
		{{ end }}`)
	return
}
