package root_view

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"gridmdp/reinforcement"
	"gridmdp/server/cell_views"
	"gridmdp/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, and the solver controls.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// batchRate is the window within which ele-updates for the same element are coalesced.
const batchRate = time.Millisecond * 20

// NewRootView creates the main page and the views it contains, fed by session snapshots.
// @rows and @cols are the grid dimensions, which are fixed for the life of the page.
func NewRootView(
	ctx context.Context,
	rows, cols int,
	snapshots <-chan reinforcement.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[reinforcement.Snapshot, cell_views.Board]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewStatusLine(done, boards)
		}).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, boards)
		}).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewValueFunction(done, boards, rows, cols)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("root view: %w", err)
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>Grid World MDP</title>
			<link rel="icon" href="data:,">
			<script>
				const ws = new WebSocket("ws://" + window.location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (!ele) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}

				function post(path) {
					fetch(path, { method: "POST" })
						.then(resp => resp.ok ? null : resp.text().then(msg => console.log(msg)));
				}

				function setGamma(value) {
					document.getElementById("gamma-value").textContent = Number(value).toFixed(2);
					post("/api/gamma?value=" + encodeURIComponent(value));
				}
			</script>
		</head>
		<body style="font-family: sans-serif;">
			<h2>Grid World MDP Solver</h2>
			<div id="controls">
				<button onclick="post('/api/run')">Run</button>
				<button onclick="post('/api/pause')">Pause</button>
				<button onclick="post('/api/step')">Step</button>
				<button onclick="post('/api/reset')">Reset</button>
				<select onchange="post('/api/algorithm?name=' + this.value)">
					<option value="VI" {{ if eq .Algorithm "VI" }}selected{{ end }}>Value Iteration</option>
					<option value="PI" {{ if eq .Algorithm "PI" }}selected{{ end }}>Policy Iteration</option>
				</select>
				<label>Gamma
					<input type="range" min="0.1" max="0.99" step="0.01" value="{{ printf "%.2f" .Gamma }}"
						onchange="setGamma(this.value)">
					<span id="gamma-value">{{ printf "%.2f" .Gamma }}</span>
				</label>
				<a href="/chart">Convergence chart</a>
			</div>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single, batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify batches within the passed time frame before sending, over-writing previously
// received values for the same ele-id. This ensures that redundant updates for the
// same ele-id are not sent, and only the latest values are sent. A batch still pending
// when the source goes quiet is flushed on the next tick.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		order := []string{}
		last := time.Now()
		flush := func() bool {
			if len(data) == 0 {
				return true
			}
			batch := make([]fastview.EleUpdate, 0, len(order))
			for _, id := range order {
				batch = append(batch, data[id])
			}
			select {
			case output <- batch:
				data = map[string]fastview.EleUpdate{}
				order = order[:0:0]
				last = time.Now()
				return true
			case <-done:
				return false
			}
		}

		ticker := channerics.NewTicker(done, rate)
		input := channerics.OrDone(done, source)
		for {
			select {
			case updates, ok := <-input:
				if !ok {
					flush()
					return
				}
				// Later updates for an ele-id overwrite earlier ones within this batch's time frame.
				for _, update := range updates {
					if _, seen := data[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					data[update.EleId] = update
				}
				if time.Since(last) > rate && !flush() {
					return
				}
			case _, ok := <-ticker:
				if !ok || !flush() {
					return
				}
			}
		}
	}()

	return output
}
