package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gridmdp/grid_world"
	"gridmdp/reinforcement"
	"gridmdp/server/cell_views"
	"gridmdp/server/fastview"
	"gridmdp/server/root_view"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Server serves the solver page, its websocket ele-updates and a small control API
// around a single Session. Every connected page receives the same updates.
type Server struct {
	addr     string
	session  *reinforcement.Session
	interval time.Duration
	rootView *root_view.RootView
	router   *mux.Router
	ctx      context.Context
	// snapshots feeds the views; it holds at most the latest unconsumed snapshot.
	snapshots chan reinforcement.Snapshot
	// published is the version of the newest snapshot handed to the views.
	publishMu sync.Mutex
	published uint64

	subsMu sync.Mutex
	subs   map[uuid.UUID]chan []fastview.EleUpdate
}

// NewServer initializes all of the views and routes. @interval is the run cadence used
// by the run endpoint. The views' goroutines stop when ctx is cancelled.
func NewServer(
	ctx context.Context,
	addr string,
	session *reinforcement.Session,
	interval time.Duration,
) (*Server, error) {
	snap := session.Snapshot()
	snapshots := make(chan reinforcement.Snapshot, 1)
	rootView, err := root_view.NewRootView(ctx, snap.Grid.Rows(), snap.Grid.Cols(), snapshots)
	if err != nil {
		return nil, err
	}

	server := &Server{
		addr:      addr,
		session:   session,
		interval:  interval,
		rootView:  rootView,
		ctx:       ctx,
		snapshots: snapshots,
		subs:      map[uuid.UUID]chan []fastview.EleUpdate{},
	}
	server.router = server.routes()
	go server.broadcast()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/chart", server.serveChart).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", server.getState).Methods(http.MethodGet)
	api.HandleFunc("/transitions", server.getTransitions).Methods(http.MethodGet).
		Queries("row", "{row}", "col", "{col}", "action", "{action}")
	api.HandleFunc("/step", server.postStep).Methods(http.MethodPost)
	api.HandleFunc("/run", server.postRun).Methods(http.MethodPost)
	api.HandleFunc("/pause", server.postPause).Methods(http.MethodPost)
	api.HandleFunc("/reset", server.postReset).Methods(http.MethodPost)
	api.HandleFunc("/gamma", server.postGamma).Methods(http.MethodPost).Queries("value", "{value}")
	api.HandleFunc("/algorithm", server.postAlgorithm).Methods(http.MethodPost).Queries("name", "{name}")
	return router
}

// Handler returns the server's router, for serving or testing.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve() error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.WithField("addr", server.addr).Info("serving")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-server.ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// publish hands a snapshot to the views, replacing any snapshot they have not yet consumed.
// Snapshots are complete states, so only the latest matters. A snapshot older than one
// already published is dropped.
func (server *Server) publish(snap reinforcement.Snapshot) {
	server.publishMu.Lock()
	defer server.publishMu.Unlock()
	if !server.advance(snap.Version) {
		return
	}
	for {
		select {
		case server.snapshots <- snap:
			return
		default:
		}
		select {
		case <-server.snapshots:
		default:
		}
	}
}

// advance records @version as published unless a newer one already was.
// Callers hold publishMu.
func (server *Server) advance(version uint64) bool {
	if version < server.published {
		return false
	}
	server.published = version
	return true
}

// broadcast copies the root view's ele-updates to every subscribed websocket client.
// A client that has not consumed its previous update has it replaced.
func (server *Server) broadcast() {
	for updates := range server.rootView.Updates() {
		server.subsMu.Lock()
		for _, sub := range server.subs {
			select {
			case sub <- updates:
			default:
				select {
				case <-sub:
				default:
				}
				select {
				case sub <- updates:
				default:
				}
			}
		}
		server.subsMu.Unlock()
	}

	server.subsMu.Lock()
	defer server.subsMu.Unlock()
	for id, sub := range server.subs {
		close(sub)
		delete(server.subs, id)
	}
}

func (server *Server) subscribe() (uuid.UUID, <-chan []fastview.EleUpdate) {
	id := uuid.New()
	sub := make(chan []fastview.EleUpdate, 1)
	server.subsMu.Lock()
	server.subs[id] = sub
	server.subsMu.Unlock()
	return id, sub
}

func (server *Server) unsubscribe(id uuid.UUID) {
	server.subsMu.Lock()
	defer server.subsMu.Unlock()
	delete(server.subs, id)
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	id, updates := server.subscribe()
	defer server.unsubscribe(id)

	cli, err := fastview.NewClient(updates, w, r)
	if err != nil {
		log.WithError(err).Warn("websocket")
		return
	}
	_ = cli.Sync()
}

// Serve the index.html main page, rendered with the session's current state.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	board := cell_views.Convert(server.session.Snapshot())
	if err := renderTemplate(w, server.rootView, board); err != nil {
		log.WithError(err).Error("index template")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}

// CellState is the JSON form of a grid cell.
type CellState struct {
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	Type     string  `json:"type"`
	Terminal bool    `json:"isTerminal"`
	Value    float64 `json:"value"`
	Policy   string  `json:"policy"`
}

// State is the JSON form of a session snapshot.
type State struct {
	ID            string        `json:"id"`
	Iteration     int           `json:"iteration"`
	Algorithm     string        `json:"algorithm"`
	Gamma         float64       `json:"gamma"`
	Status        string        `json:"status"`
	Running       bool          `json:"running"`
	Converged     bool          `json:"converged"`
	Delta         float64       `json:"delta"`
	PolicyChanged bool          `json:"policyChanged"`
	Grid          [][]CellState `json:"grid"`
}

func toState(snap reinforcement.Snapshot) State {
	grid := make([][]CellState, snap.Grid.Rows())
	for row := range grid {
		grid[row] = make([]CellState, snap.Grid.Cols())
	}
	snap.Grid.Visit(func(cell *grid_world.Cell) {
		grid[cell.Row][cell.Col] = CellState{
			Row:      cell.Row,
			Col:      cell.Col,
			Type:     cell.Type.String(),
			Terminal: cell.IsTerminal,
			Value:    cell.Value,
			Policy:   cell.Policy.String(),
		}
	})

	return State{
		ID:            snap.ID,
		Iteration:     snap.Iteration,
		Algorithm:     snap.Algorithm.String(),
		Gamma:         snap.Gamma,
		Status:        string(snap.Status),
		Running:       snap.Running,
		Converged:     snap.Converged,
		Delta:         snap.Delta,
		PolicyChanged: snap.PolicyChanged,
		Grid:          grid,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// respond publishes @snap to the views and returns it to the caller.
func (server *Server) respond(w http.ResponseWriter, status int, snap reinforcement.Snapshot) {
	server.publish(snap)
	writeJSON(w, status, toState(snap))
}

func (server *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toState(server.session.Snapshot()))
}

// TransitionState is the JSON form of one outcome of an action.
type TransitionState struct {
	Prob float64 `json:"prob"`
	Row  int     `json:"row"`
	Col  int     `json:"col"`
}

// getTransitions lists where an action taken from a cell may lead, intended outcome first.
func (server *Server) getTransitions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	row, err := strconv.Atoi(vars["row"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("row: %w", err))
		return
	}
	col, err := strconv.Atoi(vars["col"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("col: %w", err))
		return
	}
	action, err := grid_world.ParseAction(vars["action"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcomes, err := reinforcement.Transitions(server.session.Snapshot().Grid, row, col, action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body := make([]TransitionState, 0, len(outcomes))
	for _, outcome := range outcomes {
		body = append(body, TransitionState{Prob: outcome.Prob, Row: outcome.Row, Col: outcome.Col})
	}
	writeJSON(w, http.StatusOK, body)
}

var errRunning = errors.New("pause the session first")

func (server *Server) postStep(w http.ResponseWriter, r *http.Request) {
	if server.session.Running() {
		writeError(w, http.StatusConflict, errRunning)
		return
	}
	server.respond(w, http.StatusOK, server.session.Step())
}

// postRun starts a background run at the server's interval. The run outlives the
// request and stops on convergence, pause, reset or server shutdown.
func (server *Server) postRun(w http.ResponseWriter, r *http.Request) {
	err := server.session.Start(
		server.ctx,
		server.interval,
		func(_ context.Context, snap reinforcement.Snapshot) {
			server.publish(snap)
		},
		func(err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("run")
			}
			server.publish(server.session.Snapshot())
		})
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	server.respond(w, http.StatusAccepted, server.session.Snapshot())
}

func (server *Server) postPause(w http.ResponseWriter, r *http.Request) {
	server.session.Pause()
	server.respond(w, http.StatusOK, server.session.Snapshot())
}

func (server *Server) postReset(w http.ResponseWriter, r *http.Request) {
	server.respond(w, http.StatusOK, server.session.Reset())
}

func (server *Server) postGamma(w http.ResponseWriter, r *http.Request) {
	gamma, err := strconv.ParseFloat(mux.Vars(r)["value"], 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("gamma: %w", err))
		return
	}
	snap, err := server.session.SetGamma(gamma)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	server.respond(w, http.StatusOK, snap)
}

func (server *Server) postAlgorithm(w http.ResponseWriter, r *http.Request) {
	alg, err := reinforcement.ParseAlgorithm(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	server.respond(w, http.StatusOK, server.session.SetAlgorithm(alg))
}

// serveChart renders the max value change and policy changes of every step since the last reset.
func (server *Server) serveChart(w http.ResponseWriter, r *http.Request) {
	snap := server.session.Snapshot()
	history := server.session.History()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Convergence",
			Subtitle: fmt.Sprintf("%s, gamma %.2f: %s", snap.Algorithm, snap.Gamma, snap.Status),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	steps := make([]string, 0, len(history))
	deltas := make([]opts.LineData, 0, len(history))
	changes := make([]opts.LineData, 0, len(history))
	for _, record := range history {
		steps = append(steps, strconv.Itoa(record.Iteration))
		deltas = append(deltas, opts.LineData{Value: record.Delta})
		changed := 0
		if record.PolicyChanged {
			changed = 1
		}
		changes = append(changes, opts.LineData{Value: changed})
	}

	line.SetXAxis(steps).
		AddSeries("max value change", deltas).
		AddSeries("policy changed", changes)

	w.Header().Set("Content-Type", "text/html")
	if err := line.Render(w); err != nil {
		log.WithError(err).Error("chart")
	}
}
