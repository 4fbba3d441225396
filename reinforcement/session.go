package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"gridmdp/atomic_float"
	. "gridmdp/grid_world"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"
	log "github.com/sirupsen/logrus"
)

// Algorithm selects which step function a Session drives.
type Algorithm int

const (
	VALUE_ITERATION Algorithm = iota
	POLICY_ITERATION
)

func (alg Algorithm) String() string {
	if alg == POLICY_ITERATION {
		return "PI"
	}
	return "VI"
}

// ParseAlgorithm accepts the short names "VI" and "PI" as well as the long names.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vi", "value-iteration", "value_iteration":
		return VALUE_ITERATION, nil
	case "pi", "policy-iteration", "policy_iteration":
		return POLICY_ITERATION, nil
	}
	return 0, fmt.Errorf("%q: %w", name, ErrUnknownAlgorithm)
}

// Status is the human readable state of a Session.
type Status string

const (
	STATUS_READY     Status = "Ready"
	STATUS_RUNNING   Status = "Running"
	STATUS_PAUSED    Status = "Paused"
	STATUS_CONVERGED Status = "Converged!"
	STATUS_OPTIMAL   Status = "Optimal Policy Found!"
)

// Gamma bounds accepted by a Session. The step functions themselves accept any finite gamma.
const (
	MIN_GAMMA = 0.1
	MAX_GAMMA = 0.99
)

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrGammaRange       = fmt.Errorf("gamma must be within [%.2f, %.2f]", MIN_GAMMA, MAX_GAMMA)
	ErrAlreadyRunning   = errors.New("session is already running")
	ErrNotConverged     = errors.New("did not converge within the step limit")
)

// StepRecord is the convergence signal of one step, kept for charting.
type StepRecord struct {
	Iteration     int
	Delta         float64
	PolicyChanged bool
}

// Snapshot is a consistent copy of a Session's state. The Grid is a clone owned by the receiver.
type Snapshot struct {
	ID string
	// Version increases with every change to the session, resets included.
	Version       uint64
	Iteration     int
	Algorithm     Algorithm
	Gamma         float64
	Status        Status
	Running       bool
	Converged     bool
	Delta         float64
	PolicyChanged bool
	Grid          *Grid
}

// ProgressFunc is called after every step of a run. It is synchronous and should
// complete quickly; the context is cancelled when the run is paused or stopped.
type ProgressFunc func(context.Context, Snapshot)

// Session is the driver around the step functions: it holds the current grid, gamma and
// algorithm, replaces the grid with each step's output, and decides convergence.
// All methods are safe for concurrent use.
type Session struct {
	mu            sync.Mutex
	id            uuid.UUID
	initial       *Grid
	grid          *Grid
	gamma         float64
	epsilon       float64
	maxSteps      int
	algorithm     Algorithm
	iteration     int
	status        Status
	converged     bool
	policyChanged bool
	history       []StepRecord
	// cancel is non-nil while a Run loop is active.
	cancel context.CancelFunc
	// run numbers each Run, so a stale loop cannot clear a newer run's cancel.
	run int
	// version is bumped by every change, so consumers can order snapshots.
	version uint64
	// delta is the last step's max value change, readable without the lock.
	delta  *atomic_float.AtomicFloat64
	logger *log.Entry
}

// NewSession builds a session from a solver config.
func NewSession(cfg *SolverConfig) (*Session, error) {
	grid, err := cfg.Grid()
	if err != nil {
		return nil, fmt.Errorf("session grid: %w", err)
	}
	alg, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	gamma := cfg.Gamma()
	if err := checkGamma(gamma); err != nil {
		return nil, err
	}
	epsilon := cfg.Epsilon()
	if err := checkEpsilon(epsilon); err != nil {
		return nil, err
	}

	id := uuid.New()
	return &Session{
		id:        id,
		initial:   grid,
		grid:      grid.Clone(),
		gamma:     gamma,
		epsilon:   epsilon,
		maxSteps:  cfg.MaxSteps,
		algorithm: alg,
		status:    STATUS_READY,
		delta:     atomic_float.NewAtomicFloat64(0),
		logger:    log.WithField("session", id.String()),
	}, nil
}

func checkGamma(gamma float64) error {
	if math.IsNaN(gamma) || gamma < MIN_GAMMA || gamma > MAX_GAMMA {
		return fmt.Errorf("gamma %v: %w", gamma, ErrGammaRange)
	}
	return nil
}

// isConverged is the stopping rule shared by Session and Solve. VI has converged when the
// largest value change drops below epsilon. PI has converged when a step changes no
// policy, except on the first step after a reset, where an unchanged policy is treated
// as inconclusive.
func isConverged(alg Algorithm, delta float64, policyChanged bool, iteration int, epsilon float64) bool {
	if alg == POLICY_ITERATION {
		return !policyChanged && iteration > 1
	}
	return delta < epsilon
}

// step runs exactly one step of @alg and reports the max value change and whether any
// policy action changed, for either algorithm.
func step(alg Algorithm, grid *Grid, gamma float64) (next *Grid, delta float64, policyChanged bool) {
	if alg == POLICY_ITERATION {
		next, policyChanged = PolicyIterationStep(grid, gamma)
		delta = maxValueChange(grid, next)
		return
	}
	next, delta = ValueIterationStep(grid, gamma)
	policyChanged = policyDiffers(grid, next)
	return
}

func maxValueChange(prev, next *Grid) (delta float64) {
	prev.Visit(func(cell *Cell) {
		delta = math.Max(delta, math.Abs(next.At(cell.Row, cell.Col).Value-cell.Value))
	})
	return
}

func policyDiffers(prev, next *Grid) (differs bool) {
	prev.Visit(func(cell *Cell) {
		if cell.IsLive() && next.At(cell.Row, cell.Col).Policy != cell.Policy {
			differs = true
		}
	})
	return
}

// Step invokes exactly one step of the selected algorithm and replaces the held grid with
// its output. Stepping a converged session is allowed and simply steps again.
func (s *Session) Step() Snapshot {
	s.mu.Lock()
	next, delta, changed := step(s.algorithm, s.grid, s.gamma)
	s.grid = next
	s.version++
	s.iteration++
	s.policyChanged = changed
	s.delta.AtomicSet(delta)
	s.history = append(s.history, StepRecord{
		Iteration:     s.iteration,
		Delta:         delta,
		PolicyChanged: changed,
	})

	s.converged = isConverged(s.algorithm, delta, changed, s.iteration, s.epsilon)
	switch {
	case s.converged && s.algorithm == POLICY_ITERATION:
		s.status = STATUS_OPTIMAL
	case s.converged:
		s.status = STATUS_CONVERGED
	case s.cancel != nil:
		s.status = STATUS_RUNNING
	}
	snap := s.snapshot()
	s.mu.Unlock()

	entry := s.logger.WithFields(log.Fields{
		"iteration": snap.Iteration,
		"algorithm": snap.Algorithm.String(),
		"delta":     snap.Delta,
		"changed":   snap.PolicyChanged,
	})
	if snap.Converged {
		entry.Info(string(snap.Status))
	} else {
		entry.Debug("step")
	}
	return snap
}

// Run steps the session every @interval until it converges, the configured step limit is
// reached, Pause is called, or ctx is cancelled. @progressFn, if non-nil, is called after
// each step. Run returns nil when it stops on its own or is paused, and ctx's error when
// ctx is cancelled. Only one Run may be active per session.
func (s *Session) Run(ctx context.Context, interval time.Duration, progressFn ProgressFunc) error {
	runCtx, run, err := s.begin(ctx, interval)
	if err != nil {
		return err
	}
	return s.loop(ctx, runCtx, run, interval, progressFn)
}

// Start is Run in a new goroutine. The run is registered before Start returns, so
// Running reports true immediately and ErrAlreadyRunning is returned synchronously.
// @onStop, if non-nil, receives the run's result.
func (s *Session) Start(ctx context.Context, interval time.Duration, progressFn ProgressFunc, onStop func(error)) error {
	runCtx, run, err := s.begin(ctx, interval)
	if err != nil {
		return err
	}
	go func() {
		err := s.loop(ctx, runCtx, run, interval, progressFn)
		if onStop != nil {
			onStop(err)
		}
	}()
	return nil
}

func (s *Session) begin(ctx context.Context, interval time.Duration) (context.Context, int, error) {
	if err := checkInterval(interval); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil, 0, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.run++
	s.version++
	s.status = STATUS_RUNNING
	return runCtx, s.run, nil
}

func (s *Session) loop(
	ctx context.Context,
	runCtx context.Context,
	run int,
	interval time.Duration,
	progressFn ProgressFunc,
) error {
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.run != run || s.cancel == nil {
			return
		}
		s.cancel()
		s.cancel = nil
		s.version++
		if s.status == STATUS_RUNNING {
			s.status = STATUS_PAUSED
		}
	}()

	s.mu.Lock()
	maxSteps := s.maxSteps
	s.mu.Unlock()

	s.logger.WithField("interval", interval).Info("run started")
	ticker := channerics.NewTicker(runCtx.Done(), interval)
	for steps := 0; ; {
		select {
		case <-runCtx.Done():
			return ctx.Err()
		case _, ok := <-ticker:
			// A tick and a pause may be ready together; the pause wins.
			if !ok || runCtx.Err() != nil {
				return ctx.Err()
			}

			snap := s.Step()
			steps++
			if progressFn != nil {
				progressFn(runCtx, snap)
			}
			if snap.Converged {
				return nil
			}
			if maxSteps > 0 && steps >= maxSteps {
				s.logger.WithField("steps", steps).Warn("run stopped at step limit")
				return nil
			}
		}
	}
}

// Pause stops an active Run; it is a no-op otherwise.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Running reports whether a Run loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Reset stops any run and restores the initial grid.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.logger.Info("reset")
	return s.snapshot()
}

func (s *Session) reset() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.grid = s.initial.Clone()
	s.version++
	s.iteration = 0
	s.converged = false
	s.policyChanged = false
	s.history = nil
	s.status = STATUS_READY
	s.delta.AtomicSet(0)
}

// SetGamma changes the discount factor for subsequent steps, keeping the current grid.
// A converged session becomes unconverged, since its values were for the old gamma.
func (s *Session) SetGamma(gamma float64) (Snapshot, error) {
	if err := checkGamma(gamma); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gamma = gamma
	s.version++
	if s.converged {
		s.converged = false
		s.status = STATUS_READY
		if s.cancel != nil {
			s.status = STATUS_RUNNING
		}
	}
	return s.snapshot(), nil
}

// SetAlgorithm switches algorithms, which also resets the session.
func (s *Session) SetAlgorithm(alg Algorithm) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.algorithm = alg
	s.reset()
	s.logger.WithField("algorithm", alg.String()).Info("algorithm selected")
	return s.snapshot()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// History returns the convergence records of every step since the last reset.
func (s *Session) History() []StepRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]StepRecord, len(s.history))
	copy(history, s.history)
	return history
}

// Delta is the max value change of the latest step. It does not take the session lock.
func (s *Session) Delta() float64 {
	return s.delta.AtomicRead()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:            s.id.String(),
		Version:       s.version,
		Iteration:     s.iteration,
		Algorithm:     s.algorithm,
		Gamma:         s.gamma,
		Status:        s.status,
		Running:       s.cancel != nil,
		Converged:     s.converged,
		Delta:         s.delta.AtomicRead(),
		PolicyChanged: s.policyChanged,
		Grid:          s.grid.Clone(),
	}
}

// Solve steps @grid with @alg until convergence, returning the final grid and the number
// of steps taken. It returns ErrNotConverged along with the last grid when @maxSteps
// steps were not enough; maxSteps <= 0 means no limit.
func Solve(grid *Grid, gamma, epsilon float64, alg Algorithm, maxSteps int) (*Grid, int, error) {
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return nil, 0, fmt.Errorf("solve with gamma %v: %w", gamma, ErrInvalidGamma)
	}
	if err := checkEpsilon(epsilon); err != nil {
		return nil, 0, fmt.Errorf("solve: %w", err)
	}
	current := grid
	for steps := 1; maxSteps <= 0 || steps <= maxSteps; steps++ {
		next, delta, changed := step(alg, current, gamma)
		current = next
		if isConverged(alg, delta, changed, steps, epsilon) {
			return current, steps, nil
		}
	}
	return current, maxSteps, fmt.Errorf("%s after %d steps: %w", alg, maxSteps, ErrNotConverged)
}
