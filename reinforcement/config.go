package reinforcement

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"gridmdp/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of every config file: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// SolverConfig holds the solver parameters kept outside of code: the algorithm, gamma and
// the convergence epsilon, step bounds, tick cadence and an optional grid layout.
type SolverConfig struct {
	// Algorithm is "VI" or "PI".
	Algorithm string `yaml:"algorithm"`
	// HyperParams is a key-val list of param names and their value, e.g. gamma and epsilon.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// MaxSteps bounds the number of steps of a run; zero means unbounded.
	MaxSteps int `yaml:"maxsteps"`
	// Tick is a duration string for the cadence of a run, e.g. "200ms".
	Tick string `yaml:"tickinterval"`
	// Layout overrides the default grid, one string per row. See grid_world.Convert.
	Layout []string `yaml:"layout"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

var (
	ErrTickInterval = errors.New("tick interval must be positive")
	ErrEpsilon      = errors.New("epsilon must be a positive number")
)

const (
	DEFAULT_GAMMA   = 0.9
	DEFAULT_EPSILON = 0.001
	DEFAULT_TICK    = 200 * time.Millisecond
)

// DefaultConfig is used when no config file is given.
func DefaultConfig() *SolverConfig {
	return &SolverConfig{
		Algorithm: VALUE_ITERATION.String(),
		HyperParams: []HyperParameter{
			{Key: "gamma", Val: DEFAULT_GAMMA},
			{Key: "epsilon", Val: DEFAULT_EPSILON},
		},
		Tick: DEFAULT_TICK.String(),
	}
}

func (cfg *SolverConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

func (cfg *SolverConfig) Gamma() float64 {
	return cfg.GetHyperParamOrDefault("gamma", DEFAULT_GAMMA)
}

func (cfg *SolverConfig) Epsilon() float64 {
	return cfg.GetHyperParamOrDefault("epsilon", DEFAULT_EPSILON)
}

// TickInterval parses the configured cadence, falling back to DEFAULT_TICK when unset.
func (cfg *SolverConfig) TickInterval() (time.Duration, error) {
	if cfg.Tick == "" {
		return DEFAULT_TICK, nil
	}
	d, err := time.ParseDuration(cfg.Tick)
	if err != nil {
		return 0, fmt.Errorf("tick interval: %w", err)
	}
	if err := checkInterval(d); err != nil {
		return 0, err
	}
	return d, nil
}

func checkInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%v: %w", d, ErrTickInterval)
	}
	return nil
}

func checkEpsilon(epsilon float64) error {
	if math.IsNaN(epsilon) || epsilon <= 0 {
		return fmt.Errorf("%v: %w", epsilon, ErrEpsilon)
	}
	return nil
}

// Grid builds the configured layout, or the default grid when none is configured.
func (cfg *SolverConfig) Grid() (*grid_world.Grid, error) {
	if len(cfg.Layout) == 0 {
		return grid_world.NewInitialGrid(), nil
	}
	return grid_world.Convert(cfg.Layout)
}

// FromYaml reads a config file. Viper handles the file and the outer envelope; the
// definition is then re-marshalled through yaml to decode the solver config itself.
// Viper lowercases keys, hence the lowercase yaml tags above.
func FromYaml(path string) (*SolverConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	innerConfig.HyperParams = nil
	if err = yaml.Unmarshal(def, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}
