/*
A single page grid-world MDP solver: value iteration and policy iteration over a small grid
with a goal, a trap and walls, where moves slip sideways with some probability. The solver
steps on a timer or on demand, and the page shows the values, the greedy policy and the
value surface as they converge. With -solve it instead runs to convergence and prints the
result to the console.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gridmdp/grid_world"
	"gridmdp/reinforcement"
	"gridmdp/server"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	dbg        = flag.Bool("debug", false, "debug logging")
	configPath = flag.String("config", "./config.yaml", "solver config file; defaults are used if it does not exist")
	host       = flag.String("host", "", "The host ip")
	port       = flag.String("port", "8080", "The host port")
	solve      = flag.Bool("solve", false, "solve in the console and exit instead of serving")
	colors     = flag.Bool("color", true, "color console output")
)

// envOrDefault returns the environment variable @key, or @defaultVal if it is unset.
func envOrDefault(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func loadConfig(path string) (*reinforcement.SolverConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.WithField("path", path).Info("no config file, using defaults")
		return reinforcement.DefaultConfig(), nil
	}
	return reinforcement.FromYaml(path)
}

func solveConsole(cfg *reinforcement.SolverConfig) error {
	grid, err := cfg.Grid()
	if err != nil {
		return err
	}
	alg, err := reinforcement.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return err
	}

	printer := grid_world.NewPrinter(os.Stdout, *colors)
	printer.ShowGrid(grid)

	solved, steps, err := reinforcement.Solve(grid, cfg.Gamma(), cfg.Epsilon(), alg, cfg.MaxSteps)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"algorithm": alg.String(),
		"gamma":     cfg.Gamma(),
		"steps":     steps,
	}).Info("solved")

	printer.ShowValues(solved)
	printer.ShowPolicy(solved)
	return nil
}

func runApp() (err error) {
	var cfg *reinforcement.SolverConfig
	if cfg, err = loadConfig(*configPath); err != nil {
		return
	}

	if *solve {
		return solveConsole(cfg)
	}

	if loadErr := godotenv.Load(); loadErr != nil {
		log.WithError(loadErr).Debug(".env file not found or could not be loaded")
	}
	addr := envOrDefault("GRIDMDP_HOST", *host) + ":" + envOrDefault("GRIDMDP_PORT", *port)

	interval, err := cfg.TickInterval()
	if err != nil {
		return
	}

	session, err := reinforcement.NewSession(cfg)
	if err != nil {
		return
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	var srv *server.Server
	if srv, err = server.NewServer(
		appCtx,
		addr,
		session,
		interval,
	); err != nil {
		return
	}

	err = srv.Serve()
	return
}

func main() {
	flag.Parse()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *dbg {
		log.SetLevel(log.DebugLevel)
	}

	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
