package main

import (
	"os"
	"path/filepath"
	"testing"

	"gridmdp/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadConfig(t *testing.T) {
	Convey("Load config", t, func() {
		Convey("A missing file falls back to defaults", func() {
			cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
			So(err, ShouldBeNil)
			So(cfg, ShouldResemble, reinforcement.DefaultConfig())
		})

		Convey("The shipped config loads", func() {
			cfg, err := loadConfig("./config.yaml")
			So(err, ShouldBeNil)
			So(cfg.Algorithm, ShouldEqual, "VI")
			So(cfg.Gamma(), ShouldEqual, 0.9)
			So(cfg.MaxSteps, ShouldEqual, 500)
			_, err = reinforcement.NewSession(cfg)
			So(err, ShouldBeNil)
		})
	})
}

func TestEnvOrDefault(t *testing.T) {
	Convey("Environment overrides", t, func() {
		t.Setenv("GRIDMDP_TEST_PORT", "9090")
		So(envOrDefault("GRIDMDP_TEST_PORT", "8080"), ShouldEqual, "9090")
		So(os.Unsetenv("GRIDMDP_TEST_PORT"), ShouldBeNil)
		So(envOrDefault("GRIDMDP_TEST_PORT", "8080"), ShouldEqual, "8080")
	})
}

func TestSolveConsole(t *testing.T) {
	Convey("Solving in the console succeeds for both algorithms", t, func() {
		*colors = false
		for _, alg := range []string{"VI", "PI"} {
			cfg := reinforcement.DefaultConfig()
			cfg.Algorithm = alg
			So(solveConsole(cfg), ShouldBeNil)
		}
	})
}
