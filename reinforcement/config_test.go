package reinforcement

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "gridmdp/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: mdp
def:
  algorithm: PI
  hyperParams:
    - key: gamma
      val: 0.95
    - key: epsilon
      val: 0.0001
  maxSteps: 250
  tickInterval: 50ms
  layout:
    - "oo+"
    - "oW-"
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("Given a complete config file", t, func() {
		cfg, err := FromYaml(writeConfig(t, testConfig))
		So(err, ShouldBeNil)

		Convey("Every field is decoded", func() {
			So(cfg.Algorithm, ShouldEqual, "PI")
			So(cfg.Gamma(), ShouldEqual, 0.95)
			So(cfg.Epsilon(), ShouldEqual, 0.0001)
			So(cfg.MaxSteps, ShouldEqual, 250)
			So(cfg.Layout, ShouldResemble, []string{"oo+", "oW-"})

			tick, err := cfg.TickInterval()
			So(err, ShouldBeNil)
			So(tick, ShouldEqual, 50*time.Millisecond)
		})

		Convey("The layout builds a grid", func() {
			grid, err := cfg.Grid()
			So(err, ShouldBeNil)
			So(grid.Rows(), ShouldEqual, 2)
			So(grid.Cols(), ShouldEqual, 3)
			So(grid.At(1, 1).Type, ShouldEqual, WALL)
		})

		Convey("A session can be built from it", func() {
			session, err := NewSession(cfg)
			So(err, ShouldBeNil)
			snap := session.Snapshot()
			So(snap.Algorithm, ShouldEqual, POLICY_ITERATION)
			So(snap.Gamma, ShouldEqual, 0.95)
		})
	})

	Convey("Given a sparse config file", t, func() {
		cfg, err := FromYaml(writeConfig(t, "kind: mdp\ndef:\n  algorithm: VI\n"))
		So(err, ShouldBeNil)

		Convey("Unset fields fall back to defaults", func() {
			So(cfg.Gamma(), ShouldEqual, DEFAULT_GAMMA)
			So(cfg.Epsilon(), ShouldEqual, DEFAULT_EPSILON)
			tick, err := cfg.TickInterval()
			So(err, ShouldBeNil)
			So(tick, ShouldEqual, DEFAULT_TICK)

			grid, err := cfg.Grid()
			So(err, ShouldBeNil)
			So(grid.Equal(NewInitialGrid()), ShouldBeTrue)
		})
	})

	Convey("Given bad input", t, func() {
		Convey("A missing file fails", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("A bad tick interval fails to parse", func() {
			cfg := DefaultConfig()
			cfg.Tick = "soon"
			_, err := cfg.TickInterval()
			So(err, ShouldNotBeNil)
		})

		Convey("A zero or negative tick interval is rejected", func() {
			for _, tick := range []string{"0s", "-1s"} {
				cfg := DefaultConfig()
				cfg.Tick = tick
				_, err := cfg.TickInterval()
				So(errors.Is(err, ErrTickInterval), ShouldBeTrue)
			}
		})

		Convey("A ragged layout fails to build", func() {
			cfg := DefaultConfig()
			cfg.Layout = []string{"ooo", "oo"}
			_, err := cfg.Grid()
			So(err, ShouldNotBeNil)
		})
	})
}
