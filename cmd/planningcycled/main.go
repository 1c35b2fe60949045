// Command planningcycled drives a planningcycle.Controller on a
// fixed-cadence tick loop. It reads its configuration from a JSON file
// (with ${VAR}-style environment substitution) and wires stub
// collaborators suitable for a standalone smoke run; a production
// deployment supplies real HybridPlanner/GridPlanner/CollisionOracle/
// Cartographer/Vehicle implementations in place of the stubs below.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/a8m/envsubst"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/goalmanager"
	"github.com/oakwood-robotics/freespace-planner/lanegraph"
	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/planningcycle"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

func main() {
	configPath := flag.String("config", "", "path to the JSON planning-cycle config")
	flag.Parse()

	logger, err := logging.NewZap()
	if err != nil {
		os.Exit(1)
	}

	if err := run(*configPath, logger); err != nil {
		logger.Errorw("planningcycled exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger logging.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	lanes := lanegraph.NewStore(cfg.LaneGraphPath, logger.Named("lanegraph"))
	if err := lanes.Watch(); err != nil {
		logger.Warnw("lane graph watch unavailable, falling back to load-on-demand", "error", err)
	}
	defer lanes.Close()

	cols := collaborators.Set{
		Hybrid:     &noopHybrid{},
		Grid:       &noopGrid{},
		Collision:  &noopCollision{},
		Cartograph: &noopCartographer{},
		Vehicle:    &noopVehicle{},
	}

	ctrl, err := planningcycle.New(cfg.PlanningCycle, cols, lanes, logger.Named("planningcycle"), clock.New())
	if err != nil {
		return errors.Wrap(err, "constructing planning cycle controller")
	}

	ticker := time.NewTicker(time.Duration(cfg.TickPeriodSeconds * float64(time.Second)))
	defer ticker.Stop()

	started := time.Now()
	for now := range ticker.C {
		timeNow := now.Sub(started).Seconds()
		egoGlobal := planpath.Pose{} // a real deployment reads this from localization.
		path, pathID, err := ctrl.Tick(egoGlobal, 0, goalmanager.Message{}, collaborators.Minipatches{}, timeNow)
		if err != nil {
			logger.Warnw("tick failed", "error", err)
			continue
		}
		logger.Debugw("tick complete", "pathID", pathID, "pathLen", path.Len())
	}
	return nil
}

// fileConfig is the on-disk shape of the config file: the planning-cycle
// tuning knobs plus the small amount of process-level wiring config
// (tick cadence, lane graph path) planningcycle.Config doesn't itself own.
type fileConfig struct {
	PlanningCycle     planningcycle.Config `json:"planning_cycle"`
	TickPeriodSeconds float64              `json:"tick_period_seconds"`
	LaneGraphPath     string               `json:"lane_graph_path"`
}

func loadConfig(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, errors.Wrapf(err, "reading %q", path)
	}

	expanded, err := envsubst.Bytes(raw)
	if err != nil {
		return fileConfig{}, errors.Wrap(err, "expanding environment variables")
	}

	var cfg fileConfig
	if err := json.Unmarshal(expanded, &cfg); err != nil {
		return fileConfig{}, errors.Wrap(err, "parsing config json")
	}
	if cfg.TickPeriodSeconds <= 0 {
		cfg.TickPeriodSeconds = 0.1
	}
	return cfg, nil
}

// The noop* collaborators below keep this binary runnable end to end
// without a real kinematic planner, grid planner, collision oracle,
// cartographer, or vehicle model wired in; swap them for the real
// implementations at deployment time.

type noopHybrid struct{}

func (noopHybrid) Initialize(int, planpath.Point, string) error { return nil }
func (noopHybrid) SetSim(bool)                                  {}
func (noopHybrid) Reinit(planpath.Point, int) error              { return nil }
func (noopHybrid) RecalculateEnv(collaborators.Node, collaborators.Node) error { return nil }
func (noopHybrid) CreateNode(planpath.Pose, float64) collaborators.Node {
	return noopNode{}
}
func (noopHybrid) ProjectEgo(ego planpath.Pose, _ *planpath.Path, startIndex int) (planpath.Pose, int, float64) {
	return ego, startIndex, 0
}
func (noopHybrid) ValidClosePose(_, target planpath.Pose) (planpath.Pose, bool) { return target, false }
func (noopHybrid) Plan(collaborators.Node, collaborators.Node, collaborators.Node, bool, bool) (*planpath.Path, error) {
	return nil, errors.New("no kinematic planner wired")
}
func (noopHybrid) ResetLaneGraph()                        {}
func (noopHybrid) AddLanePoint(planpath.Point)            {}
func (noopHybrid) UpdateLaneGraph(planpath.Point, float64) {}

type noopNode struct{}

func (noopNode) IndexPoint() planpath.IndexPoint { return planpath.IndexPoint{} }

type noopGrid struct{}

func (noopGrid) Path(int, int) (*planpath.CoarsePath, bool) { return nil, false }

type noopCollision struct{}

func (noopCollision) CheckPose(planpath.Pose) bool                 { return true }
func (noopCollision) PathCollisionIndex([]float64, []float64, []float64) int { return -1 }
func (noopCollision) InsertMinipatches(collaborators.Minipatches, planpath.Point, bool, bool) {}
func (noopCollision) ProcessSafetyPatch()                                                    {}

type noopCartographer struct{}

func (noopCartographer) Cartograph(collaborators.Tile, planpath.IndexPoint, int) {}
func (noopCartographer) PassLocalMap(planpath.IndexPoint, int)                  {}
func (noopCartographer) LoadPreviousPatch(planpath.Point, planpath.Point)       {}

type noopVehicle struct{}

func (noopVehicle) Initialize(float64, float64, float64, float64, float64, bool) error { return nil }
func (noopVehicle) SetPose(planpath.Pose)                                              {}
