package planningcycle

import (
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/goalmanager"
	"github.com/oakwood-robotics/freespace-planner/lanegraph"
	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

type fakeNode struct{ ip planpath.IndexPoint }

func (n fakeNode) IndexPoint() planpath.IndexPoint { return n.ip }

type fakeHybrid struct {
	planPath    *planpath.Path
	planErr     error
	projIdx     int
	projDist    float64
	closePose   planpath.Pose
	closeOK     bool
	recalcCount int
}

func (f *fakeHybrid) Initialize(int, planpath.Point, string) error { return nil }
func (f *fakeHybrid) SetSim(bool)                                  {}
func (f *fakeHybrid) Reinit(planpath.Point, int) error             { return nil }
func (f *fakeHybrid) RecalculateEnv(collaborators.Node, collaborators.Node) error {
	f.recalcCount++
	return nil
}
func (f *fakeHybrid) CreateNode(pose planpath.Pose, steer float64) collaborators.Node {
	return fakeNode{ip: planpath.IndexPoint{X: int(pose.X), Y: int(pose.Y)}}
}
func (f *fakeHybrid) ProjectEgo(_ planpath.Pose, _ *planpath.Path, startIndex int) (planpath.Pose, int, float64) {
	idx := f.projIdx
	if idx < startIndex {
		idx = startIndex
	}
	return planpath.Pose{}, idx, f.projDist
}
func (f *fakeHybrid) ValidClosePose(planpath.Pose, planpath.Pose) (planpath.Pose, bool) {
	return f.closePose, f.closeOK
}
func (f *fakeHybrid) Plan(collaborators.Node, collaborators.Node, collaborators.Node, bool, bool) (*planpath.Path, error) {
	return f.planPath, f.planErr
}
func (f *fakeHybrid) ResetLaneGraph()                         {}
func (f *fakeHybrid) AddLanePoint(planpath.Point)              {}
func (f *fakeHybrid) UpdateLaneGraph(planpath.Point, float64) {}

type fakeGrid struct {
	path *planpath.CoarsePath
	ok   bool
}

func (f *fakeGrid) Path(int, int) (*planpath.CoarsePath, bool) { return f.path, f.ok }

type fakeOracle struct {
	collIdx int
}

func (f *fakeOracle) CheckPose(planpath.Pose) bool { return true }
func (f *fakeOracle) PathCollisionIndex(xs, ys, yaws []float64) int { return f.collIdx }
func (f *fakeOracle) InsertMinipatches(collaborators.Minipatches, planpath.Point, bool, bool) {}
func (f *fakeOracle) ProcessSafetyPatch()                                                     {}

type fakeCarto struct{}

func (f *fakeCarto) Cartograph(collaborators.Tile, planpath.IndexPoint, int) {}
func (f *fakeCarto) PassLocalMap(planpath.IndexPoint, int)                  {}
func (f *fakeCarto) LoadPreviousPatch(planpath.Point, planpath.Point)       {}

type fakeVehicle struct {
	pose planpath.Pose
}

func (f *fakeVehicle) Initialize(float64, float64, float64, float64, float64, bool) error { return nil }
func (f *fakeVehicle) SetPose(p planpath.Pose) { f.pose = p }

func straightPath(n int) *planpath.Path {
	p := &planpath.Path{}
	for i := 0; i < n; i++ {
		p.X = append(p.X, float64(i))
		p.Y = append(p.Y, 0)
		p.Yaw = append(p.Yaw, 0)
		p.Direction = append(p.Direction, planpath.Forward)
		p.Type = append(p.Type, planpath.SampleMotionPrimitive)
	}
	return p
}

func testConfig() Config {
	return Config{
		GMDim: 100, GMRes: 0.1, PaddingDist: 1, MaxPatchInsDist: 5,
		MinCollDist: 2.0, EnvUpdateT: 1.0, GoalDist: 0.3, GoalAngle: 0.1, MinRemEl: 2,
		InterpRes: 0.1, PlannerRes: 0.1,
		MaxDist4Waypoints: 1000, WaypointDist: 5, WaypointDistF: 5, MaxDist4Replan: 5,
		DivDistance: 3, KeepPathRatio: 0.5,
		Wheelbase: 2.5,
	}
}

func newTestController(t *testing.T, hybrid *fakeHybrid, grid *fakeGrid, oracle *fakeOracle) (*Controller, *clock.Mock) {
	t.Helper()
	cols := collaborators.Set{
		Hybrid:     hybrid,
		Grid:       grid,
		Collision:  oracle,
		Cartograph: &fakeCarto{},
		Vehicle:    &fakeVehicle{},
	}
	lanes := lanegraph.NewStore("", logging.NewTest(t))
	clk := clock.NewMock()
	ctrl, err := New(testConfig(), cols, lanes, logging.NewTest(t), clk)
	test.That(t, err, test.ShouldBeNil)
	return ctrl, clk
}

func TestSimModeFirstTickRefreshesEnv(t *testing.T) {
	hybrid := &fakeHybrid{}
	grid := &fakeGrid{ok: false}
	cfg := testConfig()
	cfg.IsSim = true
	cols := collaborators.Set{
		Hybrid:     hybrid,
		Grid:       grid,
		Collision:  &fakeOracle{collIdx: -1},
		Cartograph: &fakeCarto{},
		Vehicle:    &fakeVehicle{},
	}
	lanes := lanegraph.NewStore("", logging.NewTest(t))
	ctrl, err := New(cfg, cols, lanes, logging.NewTest(t), clock.NewMock())
	test.That(t, err, test.ShouldBeNil)

	_, _, err = ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hybrid.recalcCount, test.ShouldEqual, 1)
}

func TestFirstTickWithNoGoalReturnsNilPath(t *testing.T) {
	hybrid := &fakeHybrid{}
	grid := &fakeGrid{ok: false}
	ctrl, _ := newTestController(t, hybrid, grid, &fakeOracle{collIdx: -1})

	path, _, err := ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldBeNil)
}

func TestNewGoalTriggersReplanAndReturnsPath(t *testing.T) {
	planned := straightPath(20)
	hybrid := &fakeHybrid{planPath: planned}
	grid := &fakeGrid{ok: false}
	ctrl, _ := newTestController(t, hybrid, grid, &fakeOracle{collIdx: -1})

	msg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	path, pathID, err := ctrl.Tick(planpath.Pose{}, 0, msg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldNotBeNil)
	test.That(t, pathID, test.ShouldEqual, 1)
	test.That(t, path.Len(), test.ShouldEqual, planned.Len())
}

func TestPlannerFailureWithNoStoredPathReturnsErr(t *testing.T) {
	hybrid := &fakeHybrid{planPath: nil}
	grid := &fakeGrid{ok: false}
	ctrl, _ := newTestController(t, hybrid, grid, &fakeOracle{collIdx: -1})

	msg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	_, _, err := ctrl.Tick(planpath.Pose{}, 0, msg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldEqual, ErrPlanUnavailable)
}

func TestNoTriggerKeepsStoredPathAcrossTicks(t *testing.T) {
	planned := straightPath(20)
	hybrid := &fakeHybrid{planPath: planned}
	grid := &fakeGrid{ok: false}
	ctrl, _ := newTestController(t, hybrid, grid, &fakeOracle{collIdx: -1})

	msg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	path, firstID, err := ctrl.Tick(planpath.Pose{}, 0, msg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldNotBeNil)

	// the planner would now fail if asked, but nothing this tick triggers a
	// replan, so Plan is never called and the stored path survives intact.
	hybrid.planPath = nil
	path2, secondID, err := ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path2, test.ShouldNotBeNil)
	test.That(t, secondID, test.ShouldEqual, firstID)
}

func TestGoalRemovalResetsController(t *testing.T) {
	planned := straightPath(20)
	hybrid := &fakeHybrid{planPath: planned}
	grid := &fakeGrid{ok: false}
	ctrl, _ := newTestController(t, hybrid, grid, &fakeOracle{collIdx: -1})

	setMsg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	_, _, err := ctrl.Tick(planpath.Pose{}, 0, setMsg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ctrl.storedPath, test.ShouldNotBeNil)

	removeMsg := goalmanager.Message{Kind: goalmanager.MessageRemove}
	path, _, err := ctrl.Tick(planpath.Pose{}, 0, removeMsg, collaborators.Minipatches{}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldBeNil)
	test.That(t, ctrl.goalMgr.ActiveGlobal(), test.ShouldBeNil)
}

func TestCloseCollisionForcesReplan(t *testing.T) {
	planned := straightPath(20)
	hybrid := &fakeHybrid{planPath: planned}
	grid := &fakeGrid{ok: false}
	oracle := &fakeOracle{collIdx: -1}
	ctrl, _ := newTestController(t, hybrid, grid, oracle)

	setMsg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	_, firstID, err := ctrl.Tick(planpath.Pose{}, 0, setMsg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)

	oracle.collIdx = 1
	hybrid.planPath = straightPath(15)
	_, secondID, err := ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, secondID, test.ShouldNotEqual, firstID)
}

func TestCollisionJustInsideMinCollDistForcesReplan(t *testing.T) {
	planned := straightPath(20)
	hybrid := &fakeHybrid{planPath: planned}
	grid := &fakeGrid{ok: false}
	oracle := &fakeOracle{collIdx: -1}
	ctrl, _ := newTestController(t, hybrid, grid, oracle)

	setMsg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	_, firstID, err := ctrl.Tick(planpath.Pose{}, 0, setMsg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)

	// Collision index 2, samples 1 unit apart: the exclusive arc length up
	// to (but not including) the colliding sample is 1.0, strictly inside
	// the 2.0 MinCollDist configured by testConfig.
	oracle.collIdx = 2
	hybrid.planPath = straightPath(15)
	_, secondID, err := ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, secondID, test.ShouldNotEqual, firstID)
}

func TestCollisionAtExactMinCollDistDoesNotForceReplan(t *testing.T) {
	planned := straightPath(20)
	hybrid := &fakeHybrid{planPath: planned}
	grid := &fakeGrid{ok: false}
	oracle := &fakeOracle{collIdx: -1}
	ctrl, _ := newTestController(t, hybrid, grid, oracle)

	setMsg := goalmanager.Message{Kind: goalmanager.MessageSet, Pose: planpath.Pose{X: 10, Y: 0}}
	_, firstID, err := ctrl.Tick(planpath.Pose{}, 0, setMsg, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)

	// Collision index 3, samples 1 unit apart: the exclusive arc length up
	// to (but not including) the colliding sample is exactly 2.0, equal to
	// (not less than) testConfig's MinCollDist, so no forced replan.
	oracle.collIdx = 3
	hybrid.planPath = straightPath(15)
	_, secondID, err := ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, secondID, test.ShouldEqual, firstID)
}

func TestCycleTimesRecorded(t *testing.T) {
	hybrid := &fakeHybrid{}
	grid := &fakeGrid{ok: false}
	ctrl, _ := newTestController(t, hybrid, grid, &fakeOracle{collIdx: -1})

	_, _, err := ctrl.Tick(planpath.Pose{}, 0, goalmanager.Message{}, collaborators.Minipatches{}, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ctrl.PlanCycleTimes().Len(), test.ShouldEqual, 1)
}
