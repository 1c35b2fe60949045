// Package planningcycle implements the Planning Cycle Controller (spec
// §4.8) and the State Model (§4.9): the top-level per-tick
// orchestration that composes the Patch Manager, Goal Manager, Trajectory
// Tracker, Divergence Detector, Replan Decider, and Start-Shift Selector,
// invokes the external collaborators, and returns the global-frame path.
package planningcycle

import (
	"math"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/divergence"
	"github.com/oakwood-robotics/freespace-planner/geometry"
	"github.com/oakwood-robotics/freespace-planner/goalmanager"
	"github.com/oakwood-robotics/freespace-planner/lanegraph"
	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/patch"
	"github.com/oakwood-robotics/freespace-planner/planpath"
	"github.com/oakwood-robotics/freespace-planner/replan"
	"github.com/oakwood-robotics/freespace-planner/ringbuffer"
	"github.com/oakwood-robotics/freespace-planner/startshift"
	"github.com/oakwood-robotics/freespace-planner/state"
	"github.com/oakwood-robotics/freespace-planner/trajectory"
)

const cycleTimeCapacity = 1000

// ErrConfigInvalid is returned by Config.Validate (and thus New) when a
// configuration precondition is violated. Fatal at construction.
var ErrConfigInvalid = errors.New("invalid planning cycle configuration")

// ErrPlanUnavailable is returned by Tick when the kinematic planner
// returned no path and no stored path exists to fall back to.
var ErrPlanUnavailable = errors.New("no plan available")

// Config bundles every §6 configuration key the controller and its
// sub-components need, read once at construction.
type Config struct {
	GMDim           int     // GM_DIM, cells
	GMRes           float64 // GM_RES, m/cell
	PaddingDist     float64 // PADDING_DIST, m
	MaxPatchInsDist float64 // MAX_PATCH_INS_DIST, m

	MinCollDist float64 // MIN_COLL_DIST, m
	EnvUpdateT  float64 // ENV_UPDATE_T, s
	GoalDist    float64 // GOAL_DIST, m
	GoalAngle   float64 // GOAL_ANGLE, rad
	MinRemEl    int     // MIN_REM_EL, samples

	InterpRes  float64 // INTERP_RES, m
	PlannerRes float64 // PLANNER_RES, m

	MaxDist4Waypoints float64           // MAX_DIST4WAYPOINTS, m
	WaypointDist      float64           // WAYPOINT_DIST, m
	WaypointType      state.WaypointType // WAYPOINT_TYPE
	WaypointDistF     float64           // WAYPOINT_DIST_F, m
	MaxDist4Replan    float64           // MAX_DIST4REPLAN, m
	DivDistance       float64           // DIV_DISTANCE, grid cells
	KeepPathRatio     float64           // KEEP_PATH_RATIO, (0,1]
	MaxDist2Patch     float64           // MAX_DIST2PATCH, m (forwarded to the collision oracle's own construction; not read by the controller)

	IsSim       bool
	Wheelbase   float64
	ResourceDir string
}

// Validate enforces §6's precondition: MAX_DIST4WAYPOINTS >=
// WAYPOINT_DIST.
func (c Config) Validate() error {
	if c.MaxDist4Waypoints < c.WaypointDist {
		return errors.Wrap(ErrConfigInvalid, "MAX_DIST4WAYPOINTS must be >= WAYPOINT_DIST")
	}
	return nil
}

func (c Config) patchConfig() patch.Config {
	return patch.Config{GMDim: c.GMDim, GMRes: c.GMRes, PaddingDist: c.PaddingDist, MaxPatchInsDist: c.MaxPatchInsDist}
}

func (c Config) trajectoryConfig() trajectory.Config {
	return trajectory.Config{GoalDist: c.GoalDist, GoalAngle: c.GoalAngle, MinRemEl: c.MinRemEl}
}

func (c Config) replanConfig() replan.Config {
	return replan.Config{
		WaypointType:      c.WaypointType,
		MaxDist4Waypoints: c.MaxDist4Waypoints,
		WaypointDistF:     c.WaypointDistF,
		MinCollDist:       c.MinCollDist,
		MaxDist4Replan:    c.MaxDist4Replan,
	}
}

func (c Config) startShiftConfig() startshift.Config {
	return startshift.Config{KeepPathRatio: c.KeepPathRatio, InterpRes: c.InterpRes, Wheelbase: c.Wheelbase}
}

// Controller is the Planning Cycle Controller.
type Controller struct {
	cfg    Config
	cols   collaborators.Set
	logger logging.Logger
	clock  clock.Clock

	patchMgr *patch.Manager
	goalMgr  *goalmanager.Manager
	tracker  *trajectory.Tracker

	overall     state.Overall
	toFinalPose bool

	storedPath       *planpath.Path
	storedCoarsePath *planpath.CoarsePath
	divergentDist    float64
	distanceToGoal   float64

	pathID          int
	tickIndex       int
	firstTick       bool
	lastEnvCalcTime float64
	timeGoalReached float64

	planCycleTimes   *ringbuffer.Buffer[float64]
	hybridCycleTimes *ringbuffer.Buffer[float64]
}

// New constructs a Planning Cycle Controller. It sets the hybrid planner's
// simulation mode from cfg.IsSim and returns ErrConfigInvalid if cfg fails
// Config.Validate. It does not call Initialize on the hybrid planner or the
// vehicle collaborator; those arrive already initialized.
func New(cfg Config, cols collaborators.Set, lanes *lanegraph.Store, logger logging.Logger, clk clock.Clock) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cols.Hybrid.SetSim(cfg.IsSim)

	c := &Controller{
		cfg:              cfg,
		cols:             cols,
		logger:           logger,
		clock:            clk,
		patchMgr:         patch.NewManager(cfg.patchConfig(), cols, lanes, logger.Named("patch"), cfg.IsSim),
		goalMgr:          goalmanager.New(cols.Hybrid, cols.Collision, logger.Named("goal")),
		tracker:          trajectory.New(cols.Hybrid, cfg.trajectoryConfig()),
		divergentDist:    math.Inf(1),
		firstTick:        true,
		planCycleTimes:   ringbuffer.New[float64](cycleTimeCapacity),
		hybridCycleTimes: ringbuffer.New[float64](cycleTimeCapacity),
	}
	c.overall.Reset()
	return c, nil
}

// PathID returns the current path identifier.
func (c *Controller) PathID() int { return c.pathID }

// PlanCycleTimes returns the bounded history of per-tick wall-clock
// durations.
func (c *Controller) PlanCycleTimes() *ringbuffer.Buffer[float64] { return c.planCycleTimes }

// HybridCycleTimes returns the bounded history of hybrid-planner call
// durations.
func (c *Controller) HybridCycleTimes() *ringbuffer.Buffer[float64] { return c.hybridCycleTimes }

// Tick implements §4.8's do_planning(): one per-tick call, returning
// the current global-frame path (nil if none exists) and its path_id.
func (c *Controller) Tick(
	egoGlobal planpath.Pose,
	egoVelocity float64,
	goalMsg goalmanager.Message,
	minipatches collaborators.Minipatches,
	timeNow float64,
) (*planpath.Path, int, error) {
	start := c.clock.Now()

	// 1. persist inputs
	c.cols.Vehicle.SetPose(egoGlobal)

	// 2. goal manager parse_message
	c.goalMgr.ParseMessage(goalMsg)
	if goalMsg.Kind == goalmanager.MessageRemove {
		c.resetAroundEgo()
	}

	// 3. coordinate services: refresh *_patch from *_global
	origin := c.currentOrigin()
	c.goalMgr.RefreshPatchCoords(origin)
	egoPatch := geometry.ToPatch(egoGlobal, origin)

	// 4. patch manager maybe_rebuild
	var receivedGlobalPoint *planpath.Point
	if rg := c.goalMgr.ReceivedGlobal(); rg != nil {
		p := rg.Point()
		receivedGlobalPoint = &p
	}
	rebuilt, err := c.patchMgr.MaybeRebuild(egoGlobal.Point(), receivedGlobalPoint, minipatches)
	if err != nil {
		return c.storedPath, c.pathID, errors.Wrap(err, "patch rebuild")
	}
	if rebuilt {
		origin = c.currentOrigin()
		c.goalMgr.RefreshPatchCoords(origin)
		egoPatch = geometry.ToPatch(egoGlobal, origin)
	}

	// 5. insert nearest minipatches
	c.insertMinipatches(minipatches, egoGlobal.Point(), egoPatch, true /* onlyNearest */, true /* onlyNew */)

	// 6. goal manager validate; promote received -> active
	if _, goalErr := c.goalMgr.Validate(egoPatch); goalErr != nil {
		c.logger.Warnw("goal validation dropped a goal", "error", goalErr)
	}
	newGoal := false
	if c.goalMgr.ShouldPromote() {
		c.goalMgr.PromoteReceivedToActive()
		c.promoteSideEffects()
		newGoal = true
	}
	newGoal = c.goalMgr.TakeNewGoal() || newGoal

	// 7. trajectory tracker analyze
	distToEndOfPath, projectionDist := c.tracker.Analyze(c.storedPath, egoPatch, origin)

	// 8. construct ego_node and global_goal_node
	egoNode := c.cols.Hybrid.CreateNode(egoPatch, 0)
	globalGoalNode := egoNode
	if activePatch := c.goalMgr.ActivePatch(); activePatch != nil {
		globalGoalNode = c.cols.Hybrid.CreateNode(*activePatch, 0)
	}

	// 9. environment refresh (throttled)
	envRefreshed := false
	if c.shouldRefreshEnv(newGoal, timeNow) {
		c.refreshEnv(egoGlobal.Point(), egoPatch, globalGoalNode, egoNode, minipatches, timeNow)
		envRefreshed = true
	}

	// 10. collision check stored path from ego index onward
	collIdx, distToCollision := c.checkCollision()

	// 11. replan decider
	decOut := replan.Decide(c.cfg.replanConfig(), replan.Inputs{
		HasActiveGoal:               c.goalMgr.ActiveGlobal() != nil,
		EgoState:                    c.overall.Ego,
		GoalState:                   c.overall.Goal,
		ToFinalPose:                 c.toFinalPose,
		DistanceToGoal:              c.distanceToGoal,
		DistanceSinceLastReplanning: c.tracker.DistanceSinceLastReplanning(),
		DistToEndOfPath:             distToEndOfPath,
		NewGoal:                     newGoal,
		PathState:                   c.overall.Path,
		CollIdx:                     collIdx,
		DistToCollision:             distToCollision,
		DivergentDist:               c.divergentDist,
		ProjectionDistance:          projectionDist,
	})
	c.overall.Goal = decOut.GoalState
	c.toFinalPose = decOut.ToFinalPose
	if decOut.InvalidateStored {
		c.storedPath = nil
	}

	if decOut.Replan {
		c.tracker.ResetDistanceSinceLastReplanning()

		if !envRefreshed {
			c.refreshEnv(egoGlobal.Point(), egoPatch, globalGoalNode, egoNode, minipatches, timeNow)
		}

		if err := c.replanOnce(egoNode, globalGoalNode, distToEndOfPath, collIdx); err != nil {
			return c.storedPath, c.pathID, err
		}
	}

	// 12. goal reached
	if c.tracker.IsGoalReached(egoPatch, c.goalMgr.ActivePatch(), c.storedPath) {
		c.logger.Infow("goal reached")
		c.resetAroundEgo()
		c.timeGoalReached = timeNow
	}

	// 13. cycle-time bookkeeping
	c.planCycleTimes.Push(c.clock.Since(start).Seconds())
	c.tickIndex++

	var pathGlobal *planpath.Path
	if c.storedPath != nil {
		origin = c.currentOrigin()
		pathGlobal = c.storedPath.Slice(0, c.storedPath.Len())
		for i := range pathGlobal.X {
			pathGlobal.X[i] += origin.X
			pathGlobal.Y[i] += origin.Y
		}
	}
	return pathGlobal, c.pathID, nil
}

func (c *Controller) currentOrigin() planpath.Point {
	if cur := c.patchMgr.Current(); cur != nil {
		return cur.OriginGlobal
	}
	return planpath.Point{}
}

// promoteSideEffects applies promote_received_to_active's reset of
// OverallState and goal_s per WAYPOINT_TYPE (§4.3, §4.6).
func (c *Controller) promoteSideEffects() {
	c.storedPath = nil
	c.storedCoarsePath = nil
	c.divergentDist = math.Inf(1)
	c.tracker.ResetIndex()
	c.tracker.ResetDistanceSinceLastReplanning()
	c.overall.Reset()
	c.overall.Ego = state.Driving
	if c.cfg.WaypointType == state.WaypointHeuristicReduced {
		c.overall.Goal = state.ExactGoal
	}
	// to_final_pose is deliberately left untouched here: it is only ever
	// advanced by the Replan Decider's check_new_waypoint, which runs in
	// step 11 of this same tick and corrects it (to false) once
	// distance_to_goal exceeds MAX_DIST4WAYPOINTS for the new goal.
}

// resetAroundEgo implements reset_data, shared by goal removal (step 2) and
// goal-reached handling (step 12): it drops all goal and path state, sets
// ego_s = GOAL, and requests an unconditional patch rebuild, which the
// Patch Manager performs at its next MaybeRebuild call.
func (c *Controller) resetAroundEgo() {
	c.goalMgr.ResetData()
	c.storedPath = nil
	c.storedCoarsePath = nil
	c.divergentDist = math.Inf(1)
	c.tracker.ResetIndex()
	c.tracker.ResetDistanceSinceLastReplanning()
	c.overall.Reset()
	c.overall.Ego = state.AtGoal
	c.patchMgr.RequestReset()
}

func (c *Controller) shouldRefreshEnv(newGoal bool, timeNow float64) bool {
	if c.cfg.IsSim {
		return c.tickIndex%10 == 0
	}
	if c.firstTick {
		return true
	}
	if newGoal {
		return true
	}
	return timeNow-c.lastEnvCalcTime > c.cfg.EnvUpdateT
}

// refreshEnv implements §4.8 step 9: it inserts all minipatches,
// recalculates the environment, fetches a fresh coarse path, runs the
// Divergence Detector, and recomputes distance_to_goal.
func (c *Controller) refreshEnv(egoGlobal planpath.Point, egoPatch planpath.Pose, globalGoalNode, egoNode collaborators.Node, minipatches collaborators.Minipatches, timeNow float64) {
	c.firstTick = false
	c.lastEnvCalcTime = timeNow

	c.insertMinipatches(minipatches, egoGlobal, egoPatch, false /* onlyNearest */, false /* onlyNew */)

	hybridStart := c.clock.Now()
	if err := c.cols.Hybrid.RecalculateEnv(globalGoalNode, egoNode); err != nil {
		c.logger.Warnw("recalculate_env failed", "error", err)
	}
	c.hybridCycleTimes.Push(c.clock.Since(hybridStart).Seconds())

	egoXIndex := geometry.MetricToGridRound(egoPatch.X, c.cfg.PlannerRes)
	egoYIndex := geometry.MetricToGridRound(egoPatch.Y, c.cfg.PlannerRes)

	coarse, ok := c.cols.Grid.Path(egoXIndex, egoYIndex)
	if !ok || coarse == nil {
		c.logger.Warnw("coarse path unavailable, keeping previous")
	} else {
		c.divergentDist = divergence.Detect(coarse, c.storedCoarsePath, c.cfg.PlannerRes, c.cfg.DivDistance)
		c.storedCoarsePath = coarse
	}

	if c.storedCoarsePath != nil {
		c.distanceToGoal = geometry.IndexPolylineLength(c.storedCoarsePath.X, c.storedCoarsePath.Y) * c.cfg.PlannerRes
	}
}

// insertMinipatches dispatches a non-empty Minipatches value by its tag
// (§9): a real-mode tile map goes to the collision oracle directly, while a
// sim-mode single measurement tile is fused in by the cartographer before
// the safety patch is reprocessed.
func (c *Controller) insertMinipatches(minipatches collaborators.Minipatches, egoGlobal planpath.Point, egoPatch planpath.Pose, onlyNearest, onlyNew bool) {
	if minipatches.IsEmpty() {
		return
	}

	if _, ok := minipatches.Map(); ok {
		c.cols.Collision.InsertMinipatches(minipatches, egoGlobal, onlyNearest, onlyNew)
	} else if tile, ok := minipatches.Single(); ok {
		originGrid := planpath.IndexPoint{
			X: geometry.MetricToGridRound(egoPatch.X, c.cfg.GMRes),
			Y: geometry.MetricToGridRound(egoPatch.Y, c.cfg.GMRes),
		}
		c.cols.Cartograph.Cartograph(tile, originGrid, c.cfg.GMDim)
		c.cols.Cartograph.PassLocalMap(originGrid, c.cfg.GMDim)
	}

	c.cols.Collision.ProcessSafetyPatch()
}

// checkCollision implements §4.8 step 10.
func (c *Controller) checkCollision() (collIdx int, distToCollision float64) {
	collIdx = -1
	distToCollision = math.Inf(1)

	if c.storedPath == nil {
		c.overall.Path = state.Safe
		return collIdx, distToCollision
	}

	idx := c.tracker.IndexOnPath()
	xs := c.storedPath.X[idx:]
	ys := c.storedPath.Y[idx:]
	yaws := c.storedPath.Yaw[idx:]

	rel := c.cols.Collision.PathCollisionIndex(xs, ys, yaws)
	if rel < 0 {
		c.overall.Path = state.Safe
		return collIdx, distToCollision
	}

	c.overall.Path = state.Collides
	collIdx = rel
	distToCollision = geometry.PolylineLength(xs[:rel], ys[:rel])
	return collIdx, distToCollision
}

// replanOnce implements §4.8 step 11.c-h.
func (c *Controller) replanOnce(egoNode, globalGoalNode collaborators.Node, distToEndOfPath float64, collIdx int) error {
	currentGoalNode := globalGoalNode
	if c.cfg.WaypointType == state.WaypointCoarsePath && c.distanceToGoal > c.cfg.MaxDist4Waypoints {
		currentGoalNode = c.waypointFromCoarsePath()
	}

	egoIndex := c.tracker.IndexOnPath()
	startIdx, startPose, steer := startshift.Select(c.cfg.startShiftConfig(), startshift.Inputs{
		EgoIndex:        egoIndex,
		DivergentDist:   c.divergentDist,
		CollIdx:         collIdx,
		DistToEndOfPath: distToEndOfPath,
	}, c.storedPath)

	planStart := egoNode
	if c.storedPath != nil && startIdx != egoIndex {
		planStart = c.cols.Hybrid.CreateNode(startPose, steer)
	}

	doAnalytic := c.overall.Goal == state.ExactGoal

	hybridStart := c.clock.Now()
	newPath, err := c.cols.Hybrid.Plan(egoNode, planStart, currentGoalNode, c.toFinalPose, doAnalytic)
	c.hybridCycleTimes.Push(c.clock.Since(hybridStart).Seconds())
	if err != nil {
		c.logger.Warnw("plan failed", "error", err)
	}

	if newPath == nil {
		if c.storedPath == nil {
			return ErrPlanUnavailable
		}
		c.logger.Warnw("planner returned no path, keeping stored path")
		return nil
	}

	if c.storedPath == nil {
		c.storedPath = newPath
	} else {
		prefix := c.storedPath.Slice(egoIndex, startIdx)
		ratio := 0.0
		if c.storedPath.Len() > 0 {
			ratio = float64(prefix.Len()) / float64(c.storedPath.Len())
		}
		spliced := prefix.Append(newPath)
		spliced.Cost = c.storedPath.Cost*ratio + newPath.Cost
		c.storedPath = spliced
	}

	c.tracker.ResetIndex()
	c.pathID = c.tickIndex
	c.overall.Replan = state.Cyclic
	return nil
}

// waypointFromCoarsePath implements §4.8 step 11.c's waypoint
// extraction: the coarse-path sample at round(WAYPOINT_DIST / PLANNER_RES),
// clamped to the last sample, with yaw from the preceding sample.
func (c *Controller) waypointFromCoarsePath() collaborators.Node {
	idxWay := geometry.MetricToGridRound(c.cfg.WaypointDist, c.cfg.PlannerRes)
	if idxWay >= c.storedCoarsePath.Len() {
		idxWay = c.storedCoarsePath.Len() - 1
	}
	if idxWay < 0 {
		idxWay = 0
	}

	p := c.storedCoarsePath.At(idxWay)
	yaw := 0.0
	if idxWay > 0 {
		prev := c.storedCoarsePath.At(idxWay - 1)
		yaw = math.Atan2(float64(p.Y-prev.Y), float64(p.X-prev.X))
	}

	pose := planpath.Pose{X: float64(p.X) * c.cfg.PlannerRes, Y: float64(p.Y) * c.cfg.PlannerRes, Yaw: yaw}
	return c.cols.Hybrid.CreateNode(pose, 0)
}
