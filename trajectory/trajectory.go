// Package trajectory implements the Trajectory Tracker (§4.4): it
// projects ego onto the active path, advances the index monotonically,
// accumulates distance driven since the last replan, and maintains a
// bounded history of driven global poses.
package trajectory

import (
	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/geometry"
	"github.com/oakwood-robotics/freespace-planner/planpath"
	"github.com/oakwood-robotics/freespace-planner/ringbuffer"
)

// historyCapacity bounds DrivenHistory at 1000 entries (§9).
const historyCapacity = 1000

// Config is the subset of §6 configuration keys is_goal_reached needs.
type Config struct {
	GoalDist  float64 // GOAL_DIST, m
	GoalAngle float64 // GOAL_ANGLE, rad
	MinRemEl  int     // MIN_REM_EL, samples
}

// Tracker owns index_on_path, distance_since_last_replanning, and
// DrivenHistory.
type Tracker struct {
	hybrid collaborators.HybridPlanner
	cfg    Config

	indexOnPath                 int
	distanceSinceLastReplanning float64
	driven                      *ringbuffer.Buffer[planpath.Pose]
}

// New builds a Trajectory Tracker.
func New(hybrid collaborators.HybridPlanner, cfg Config) *Tracker {
	return &Tracker{hybrid: hybrid, cfg: cfg, driven: ringbuffer.New[planpath.Pose](historyCapacity)}
}

// IndexOnPath returns the current projection index.
func (t *Tracker) IndexOnPath() int { return t.indexOnPath }

// DistanceSinceLastReplanning returns the accumulated driven distance since
// the last replan-triggered reset.
func (t *Tracker) DistanceSinceLastReplanning() float64 { return t.distanceSinceLastReplanning }

// ResetDistanceSinceLastReplanning zeroes the accumulator (§4.8 step 11.a).
func (t *Tracker) ResetDistanceSinceLastReplanning() { t.distanceSinceLastReplanning = 0 }

// ResetIndex zeroes index_on_path (§4.8 step 11.h, run when a path is
// replaced).
func (t *Tracker) ResetIndex() { t.indexOnPath = 0 }

// DrivenHistory returns the bounded ring buffer of global driven poses.
func (t *Tracker) DrivenHistory() *ringbuffer.Buffer[planpath.Pose] { return t.driven }

// Analyze implements §4.4's analyze(): projects egoPatch onto path
// starting the search at index_on_path, advances index_on_path, appends the
// newly driven segment (transformed to global via origin) into
// DrivenHistory, accumulates distance_since_last_replanning, and returns the
// remaining polyline length from the new index to the end of path along
// with the projection's minimum distance to the path (the off-path signal
// the Replan Decider's ReasonOffPath check uses).
func (t *Tracker) Analyze(path *planpath.Path, egoPatch planpath.Pose, origin planpath.Point) (distToEnd, projectionDist float64) {
	if path == nil {
		return 0, 0
	}

	_, newIndex, minDist := t.hybrid.ProjectEgo(egoPatch, path, t.indexOnPath)
	if newIndex < t.indexOnPath {
		newIndex = t.indexOnPath
	}

	segment := path.Slice(t.indexOnPath, newIndex)
	for i := 0; i < segment.Len(); i++ {
		t.driven.Push(geometry.ToGlobal(segment.Pose(i), origin))
	}
	end := newIndex + 1
	if end > path.Len() {
		end = path.Len()
	}
	t.distanceSinceLastReplanning += geometry.PolylineLength(path.X[t.indexOnPath:end], path.Y[t.indexOnPath:end])

	t.indexOnPath = newIndex
	return geometry.PolylineLength(path.X[newIndex:], path.Y[newIndex:]), minDist
}

// RemainingSamples returns the number of samples from index_on_path to the
// end of path, inclusive of the current sample (0 for a nil path or an
// index past the last sample).
func (t *Tracker) RemainingSamples(path *planpath.Path) int {
	remaining := path.Len() - t.indexOnPath
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsGoalReached implements the tracker's is_goal_reached(): true iff ego is
// within GOAL_DIST (infinity norm) and GOAL_ANGLE of the active goal, with
// no more than MIN_REM_EL samples remaining ahead on the active path.
func (t *Tracker) IsGoalReached(egoPatch planpath.Pose, activePatch *planpath.Pose, path *planpath.Path) bool {
	if activePatch == nil {
		return false
	}

	dx := egoPatch.X - activePatch.X
	dy := egoPatch.Y - activePatch.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	infNorm := dx
	if dy > infNorm {
		infNorm = dy
	}

	return infNorm <= t.cfg.GoalDist &&
		geometry.AnglesEqual(egoPatch.Yaw, activePatch.Yaw, t.cfg.GoalAngle) &&
		t.RemainingSamples(path) <= t.cfg.MinRemEl
}
