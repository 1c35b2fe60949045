// Package replan implements the Replan Decider (§4.6): a predicate
// over the current planner state that decides whether to replan and why.
// check_new_waypoint is not a pure predicate in the source system (it also
// advances goal_s and to_final_pose), so Decide returns the updated values
// for the caller to store rather than mutating shared state directly.
package replan

import (
	"math"

	"github.com/oakwood-robotics/freespace-planner/state"
)

// Reason names which condition triggered a replan, for logging/metrics.
type Reason int

const (
	// ReasonNone means no replan was triggered.
	ReasonNone Reason = iota
	// ReasonNewWaypoint is check_new_waypoint's own trigger.
	ReasonNewWaypoint
	// ReasonNewGoal is the one-shot new-goal flag.
	ReasonNewGoal
	// ReasonCloseCollision is a collision inside MIN_COLL_DIST.
	ReasonCloseCollision
	// ReasonDivergence is a finite divergent_dist.
	ReasonDivergence
	// ReasonOffPath is a projection distance beyond MAX_DIST4REPLAN.
	ReasonOffPath
)

// Config is the subset of §6 configuration keys the decider needs.
type Config struct {
	WaypointType      state.WaypointType
	MaxDist4Waypoints float64 // MAX_DIST4WAYPOINTS
	WaypointDistF     float64 // WAYPOINT_DIST_F
	MinCollDist       float64 // MIN_COLL_DIST
	MaxDist4Replan    float64 // MAX_DIST4REPLAN
}

// Inputs bundles the per-tick values Decide needs.
type Inputs struct {
	HasActiveGoal bool
	EgoState      state.Ego
	GoalState     state.Goal
	ToFinalPose   bool

	DistanceToGoal              float64
	DistanceSinceLastReplanning float64
	DistToEndOfPath             float64

	NewGoal bool // goalmanager.TakeNewGoal(), already consumed by the caller

	PathState       state.Path
	CollIdx         int     // -1 if none
	DistToCollision float64 // polyline length from ego index to CollIdx, meters

	DivergentDist float64 // +Inf if none

	ProjectionDistance float64 // distance from projection to stored path
}

// Outputs carries the side effects check_new_waypoint has on shared state,
// plus the stored-path invalidation signal close-collision and off-path
// both carry.
type Outputs struct {
	Replan            bool
	Reason            Reason
	GoalState         state.Goal
	ToFinalPose       bool
	InvalidateStored  bool
}

// Decide implements §4.6. It returns false immediately if there is no
// active goal or ego_s == GOAL; otherwise it evaluates, in order,
// check_new_waypoint, the new-goal flag, close collision, divergence, and
// off-path, returning on the first trigger (the order matches the
// source's check sequence and only matters for which Reason is reported,
// since GoalState/ToFinalPose are advanced regardless by check_new_waypoint).
func Decide(cfg Config, in Inputs) Outputs {
	goalState := in.GoalState
	toFinalPose := in.ToFinalPose

	newWaypoint := checkNewWaypoint(cfg, in, &goalState, &toFinalPose)

	out := Outputs{GoalState: goalState, ToFinalPose: toFinalPose}

	if !in.HasActiveGoal || in.EgoState == state.AtGoal {
		return out
	}

	switch {
	case newWaypoint:
		out.Replan = true
		out.Reason = ReasonNewWaypoint
	case in.NewGoal:
		out.Replan = true
		out.Reason = ReasonNewGoal
	case in.PathState == state.Collides && in.CollIdx >= 0 && in.DistToCollision < cfg.MinCollDist:
		out.Replan = true
		out.Reason = ReasonCloseCollision
		out.InvalidateStored = true
	case !math.IsInf(in.DivergentDist, 1):
		out.Replan = true
		out.Reason = ReasonDivergence
	case in.ProjectionDistance > cfg.MaxDist4Replan:
		out.Replan = true
		out.Reason = ReasonOffPath
		out.InvalidateStored = true
	}

	return out
}

// checkNewWaypoint implements §4.6's check_new_waypoint, mutating
// goalState and toFinalPose in place and returning whether it triggers a
// replan.
func checkNewWaypoint(cfg Config, in Inputs, goalState *state.Goal, toFinalPose *bool) bool {
	triggered := false

	if cfg.WaypointType == state.WaypointNone {
		*toFinalPose = true
		*goalState = state.ExactGoal
		return false
	}

	switch cfg.WaypointType {
	case state.WaypointCoarsePath:
		if in.DistanceToGoal < cfg.MaxDist4Waypoints && *goalState == state.ApproxGoal {
			*goalState = state.ExactGoal
			triggered = true
		}
	case state.WaypointHeuristicReduced:
		if in.DistanceToGoal < cfg.MaxDist4Waypoints && !*toFinalPose {
			*goalState = state.ExactGoal
			*toFinalPose = true
			triggered = true
		}
	}

	if in.DistanceToGoal > cfg.MaxDist4Waypoints {
		*toFinalPose = false
		threshold := cfg.WaypointDistF
		if in.DistToEndOfPath/2 < threshold {
			threshold = in.DistToEndOfPath / 2
		}
		if in.DistanceSinceLastReplanning > threshold {
			triggered = true
		}
	}

	return triggered
}
