// Package state holds the small enumerations shared by the Replan
// Decider, Start-Shift Selector, and Planning Cycle Controller (spec
// §4.9's OverallState and §6's WAYPOINT_TYPE), kept separate from
// planningcycle so those lower-level packages can depend on them without
// importing the controller itself.
package state

// Ego is the ego_s field: DRIVING until the goal is reached, then GOAL
// until a new goal is promoted.
type Ego int

const (
	// Driving is the normal ego_s value.
	Driving Ego = iota
	// AtGoal is ego_s after is_goal_reached fires.
	AtGoal
)

// Path is the path_s field, recomputed every tick from the collision check.
type Path int

const (
	// Safe is path_s when no collision was found ahead of the ego index.
	Safe Path = iota
	// Collides is path_s when the collision oracle found a collision ahead.
	Collides
)

// Goal is the goal_s field: whether the controller is currently aiming at
// a coarse-path waypoint (APPROX_GOAL) or the true goal pose (EXACT_GOAL).
type Goal int

const (
	// ApproxGoal means the controller is planning to an intermediate waypoint.
	ApproxGoal Goal = iota
	// ExactGoal means the controller is planning to the true goal pose.
	ExactGoal
)

// Replan is the repl_s field: FORCED until the first successful replan,
// CYCLIC afterward.
type Replan int

const (
	// Forced is the initial repl_s value.
	Forced Replan = iota
	// Cyclic is repl_s after the first successful replan.
	Cyclic
)

// WaypointType selects how check_new_waypoint chooses an intermediate
// target (§6 WAYPOINT_TYPE).
type WaypointType int

const (
	// WaypointNone always plans directly to the final pose.
	WaypointNone WaypointType = iota
	// WaypointCoarsePath extracts a waypoint from the coarse grid path.
	WaypointCoarsePath
	// WaypointHeuristicReduced plans to the final pose once within range,
	// without extracting an explicit coarse-path waypoint.
	WaypointHeuristicReduced
)

// Overall bundles the four orthogonal sub-states of §4.9.
type Overall struct {
	Ego    Ego
	Path   Path
	Goal   Goal
	Replan Replan
}

// Reset restores all four fields to their initial values, as done by
// reset_data() and promote_received_to_active().
func (o *Overall) Reset() {
	*o = Overall{Ego: Driving, Path: Safe, Goal: ApproxGoal, Replan: Forced}
}
