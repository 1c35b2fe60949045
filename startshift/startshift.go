// Package startshift implements the Start-Shift Selector (§4.7): it
// decides how far along the stored path the next plan should start,
// balancing path reuse against responsiveness to divergence and upcoming
// collisions.
package startshift

import (
	"math"

	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// Config is the subset of §6 configuration keys Select needs.
type Config struct {
	KeepPathRatio float64 // KEEP_PATH_RATIO, in (0,1]
	InterpRes     float64 // INTERP_RES, m
	Wheelbase     float64 // vehicle wheelbase, m
}

// Inputs bundles the per-tick values Select needs beyond the stored path.
type Inputs struct {
	EgoIndex         int
	DivergentDist    float64 // +Inf if none
	CollIdx          int     // -1 if none
	DistToEndOfPath  float64
}

// Select implements §4.7. If path is nil or the computed shift index
// is 0, the returned startIndex equals egoIndex and steer is 0 (plan from
// the ego node). Otherwise startIndex = egoIndex + shift_idx and steer is
// derived from the discrete curvature between the two yaw samples at
// INTERP_RES spacing starting at startIndex.
func Select(cfg Config, in Inputs, path *planpath.Path) (startIndex int, startPose planpath.Pose, steer float64) {
	if path == nil {
		return in.EgoIndex, planpath.Pose{}, 0
	}

	divM := math.Inf(1)
	if !math.IsInf(in.DivergentDist, 1) {
		divM = in.DivergentDist * cfg.KeepPathRatio
	}

	collM := math.Inf(1)
	if in.CollIdx != -1 {
		collM = float64(in.CollIdx) * cfg.InterpRes * cfg.KeepPathRatio
	}

	stdM := cfg.KeepPathRatio * in.DistToEndOfPath

	shiftM := math.Min(divM, math.Min(collM, stdM))
	shiftIdx := int(shiftM / cfg.InterpRes)

	remainingInFront := path.Len() - in.EgoIndex
	if shiftIdx > remainingInFront-1 {
		shiftIdx = remainingInFront - 1
	}

	if shiftIdx <= 0 {
		return in.EgoIndex, path.Pose(in.EgoIndex), 0
	}

	startIdx := in.EgoIndex + shiftIdx
	startPose = path.Pose(startIdx)

	steer = 0
	if startIdx+1 < path.Len() {
		dYaw := shortestSignedAngleDiff(path.Yaw[startIdx+1], path.Yaw[startIdx])
		curvature := dYaw / cfg.InterpRes
		steer = math.Atan(curvature * cfg.Wheelbase)
	}

	return startIdx, startPose, steer
}

func shortestSignedAngleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}
