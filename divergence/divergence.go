// Package divergence implements the Divergence Detector (§4.5): it
// compares a freshly computed coarse path against the previous one and
// reports the arc length, in meters, at which they have drifted apart by
// more than a threshold, or +Inf if they never do.
package divergence

import (
	"math"

	"github.com/oakwood-robotics/freespace-planner/geometry"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// Detect compares newPath against prevPath. divDistance is in grid cells
// (DIV_DISTANCE); plannerRes converts the resulting index-space arc length
// to meters (PLANNER_RES). Returns +Inf if prevPath is empty, no matching
// start index can be found, or the two paths never diverge.
func Detect(newPath, prevPath *planpath.CoarsePath, plannerRes, divDistance float64) float64 {
	if newPath.Len() == 0 || prevPath.Len() == 0 {
		return math.Inf(1)
	}

	first := newPath.At(0)

	matchingIdx := -1
	bestDist := math.Inf(1)
	for i := 0; i < prevPath.Len(); i++ {
		p := prevPath.At(i)
		d := math.Hypot(float64(first.X-p.X), float64(first.Y-p.Y))
		if d < bestDist {
			bestDist = d
			matchingIdx = i
		}
		if d < 1.0 {
			break
		}
	}
	if matchingIdx < 0 {
		return math.Inf(1)
	}

	base := prevPath.At(matchingIdx)
	offsetX := first.X - base.X
	offsetY := first.Y - base.Y

	for i := 0; i < newPath.Len() && i+matchingIdx < prevPath.Len(); i++ {
		n := newPath.At(i)
		p := prevPath.At(i + matchingIdx)
		dx := float64(n.X - offsetX - p.X)
		dy := float64(n.Y - offsetY - p.Y)
		if math.Hypot(dx, dy) > divDistance {
			return geometry.IndexPolylineLength(newPath.X[:i+1], newPath.Y[:i+1]) * plannerRes
		}
	}
	return math.Inf(1)
}
