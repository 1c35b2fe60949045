// Package geometry provides the pure coordinate-transform and metric
// helpers shared by every planning-cycle component (§4.1): global
// <-> patch-frame translation, metric <-> grid rounding, polyline
// length, and modulo-2π angle equality.
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// ToPatch translates pose from the global frame into the patch frame
// defined by origin: subtract origin from (x, y); yaw is unchanged.
func ToPatch(pose planpath.Pose, origin planpath.Point) planpath.Pose {
	v := r2.Point{X: pose.X, Y: pose.Y}.Sub(origin.Vector())
	return planpath.Pose{X: v.X, Y: v.Y, Yaw: pose.Yaw}
}

// ToGlobal translates posePatch from the patch frame defined by origin
// back into the global frame.
func ToGlobal(posePatch planpath.Pose, origin planpath.Point) planpath.Pose {
	v := r2.Point{X: posePatch.X, Y: posePatch.Y}.Add(origin.Vector())
	return planpath.Pose{X: v.X, Y: v.Y, Yaw: posePatch.Yaw}
}

// ToPatchPoint translates a metric Point from the global frame into the
// patch frame.
func ToPatchPoint(p, origin planpath.Point) planpath.Point {
	return planpath.PointFromVector(p.Vector().Sub(origin.Vector()))
}

// ToGlobalPoint translates a metric Point from the patch frame back into
// the global frame.
func ToGlobalPoint(pPatch, origin planpath.Point) planpath.Point {
	return planpath.PointFromVector(pPatch.Vector().Add(origin.Vector()))
}

// MetricToGridRound rounds a metric distance to the nearest integer
// number of cells at the given grid resolution (GM_RES/PLANNER_RES).
func MetricToGridRound(metric, resolution float64) int {
	return int(math.Round(metric / resolution))
}

// PolylineLength returns the sum of Euclidean segment lengths through the
// points (xs[i], ys[i]); 0 if fewer than 2 points. If the slices differ in
// length, only the first min(len(xs), len(ys)) points are used.
func PolylineLength(xs, ys []float64) float64 {
	n := len(xs)
	if n > len(ys) {
		n = len(ys)
	}
	if n < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < n; i++ {
		dx := xs[i] - xs[i-1]
		dy := ys[i] - ys[i-1]
		total += math.Hypot(dx, dy)
	}
	return total
}

// IndexPolylineLength returns the polyline length, in grid cells, of an
// integer-indexed lattice path.
func IndexPolylineLength(xs, ys []int) float64 {
	n := len(xs)
	if n > len(ys) {
		n = len(ys)
	}
	if n < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < n; i++ {
		dx := float64(xs[i] - xs[i-1])
		dy := float64(ys[i] - ys[i-1])
		total += math.Hypot(dx, dy)
	}
	return total
}

// AnglesEqual reports whether a and b are equal modulo 2π within the
// absolute tolerance tol, i.e. the shortest signed angular difference in
// [-π, π] has absolute value <= tol.
func AnglesEqual(a, b, tol float64) bool {
	d := shortestSignedAngleDiff(a, b)
	return scalar.EqualWithinAbs(d, 0, tol)
}

func shortestSignedAngleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}
