// Package planpath holds the value types shared by every planning-cycle
// component: poses, points, the interpolated kinematic Path, the coarse
// grid CoarsePath, and the working Patch. None of these types carry
// behavior beyond simple invariant-preserving constructors; the
// components that mutate them live in their own packages.
package planpath

import (
	"math"

	"github.com/golang/geo/r2"
)

// Direction is the drive direction of a Path sample.
type Direction int

const (
	// Forward is a forward-driving sample.
	Forward Direction = iota
	// Reverse is a reverse-driving sample.
	Reverse
)

// SampleType distinguishes how a Path sample was produced, mirroring the
// motion primitive families the out-of-scope kinematic planner expands.
type SampleType int

const (
	// SampleMotionPrimitive is an ordinary expanded motion-primitive sample.
	SampleMotionPrimitive SampleType = iota
	// SampleAnalytic is a sample produced by analytic expansion (Reeds-Shepp-like).
	SampleAnalytic
	// SampleWaypoint marks a sample synthesized as an intermediate waypoint.
	SampleWaypoint
)

// Point is a 2D point, either metric or integer grid-indexed depending on
// context; callers track which frame a Point lives in.
type Point struct {
	X, Y float64
}

// Vector returns p as an r2.Point for use with github.com/golang/geo/r2 helpers.
func (p Point) Vector() r2.Point { return r2.Point{X: p.X, Y: p.Y} }

// PointFromVector builds a Point from an r2.Point.
func PointFromVector(v r2.Point) Point { return Point{X: v.X, Y: v.Y} }

// Sub returns p - o.
func (p Point) Sub(o Point) Point { return PointFromVector(p.Vector().Sub(o.Vector())) }

// Add returns p + o.
func (p Point) Add(o Point) Point { return PointFromVector(p.Vector().Add(o.Vector())) }

// IndexPoint is an integer grid-index point, as used by CoarsePath.
type IndexPoint struct {
	X, Y int
}

// Pose is (x, y, yaw) in meters and radians.
type Pose struct {
	X, Y, Yaw float64
}

// Point returns the positional component of p.
func (p Pose) Point() Point { return Point{X: p.X, Y: p.Y} }

// Equal reports whether p and o are bit-equal up to the given absolute
// tolerance on each field, with Yaw compared modulo 2π.
func (p Pose) Equal(o Pose, tol float64) bool {
	return math.Abs(p.X-o.X) <= tol &&
		math.Abs(p.Y-o.Y) <= tol &&
		normalizedAngleDiff(p.Yaw, o.Yaw) <= tol
}

func normalizedAngleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return math.Abs(d - math.Pi)
}

// Path is an ordered, interpolated kinematic path. All slices must have
// equal length >= 1; consecutive samples are INTERP_RES apart in Euclidean
// distance, except at direction reversals where they coincide.
type Path struct {
	X, Y, Yaw []float64
	Direction []Direction
	Type      []SampleType
	Cost      float64
}

// Len returns the number of samples in p, or 0 for a nil Path.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.X)
}

// Pose returns the i-th sample of p as a Pose.
func (p *Path) Pose(i int) Pose {
	return Pose{X: p.X[i], Y: p.Y[i], Yaw: p.Yaw[i]}
}

// Slice returns the half-open sample range [from, to) as a new Path,
// preserving Cost as-is (callers that splice paths recompute Cost
// themselves; see the Planning Cycle Controller's splice step).
func (p *Path) Slice(from, to int) *Path {
	if p == nil || from >= to {
		return &Path{}
	}
	return &Path{
		X:         append([]float64{}, p.X[from:to]...),
		Y:         append([]float64{}, p.Y[from:to]...),
		Yaw:       append([]float64{}, p.Yaw[from:to]...),
		Direction: append([]Direction{}, p.Direction[from:to]...),
		Type:      append([]SampleType{}, p.Type[from:to]...),
		Cost:      p.Cost,
	}
}

// Append concatenates other onto the end of p's sample lists and returns
// the result, which keeps p's Cost (other's Cost is not added; callers
// combine costs explicitly).
func (p *Path) Append(other *Path) *Path {
	return &Path{
		X:         append(append([]float64{}, p.X...), other.X...),
		Y:         append(append([]float64{}, p.Y...), other.Y...),
		Yaw:       append(append([]float64{}, p.Yaw...), other.Yaw...),
		Direction: append(append([]Direction{}, p.Direction...), other.Direction...),
		Type:      append(append([]SampleType{}, p.Type...), other.Type...),
		Cost:      p.Cost,
	}
}

// CoarsePath is a parallel (x_index, y_index) lattice path on the coarse
// grid at PLANNER_RES resolution.
type CoarsePath struct {
	X, Y []int
}

// Len returns the number of samples in c, or 0 for a nil CoarsePath.
func (c *CoarsePath) Len() int {
	if c == nil {
		return 0
	}
	return len(c.X)
}

// At returns the i-th sample of c as an IndexPoint.
func (c *CoarsePath) At(i int) IndexPoint {
	return IndexPoint{X: c.X[i], Y: c.Y[i]}
}

// Patch is the rectangular working region, defined in global coordinates.
type Patch struct {
	OriginGlobal Point
	DimMetric    float64
	DimGrid      int
}
