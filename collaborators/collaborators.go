// Package collaborators defines the narrow interfaces through which the
// planning-cycle core talks to components kept out of scope here: the
// kinematic planner, the coarse grid planner, the collision oracle, the
// cartographer, and the vehicle parameter bookkeeper.
//
// These are modeled as handles owned by the controller rather than
// process-wide singletons, so multiple controllers (and fakes, in tests)
// can coexist in one process.
package collaborators

import (
	"github.com/google/uuid"

	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// HybridPlanner is the out-of-scope kinematic planner that expands motion
// primitives and emits a Path.
type HybridPlanner interface {
	Initialize(dimGrid int, origin planpath.Point, resourceDir string) error
	SetSim(isSim bool)
	Reinit(origin planpath.Point, dimGrid int) error
	RecalculateEnv(goalNode, egoNode Node) error
	CreateNode(pose planpath.Pose, steer float64) Node
	// ProjectEgo returns the projection of ego onto path starting the
	// search at startIndex; the returned index never regresses below
	// startIndex.
	ProjectEgo(ego planpath.Pose, path *planpath.Path, startIndex int) (projection planpath.Pose, index int, minDist float64)
	// ValidClosePose searches near target for a collision-free pose,
	// reporting ok=false if none was found.
	ValidClosePose(ego, target planpath.Pose) (pose planpath.Pose, ok bool)
	Plan(ego, planStart, goal Node, toFinalPose, doAnalytic bool) (*planpath.Path, error)

	ResetLaneGraph()
	AddLanePoint(p planpath.Point)
	UpdateLaneGraph(origin planpath.Point, dimMetric float64)
}

// Node is an opaque planner-internal node handle, created only via
// HybridPlanner.CreateNode and otherwise passed through unexamined.
type Node interface {
	IndexPoint() planpath.IndexPoint
}

// GridPlanner is the out-of-scope coarse lattice planner.
type GridPlanner interface {
	Path(egoXIndex, egoYIndex int) (*planpath.CoarsePath, bool)
}

// CollisionOracle is the out-of-scope collision checker over the
// occupancy patch.
type CollisionOracle interface {
	CheckPose(posePatch planpath.Pose) bool
	// PathCollisionIndex returns the first colliding sample index, or -1
	// if the path is collision-free.
	PathCollisionIndex(xs, ys, yaws []float64) int
	InsertMinipatches(m Minipatches, egoGlobal planpath.Point, onlyNearest, onlyNew bool)
	ProcessSafetyPatch()
}

// Cartographer is the out-of-scope fuser of local measurements into the
// working patch.
type Cartographer interface {
	Cartograph(tile Tile, originGrid planpath.IndexPoint, width int)
	PassLocalMap(originGrid planpath.IndexPoint, width int)
	LoadPreviousPatch(oldOrigin, newOrigin planpath.Point)
}

// Vehicle is the out-of-scope kinematic parameter bookkeeper.
type Vehicle interface {
	Initialize(maxSteer, wheelbase, frontOverhang, rearOverhang, width float64, hasCapsule bool) error
	SetPose(poseGlobal planpath.Pose)
}

// Tile is an opaque occupancy measurement tile, as produced by the
// sensor-fusion front end (out of scope here).
type Tile interface{}

// TileID identifies a tile within a real-mode Minipatches map.
type TileID = uuid.UUID

// Minipatches is a tagged variant: real-mode fleets deliver a map of
// named tiles, simulation delivers a single measurement tile. Dispatch is
// by the tag, never by runtime type inspection of an interface{}.
type Minipatches struct {
	kind    minipatchKind
	tileMap map[TileID]Tile
	single  Tile
}

type minipatchKind int

const (
	minipatchNone minipatchKind = iota
	minipatchMap
	minipatchSingle
)

// NewMinipatchMap builds the real-mode Minipatches variant.
func NewMinipatchMap(m map[TileID]Tile) Minipatches {
	return Minipatches{kind: minipatchMap, tileMap: m}
}

// NewMinipatchSingle builds the simulation-mode Minipatches variant.
func NewMinipatchSingle(t Tile) Minipatches {
	return Minipatches{kind: minipatchSingle, single: t}
}

// IsMap reports whether m holds the real-mode map variant.
func (m Minipatches) IsMap() bool { return m.kind == minipatchMap }

// IsSingle reports whether m holds the simulation-mode single-tile variant.
func (m Minipatches) IsSingle() bool { return m.kind == minipatchSingle }

// IsEmpty reports whether m was never populated this tick.
func (m Minipatches) IsEmpty() bool { return m.kind == minipatchNone }

// Map returns the real-mode tile map and true, or nil and false.
func (m Minipatches) Map() (map[TileID]Tile, bool) {
	if m.kind != minipatchMap {
		return nil, false
	}
	return m.tileMap, true
}

// Single returns the simulation-mode tile and true, or nil and false.
func (m Minipatches) Single() (Tile, bool) {
	if m.kind != minipatchSingle {
		return nil, false
	}
	return m.single, true
}

// Set bundles all five collaborator handles the controller is constructed
// with, matching the §9 preference for controller-owned handles.
type Set struct {
	Hybrid     HybridPlanner
	Grid       GridPlanner
	Collision  CollisionOracle
	Cartograph Cartographer
	Vehicle    Vehicle
}
