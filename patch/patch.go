// Package patch implements the Patch Manager (§4.2): it owns the
// current rectangular working region and decides when to rebuild it,
// fanning the rebuild out to the collaborators that must be reinitialized
// around the new origin.
package patch

import (
	"math"

	"github.com/pkg/errors"

	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/geometry"
	"github.com/oakwood-robotics/freespace-planner/lanegraph"
	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// Config is the subset of §6 configuration keys the Patch Manager
// needs.
type Config struct {
	GMDim         int     // GM_DIM, cells
	GMRes         float64 // GM_RES, m/cell
	PaddingDist   float64 // PADDING_DIST, m
	MaxPatchInsDist float64 // MAX_PATCH_INS_DIST, m (carried here; not read by the Patch Manager)
}

// GMDist returns GM_DIST = GM_DIM * GM_RES, the border margin §4.2
// checks ego/goal proximity against.
func (c Config) GMDist() float64 { return float64(c.GMDim) * c.GMRes }

// Manager owns the current Patch and decides when to rebuild it.
type Manager struct {
	cfg    Config
	cols   collaborators.Set
	lanes  *lanegraph.Store
	logger logging.Logger
	isSim  bool

	current    *planpath.Patch
	resetFlag  bool
}

// NewManager builds a Patch Manager. isSim gates whether rebuilds also
// invoke Cartographer.LoadPreviousPatch (§4.2: "if simulating").
func NewManager(cfg Config, cols collaborators.Set, lanes *lanegraph.Store, logger logging.Logger, isSim bool) *Manager {
	return &Manager{cfg: cfg, cols: cols, lanes: lanes, logger: logger, isSim: isSim}
}

// Current returns the current patch, or nil if none has been built yet.
func (m *Manager) Current() *planpath.Patch { return m.current }

// RequestReset marks the patch for unconditional rebuild on the next
// MaybeRebuild call (§4.2 condition (e): "explicit reset request").
func (m *Manager) RequestReset() { m.resetFlag = true }

// MaybeRebuild evaluates §4.2's rebuild conditions and, if any
// trigger, rebuilds the patch around egoGlobal and (if present)
// receivedGoalGlobal, re-inserting every tile in minipatches. It reports
// whether a rebuild occurred.
func (m *Manager) MaybeRebuild(egoGlobal planpath.Point, receivedGoalGlobal *planpath.Point, minipatches collaborators.Minipatches) (bool, error) {
	if m.resetFlag {
		m.resetFlag = false
		span := egoGlobal
		if receivedGoalGlobal != nil {
			span = *receivedGoalGlobal
		}
		return true, m.rebuild(egoGlobal, span, minipatches)
	}

	if m.current == nil {
		span := egoGlobal
		if receivedGoalGlobal != nil {
			span = *receivedGoalGlobal
		}
		return true, m.rebuild(egoGlobal, span, minipatches)
	}

	egoPatch := geometry.ToPatchPoint(egoGlobal, m.current.OriginGlobal)
	if m.isNearBorder(egoPatch) {
		span := egoGlobal
		if receivedGoalGlobal != nil {
			span = *receivedGoalGlobal
		}
		return true, m.rebuild(egoGlobal, span, minipatches)
	}

	if receivedGoalGlobal != nil {
		goalPatch := geometry.ToPatchPoint(*receivedGoalGlobal, m.current.OriginGlobal)
		if m.isNearBorder(goalPatch) || m.isOutOfPatch(goalPatch) {
			return true, m.rebuild(egoGlobal, *receivedGoalGlobal, minipatches)
		}
	}

	return false, nil
}

func (m *Manager) isNearBorder(p planpath.Point) bool {
	margin := m.cfg.GMDist() / 2
	maxPos := math.Max(p.X, p.Y)
	minPos := math.Min(p.X, p.Y)
	return maxPos > (m.current.DimMetric-margin) || minPos < margin
}

func (m *Manager) isOutOfPatch(p planpath.Point) bool {
	maxPos := math.Max(p.X, p.Y)
	minPos := math.Min(p.X, p.Y)
	return maxPos > m.current.DimMetric || minPos < 0
}

// rebuild computes the bounding box spanning a and b (or just a if they
// coincide), pads and grid-snaps it, reinitializes the kinematic planner
// (and, in simulation, the cartographer), reloads the lane graph, and
// re-inserts every known minipatch (§4.2: "not only nearest").
func (m *Manager) rebuild(a, b planpath.Point, minipatches collaborators.Minipatches) error {
	minX, maxX := minMax(a.X, b.X)
	minY, maxY := minMax(a.Y, b.Y)

	dx := maxX - minX
	dy := maxY - minY
	side := math.Max(dx, dy) + 2*m.cfg.PaddingDist
	dimGrid := geometry.MetricToGridRound(side, m.cfg.GMRes)
	dimMetric := float64(dimGrid) * m.cfg.GMRes

	centerX := minX + dx/2
	centerY := minY + dy/2
	origin := planpath.Point{X: centerX - dimMetric/2, Y: centerY - dimMetric/2}

	oldOrigin := planpath.Point{}
	hadPrevious := m.current != nil
	if hadPrevious {
		oldOrigin = m.current.OriginGlobal
	}

	if err := m.cols.Hybrid.Reinit(origin, dimGrid); err != nil {
		return errors.Wrap(err, "reinitializing hybrid planner for rebuilt patch")
	}
	if m.isSim && hadPrevious {
		m.cols.Cartograph.LoadPreviousPatch(oldOrigin, origin)
	}

	m.current = &planpath.Patch{OriginGlobal: origin, DimMetric: dimMetric, DimGrid: dimGrid}

	if err := m.reloadLaneGraph(); err != nil {
		return errors.Wrap(err, "reloading lane graph for rebuilt patch")
	}

	m.insertMinipatches(minipatches, a)

	m.logger.Infow("patch rebuilt", "origin", origin, "dimMetric", dimMetric, "dimGrid", dimGrid)
	return nil
}

// insertMinipatches dispatches a non-empty Minipatches value by its tag
// (§9): a real-mode tile map goes to the collision oracle directly, while a
// sim-mode single measurement tile is fused in by the cartographer before
// the safety patch is reprocessed.
func (m *Manager) insertMinipatches(minipatches collaborators.Minipatches, egoGlobal planpath.Point) {
	if minipatches.IsEmpty() {
		return
	}

	if _, ok := minipatches.Map(); ok {
		m.cols.Collision.InsertMinipatches(minipatches, egoGlobal, false /* onlyNearest */, false /* onlyNew */)
	} else if tile, ok := minipatches.Single(); ok {
		egoPatch := geometry.ToPatchPoint(egoGlobal, m.current.OriginGlobal)
		originGrid := planpath.IndexPoint{
			X: geometry.MetricToGridRound(egoPatch.X, m.cfg.GMRes),
			Y: geometry.MetricToGridRound(egoPatch.Y, m.cfg.GMRes),
		}
		m.cols.Cartograph.Cartograph(tile, originGrid, m.cfg.GMDim)
		m.cols.Cartograph.PassLocalMap(originGrid, m.cfg.GMDim)
	}

	m.cols.Collision.ProcessSafetyPatch()
}

func (m *Manager) reloadLaneGraph() error {
	m.cols.Hybrid.ResetLaneGraph()
	if m.lanes == nil {
		return nil
	}
	pts, err := m.lanes.PointsInPatch(m.current.OriginGlobal)
	if err != nil {
		return err
	}
	for _, p := range pts {
		m.cols.Hybrid.AddLanePoint(p)
	}
	m.cols.Hybrid.UpdateLaneGraph(m.current.OriginGlobal, m.current.DimMetric)
	return nil
}

func minMax(a, b float64) (float64, float64) {
	if a < b {
		return a, b
	}
	return b, a
}
