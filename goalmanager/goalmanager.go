// Package goalmanager implements the Goal Manager (§4.3): it parses
// inbound goal messages, validates the received and active goals against
// the collision oracle, looks for nearby fallbacks when a goal collides,
// and tracks the received/active goals and their patch-frame projections.
package goalmanager

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/geometry"
	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// MessageKind is the tag of an inbound goal message (§6).
type MessageKind int

const (
	// MessageNone carries no goal change.
	MessageNone MessageKind = iota
	// MessageRemove clears any active/received goal.
	MessageRemove
	// MessageSet sets a new received goal pose.
	MessageSet
)

// Message is an inbound goal_message, one of {Remove, Set(pose), None}.
type Message struct {
	Kind MessageKind
	Pose planpath.Pose
}

// ErrGoalUnreachable is returned (with a wrapped reason) when validation
// cannot find a collision-free nearby goal for the received goal, the
// active goal, or both. Treated as recoverable: the caller logs it and
// continues.
var ErrGoalUnreachable = errors.New("goal unreachable")

// Manager tracks the GoalSet from §3 and implements §4.3's
// validate/promote lifecycle.
type Manager struct {
	hybrid collaborators.HybridPlanner
	oracle collaborators.CollisionOracle
	logger logging.Logger

	origin planpath.Point

	receivedGlobal  *planpath.Pose
	receivedPatch   *planpath.Pose
	activeGlobal    *planpath.Pose
	activePatch     *planpath.Pose
	receivedCollides bool

	newGoalPending bool
}

// New builds a Goal Manager.
func New(hybrid collaborators.HybridPlanner, oracle collaborators.CollisionOracle, logger logging.Logger) *Manager {
	return &Manager{hybrid: hybrid, oracle: oracle, logger: logger}
}

// ReceivedGlobal returns the currently held received goal, or nil.
func (m *Manager) ReceivedGlobal() *planpath.Pose { return m.receivedGlobal }

// ActiveGlobal returns the currently held active goal, or nil.
func (m *Manager) ActiveGlobal() *planpath.Pose { return m.activeGlobal }

// ActivePatch returns the active goal's patch-frame projection, or nil.
func (m *Manager) ActivePatch() *planpath.Pose { return m.activePatch }

// ReceivedPatch returns the received goal's patch-frame projection, or nil.
func (m *Manager) ReceivedPatch() *planpath.Pose { return m.receivedPatch }

// ParseMessage handles an inbound goal message (§4.3 parse_message).
func (m *Manager) ParseMessage(msg Message) {
	switch msg.Kind {
	case MessageRemove:
		m.logger.Infow("removing goal")
		m.ResetData()
	case MessageSet:
		m.logger.Infow("goal received", "pose", msg.Pose)
		pose := msg.Pose
		m.receivedGlobal = &pose
	case MessageNone:
	}
}

// RefreshPatchCoords recomputes *_patch from *_global and the current
// patch origin (§4.8 step 3, run before validate/rebuild).
func (m *Manager) RefreshPatchCoords(origin planpath.Point) {
	m.origin = origin
	if m.receivedGlobal != nil {
		p := geometry.ToPatch(*m.receivedGlobal, origin)
		m.receivedPatch = &p
	} else {
		m.receivedPatch = nil
	}
	if m.activeGlobal != nil {
		p := geometry.ToPatch(*m.activeGlobal, origin)
		m.activePatch = &p
	} else {
		m.activePatch = nil
	}
}

// Validate implements §4.3's validate(): it checks ego, received,
// and active goal collisions, attempts a nearby fallback for a colliding
// received goal (if none is found, dropping it with a warning and a wrapped
// ErrGoalUnreachable, without invalidating the active goal), and attempts a
// fallback for a colliding
// active goal (resetting all goal data if none is found). It reports
// whether ego itself is in collision (observable only, per §7
// EgoInCollision: logged, never blocking).
func (m *Manager) Validate(egoPatch planpath.Pose) (egoInCollision bool, err error) {
	if !m.oracle.CheckPose(egoPatch) {
		m.logger.Warnw("ego position is not collision free")
		egoInCollision = true
	}

	var receivedErr, activeErr error

	if m.receivedPatch != nil {
		m.receivedCollides = false
		if !m.oracle.CheckPose(*m.receivedPatch) {
			m.logger.Warnw("received goal is not collision free")
			m.receivedCollides = true
			if !m.findNearby(egoPatch, true) {
				m.logger.Warnw("no nearby collision-free pose found for received goal, dropping it")
				receivedErr = errors.Wrap(ErrGoalUnreachable, "received goal")
				m.receivedGlobal = nil
				m.receivedPatch = nil
			}
		}
	}

	if m.activePatch != nil {
		if !m.oracle.CheckPose(*m.activePatch) {
			m.logger.Warnw("active goal is not collision free")
			if !m.findNearby(egoPatch, false) {
				m.logger.Warnw("active goal unreachable, resetting goal data")
				activeErr = errors.Wrap(ErrGoalUnreachable, "active goal")
				m.ResetData()
			}
		}
	}

	return egoInCollision, aggregateUnreachable(receivedErr, activeErr)
}

// findNearby delegates to HybridPlanner.ValidClosePose for either the
// received (rec=true) or active goal, updating both patch and global
// forms on success (§4.3 find_nearby).
func (m *Manager) findNearby(egoPatch planpath.Pose, rec bool) bool {
	var target *planpath.Pose
	if rec {
		target = m.receivedPatch
	} else {
		target = m.activePatch
	}
	if target == nil {
		return false
	}

	pose, ok := m.hybrid.ValidClosePose(egoPatch, *target)
	if !ok {
		return false
	}
	global := geometry.ToGlobal(pose, m.origin)

	if rec {
		m.logger.Warnw("a goal near the received goal was found")
		m.receivedPatch = &pose
		m.receivedGlobal = &global
	} else {
		m.logger.Warnw("a goal near the active goal was found")
		m.activePatch = &pose
		m.activeGlobal = &global
	}
	return true
}

// ShouldPromote reports whether the received goal is valid (non-nil,
// having survived Validate) and differs from the current active goal, in
// which case the controller should call PromoteReceivedToActive.
func (m *Manager) ShouldPromote() bool {
	if m.receivedGlobal == nil {
		return false
	}
	if m.activeGlobal == nil {
		return true
	}
	return !m.receivedGlobal.Equal(*m.activeGlobal, 1e-9)
}

// PromoteReceivedToActive implements §4.3's promote_received_to_active:
// it adopts the received goal as active and signals NewGoal() for one read.
func (m *Manager) PromoteReceivedToActive() {
	pose := *m.receivedGlobal
	m.activeGlobal = &pose
	posePatch := geometry.ToPatch(pose, m.origin)
	m.activePatch = &posePatch
	m.newGoalPending = true
}

// TakeNewGoal reports and clears the pending new-goal signal (§4.6:
// "clears flag on read").
func (m *Manager) TakeNewGoal() bool {
	v := m.newGoalPending
	m.newGoalPending = false
	return v
}

// ResetData clears both goals and patch-frame projections (§4.3/§4.9
// reset_data, shared with the Planning Cycle Controller's goal-reached and
// goal-removed paths).
func (m *Manager) ResetData() {
	m.receivedGlobal = nil
	m.receivedPatch = nil
	m.activeGlobal = nil
	m.activePatch = nil
	m.receivedCollides = false
	m.newGoalPending = false
}

// aggregateUnreachable combines a received- and active-goal failure into
// one multierr-joined error when both are exhausted in the same call.
func aggregateUnreachable(receivedErr, activeErr error) error {
	return multierr.Combine(receivedErr, activeErr)
}
