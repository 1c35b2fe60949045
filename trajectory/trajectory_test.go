package trajectory

import (
	"testing"

	"go.viam.com/test"

	"github.com/oakwood-robotics/freespace-planner/collaborators"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

type fakeHybrid struct {
	nextIndex int
}

func (f *fakeHybrid) Initialize(int, planpath.Point, string) error { return nil }
func (f *fakeHybrid) SetSim(bool)                                  {}
func (f *fakeHybrid) Reinit(planpath.Point, int) error             { return nil }
func (f *fakeHybrid) RecalculateEnv(collaborators.Node, collaborators.Node) error { return nil }
func (f *fakeHybrid) CreateNode(planpath.Pose, float64) collaborators.Node        { return nil }
func (f *fakeHybrid) ProjectEgo(_ planpath.Pose, _ *planpath.Path, startIndex int) (planpath.Pose, int, float64) {
	return planpath.Pose{}, f.nextIndex, 0
}
func (f *fakeHybrid) ValidClosePose(planpath.Pose, planpath.Pose) (planpath.Pose, bool) {
	return planpath.Pose{}, false
}
func (f *fakeHybrid) Plan(collaborators.Node, collaborators.Node, collaborators.Node, bool, bool) (*planpath.Path, error) {
	return nil, nil
}
func (f *fakeHybrid) ResetLaneGraph()                         {}
func (f *fakeHybrid) AddLanePoint(planpath.Point)              {}
func (f *fakeHybrid) UpdateLaneGraph(planpath.Point, float64) {}

func straightPath(n int) *planpath.Path {
	p := &planpath.Path{}
	for i := 0; i < n; i++ {
		p.X = append(p.X, float64(i))
		p.Y = append(p.Y, 0)
		p.Yaw = append(p.Yaw, 0)
		p.Direction = append(p.Direction, planpath.Forward)
		p.Type = append(p.Type, planpath.SampleMotionPrimitive)
	}
	return p
}

func TestAnalyzeNilPathReturnsZero(t *testing.T) {
	h := &fakeHybrid{}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	dist, proj := tr.Analyze(nil, planpath.Pose{}, planpath.Point{})
	test.That(t, dist, test.ShouldEqual, 0.0)
	test.That(t, proj, test.ShouldEqual, 0.0)
	test.That(t, tr.IndexOnPath(), test.ShouldEqual, 0)
}

func TestAnalyzeAdvancesIndexAndAccumulatesDistance(t *testing.T) {
	h := &fakeHybrid{nextIndex: 3}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	path := straightPath(10)

	distToEnd, _ := tr.Analyze(path, planpath.Pose{}, planpath.Point{})
	test.That(t, tr.IndexOnPath(), test.ShouldEqual, 3)
	test.That(t, tr.DistanceSinceLastReplanning(), test.ShouldEqual, 3.0)
	test.That(t, distToEnd, test.ShouldEqual, 6.0)
	test.That(t, tr.DrivenHistory().Len(), test.ShouldEqual, 3)
}

func TestAnalyzeNeverRegressesIndex(t *testing.T) {
	h := &fakeHybrid{nextIndex: 1}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	path := straightPath(10)

	h.nextIndex = 5
	tr.Analyze(path, planpath.Pose{}, planpath.Point{})
	test.That(t, tr.IndexOnPath(), test.ShouldEqual, 5)

	h.nextIndex = 2
	tr.Analyze(path, planpath.Pose{}, planpath.Point{})
	test.That(t, tr.IndexOnPath(), test.ShouldEqual, 5)
}

func TestIsGoalReached(t *testing.T) {
	h := &fakeHybrid{nextIndex: 8}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	path := straightPath(10)
	tr.Analyze(path, planpath.Pose{}, planpath.Point{})

	goal := planpath.Pose{X: 8.1, Y: 0, Yaw: 0}
	test.That(t, tr.IsGoalReached(planpath.Pose{X: 8, Y: 0, Yaw: 0}, &goal, path), test.ShouldBeTrue)
}

func TestIsGoalReachedNilActiveGoal(t *testing.T) {
	h := &fakeHybrid{}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	test.That(t, tr.IsGoalReached(planpath.Pose{}, nil, nil), test.ShouldBeFalse)
}

func TestRemainingSamplesIncludesCurrentIndex(t *testing.T) {
	h := &fakeHybrid{nextIndex: 7}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	path := straightPath(10)
	tr.Analyze(path, planpath.Pose{}, planpath.Point{})

	test.That(t, tr.RemainingSamples(path), test.ShouldEqual, 3)
}

func TestRemainingSamplesAtLastIndexIsOne(t *testing.T) {
	h := &fakeHybrid{nextIndex: 9}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	path := straightPath(10)
	tr.Analyze(path, planpath.Pose{}, planpath.Point{})

	test.That(t, tr.RemainingSamples(path), test.ShouldEqual, 1)
}

func TestResetIndexAndDistance(t *testing.T) {
	h := &fakeHybrid{nextIndex: 4}
	tr := New(h, Config{GoalDist: 0.5, GoalAngle: 0.1, MinRemEl: 3})
	tr.Analyze(straightPath(10), planpath.Pose{}, planpath.Point{})
	test.That(t, tr.IndexOnPath(), test.ShouldEqual, 4)

	tr.ResetIndex()
	tr.ResetDistanceSinceLastReplanning()
	test.That(t, tr.IndexOnPath(), test.ShouldEqual, 0)
	test.That(t, tr.DistanceSinceLastReplanning(), test.ShouldEqual, 0.0)
}
