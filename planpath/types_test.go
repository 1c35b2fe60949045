package planpath

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"
)

func TestPathSliceAndAppend(t *testing.T) {
	p := &Path{
		X:         []float64{0, 1, 2, 3},
		Y:         []float64{0, 0, 0, 0},
		Yaw:       []float64{0, 0, 0, 0},
		Direction: []Direction{Forward, Forward, Forward, Forward},
		Type:      []SampleType{0, 0, 0, 0},
		Cost:      4,
	}
	prefix := p.Slice(0, 2)
	test.That(t, prefix.X, test.ShouldResemble, []float64{0, 1})

	rest := p.Slice(2, 4)
	combined := prefix.Append(rest)
	test.That(t, combined.X, test.ShouldResemble, p.X)
	test.That(t, combined.Len(), test.ShouldEqual, 4)

	if diff := cmp.Diff(*p, *combined); diff != "" {
		t.Errorf("slice-then-append round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPathLenNil(t *testing.T) {
	var p *Path
	test.That(t, p.Len(), test.ShouldEqual, 0)
}

func TestPoseEqual(t *testing.T) {
	a := Pose{X: 1, Y: 2, Yaw: 0}
	b := Pose{X: 1, Y: 2, Yaw: 2 * 3.14159265358979}
	test.That(t, a.Equal(b, 1e-6), test.ShouldBeTrue)
}
