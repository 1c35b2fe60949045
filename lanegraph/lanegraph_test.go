package lanegraph

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

func writeNpy(t *testing.T, path string, xs, ys []float64) {
	t.Helper()
	header := "{'descr': '<f8', 'fortran_order': False, 'shape': (2, " +
		itoa(len(xs)) + "), }"
	for (len(header)+10)%64 != 0 {
		header += " "
	}
	header += "\n"

	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()

	_, err = f.Write([]byte("\x93NUMPY\x01\x00"))
	test.That(t, err, test.ShouldBeNil)
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(header)))
	_, err = f.Write(lenBuf)
	test.That(t, err, test.ShouldBeNil)
	_, err = f.Write([]byte(header))
	test.That(t, err, test.ShouldBeNil)

	for _, row := range [][]float64{xs, ys} {
		for _, v := range row {
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			_, err := f.Write(buf)
			test.That(t, err, test.ShouldBeNil)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestLoadAndReprojectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lane_graph.npy")
	writeNpy(t, path, []float64{10, 20, 30}, []float64{1, 2, 3})

	store := NewStore(path, logging.NewTest(t))
	pts, err := store.PointsInPatch(planpath.Point{X: 5, Y: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldHaveLength, 3)
	test.That(t, pts[0].X, test.ShouldAlmostEqual, 5.0, 1e-9)
	test.That(t, pts[0].Y, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, pts[2].X, test.ShouldAlmostEqual, 25.0, 1e-9)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.npy"), logging.NewTest(t))
	pts, err := store.PointsInPatch(planpath.Point{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldBeEmpty)
}
