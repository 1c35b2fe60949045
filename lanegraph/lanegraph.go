// Package lanegraph caches the persisted lane graph (data/lane_graph.npy,
// a 2×N float64 array of global metric points) in memory and re-projects
// it into the patch frame on each patch rebuild, instead of re-reading
// the file from disk every time (§9 design note).
package lanegraph

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/oakwood-robotics/freespace-planner/geometry"
	"github.com/oakwood-robotics/freespace-planner/logging"
	"github.com/oakwood-robotics/freespace-planner/planpath"
)

// Store caches the parsed global-frame lane graph and serves patch-frame
// re-projections on demand.
type Store struct {
	path    string
	logger  logging.Logger
	watcher *fsnotify.Watcher

	cached []planpath.Point
	stale  bool
}

// NewStore builds a Store reading from path. The file need not exist yet;
// PointsInPatch returns an empty graph until it does.
func NewStore(path string, logger logging.Logger) *Store {
	return &Store{path: path, logger: logger, stale: true}
}

// Watch starts an fsnotify watch on the lane-graph file's directory so
// external replacement of the file invalidates the in-memory cache
// without a reload on every rebuild. Callers should call Close when done.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "starting lane graph watcher")
	}
	dir := dirOf(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "watching lane graph directory %q", dir)
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name == s.path {
					s.stale = true
					s.logger.Infow("lane graph file changed on disk, cache invalidated", "path", s.path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warnw("lane graph watcher error", "err", err)
			}
		}
	}()
	return nil
}

// Close stops the background watch goroutine, if started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// PointsInPatch returns the cached lane graph, re-projected into the
// frame of the patch with the given origin. The underlying file is only
// re-read when the cache is stale (first use, or after a watched change).
func (s *Store) PointsInPatch(origin planpath.Point) ([]planpath.Point, error) {
	if s.stale {
		pts, err := load(s.path)
		if err != nil {
			return nil, err
		}
		s.cached = pts
		s.stale = false
	}
	out := make([]planpath.Point, len(s.cached))
	for i, p := range s.cached {
		out[i] = geometry.ToPatchPoint(p, origin)
	}
	return out, nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// load reads a 2×N array of float64 points from a NumPy .npy file. No
// example repo in the retrieval pack ships a NumPy reader, and pulling in
// a full ndarray library for one fixed (2, N) float64 layout would be
// disproportionate, so this parses just enough of the documented .npy
// format (magic, version, header dict, then raw little-endian float64s).
func load(path string) ([]planpath.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening lane graph %q", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, 6)
	if _, err := readFull(r, magic); err != nil {
		return nil, errors.Wrap(err, "reading npy magic")
	}
	if string(magic) != "\x93NUMPY" {
		return nil, errors.Errorf("%q is not a .npy file", path)
	}
	verMajor, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadByte(); err != nil { // minor version, unused
		return nil, err
	}

	var headerLen int
	if verMajor == 1 {
		b := make([]byte, 2)
		if _, err := readFull(r, b); err != nil {
			return nil, err
		}
		headerLen = int(binary.LittleEndian.Uint16(b))
	} else {
		b := make([]byte, 4)
		if _, err := readFull(r, b); err != nil {
			return nil, err
		}
		headerLen = int(binary.LittleEndian.Uint32(b))
	}

	header := make([]byte, headerLen)
	if _, err := readFull(r, header); err != nil {
		return nil, errors.Wrap(err, "reading npy header")
	}
	shape, err := parseShape(string(header))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing npy header for %q", path)
	}
	if len(shape) != 2 || shape[0] != 2 {
		return nil, errors.Errorf("lane graph %q: expected shape (2, N), got %v", path, shape)
	}
	n := shape[1]

	xs := make([]float64, n)
	ys := make([]float64, n)
	if err := readFloat64s(r, xs); err != nil {
		return nil, errors.Wrap(err, "reading lane graph x row")
	}
	if err := readFloat64s(r, ys); err != nil {
		return nil, errors.Wrap(err, "reading lane graph y row")
	}

	pts := make([]planpath.Point, n)
	for i := range pts {
		pts[i] = planpath.Point{X: xs[i], Y: ys[i]}
	}
	return pts, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readFloat64s(r *bufio.Reader, out []float64) error {
	buf := make([]byte, 8*len(out))
	if _, err := readFull(r, buf); err != nil {
		return err
	}
	for i := range out {
		bits := binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return nil
}

// parseShape extracts the "shape": (a, b) tuple from a .npy header dict
// literal without a full Python-literal parser.
func parseShape(header string) ([]int, error) {
	key := "'shape':"
	idx := strings.Index(header, key)
	if idx < 0 {
		return nil, errors.New("no shape key in npy header")
	}
	rest := header[idx+len(key):]
	open := strings.IndexByte(rest, '(')
	closeIdx := strings.IndexByte(rest, ')')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return nil, errors.New("malformed shape tuple in npy header")
	}
	fields := strings.Split(rest[open+1:closeIdx], ",")
	var shape []int
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing shape field %q", f)
		}
		shape = append(shape, v)
	}
	return shape, nil
}
