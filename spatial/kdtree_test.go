package spatial

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alice-sync/presence/coord"
)

func entry(id uint64, x, y float64) Entry {
	return Entry{ID: id, Coord: coord.New(x, y)}
}

func ids(entries []Entry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestEmptyTree(t *testing.T) {
	req := require.New(t)

	tree := New()
	req.True(tree.Empty())
	req.Equal(0, tree.Len())
	req.Empty(tree.RangeQuery(coord.New(0, 0), 10))
	_, _, ok := tree.Nearest(coord.New(0, 0))
	req.False(ok)

	req.True(Build(nil).Empty())
}

func TestRangeQueryBasic(t *testing.T) {
	req := require.New(t)

	tree := Build([]Entry{
		entry(1, 0, 0),
		entry(2, 1, 1),
		entry(3, 5, 5),
		entry(4, 10, 10),
	})
	req.Equal(4, tree.Len())

	results := tree.RangeQuery(coord.New(0, 0), 2.0)
	req.Equal([]uint64{1, 2}, ids(results))
}

func TestRangeQueryIgnoresHeight(t *testing.T) {
	req := require.New(t)

	tree := New()
	tree.Insert(Entry{ID: 1, Coord: coord.NewWithHeight(1, 0, 100)})
	tree.Insert(Entry{ID: 2, Coord: coord.NewWithHeight(0, 1, 0)})

	// Both points are within plane distance 2 even though the first
	// one's height puts its Vivaldi distance far beyond it.
	results := tree.RangeQuery(coord.New(0, 0), 2.0)
	req.Equal([]uint64{1, 2}, ids(results))
}

func TestRangeQueryBoundaryInclusive(t *testing.T) {
	tree := Build([]Entry{entry(1, 10, 0)})
	require.Equal(t, []uint64{1}, ids(tree.RangeQuery(coord.New(0, 0), 10.0)))
}

func TestInsertMatchesBuild(t *testing.T) {
	req := require.New(t)

	points := []Entry{
		entry(1, 0, 0), entry(2, 1, 1), entry(3, -3, 2), entry(4, 5, -5),
		entry(5, 2, 8), entry(6, -7, -1), entry(7, 4, 4), entry(8, 9, 0),
	}
	built := Build(points)
	inserted := New()
	for _, p := range points {
		inserted.Insert(p)
	}

	for _, radius := range []float64{0, 2, 5, 20} {
		q := coord.New(1, 1)
		req.Equal(ids(built.RangeQuery(q, radius)), ids(inserted.RangeQuery(q, radius)))
	}
}

func TestRangeQueryMatchesBruteForce(t *testing.T) {
	req := require.New(t)

	// 10x10 grid.
	var points []Entry
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			points = append(points, entry(uint64(i*10+j), float64(i)*3, float64(j)*3))
		}
	}
	tree := Build(points)

	queries := []struct {
		center coord.Coord
		radius float64
	}{
		{coord.New(0, 0), 5},
		{coord.New(15, 15), 7.5},
		{coord.New(-10, -10), 3},
		{coord.New(13.5, 13.5), 100},
	}
	for _, q := range queries {
		var want []uint64
		for _, p := range points {
			if p.Coord.Distance2D(q.center) <= q.radius {
				want = append(want, p.ID)
			}
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		got := ids(tree.RangeQuery(q.center, q.radius))
		if want == nil {
			req.Empty(got)
		} else {
			req.Equal(want, got)
		}
	}
}

func TestNearest(t *testing.T) {
	req := require.New(t)

	tree := Build([]Entry{
		entry(1, 0, 0),
		entry(2, 5, 0),
		entry(3, 10, 0),
		entry(4, 15, 0),
	})
	best, dist, ok := tree.Nearest(coord.New(12, 0))
	req.True(ok)
	req.Equal(uint64(3), best.ID)
	req.InDelta(2.0, dist, 1e-12)
}

func TestNearestUsesFullMetric(t *testing.T) {
	req := require.New(t)

	tree := New()
	// Closer on the plane but pushed away by its height.
	tree.Insert(Entry{ID: 1, Coord: coord.NewWithHeight(1, 0, 5)})
	tree.Insert(Entry{ID: 2, Coord: coord.NewWithHeight(2, 0, 0)})

	best, dist, ok := tree.Nearest(coord.New(0, 0))
	req.True(ok)
	req.Equal(uint64(2), best.ID)
	req.InDelta(2.0, dist, 1e-12)
}
