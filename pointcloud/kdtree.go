package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// kdPoint is a cloud position tagged with its index in the cloud.
type kdPoint struct {
	pos r3.Vector
	idx int
}

func (p kdPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

// Compare satisfies the kdtree.Comparable interface.
func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	return p.coord(d) - q.coord(d)
}

// Dims satisfies the kdtree.Comparable interface.
func (p kdPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, as kdtree keepers expect.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(kdPoint)
	return p.pos.Sub(q.pos).Norm2()
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p kdPoints) Len() int                              { return len(p) }
func (p kdPoints) Pivot(d kdtree.Dim) int                { return kdPlane{Dim: d, kdPoints: p}.Pivot() }
func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// kdPlane sorts points along one dimension while the tree is built.
type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdPoints[i].coord(p.Dim) < p.kdPoints[j].coord(p.Dim)
}
func (p kdPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}
func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}

// neighbor is a search result: the cloud index and the Euclidean distance to it.
type neighbor struct {
	idx  int
	dist float64
}

// searchTree answers neighbour queries over a fixed set of positions. Read-only after
// construction, so concurrent queries are safe.
type searchTree struct {
	tree   *kdtree.Tree
	points kdPoints
}

func newSearchTree(positions []r3.Vector) *searchTree {
	pts := make(kdPoints, len(positions))
	for i, p := range positions {
		pts[i] = kdPoint{pos: p, idx: i}
	}
	// kdtree.New reorders its input, so it gets a copy.
	build := make(kdPoints, len(pts))
	copy(build, pts)
	return &searchTree{tree: kdtree.New(build, false), points: pts}
}

// kNearest returns the k nearest other points to point i, closest first. Ties are broken by index.
func (st *searchTree) kNearest(i, k int) []neighbor {
	keeper := kdtree.NewNKeeper(k + 1)
	st.tree.NearestSet(keeper, st.points[i])
	return collect(keeper.Heap, i, k)
}

// withinRadius returns the other points no further than radius from point i.
func (st *searchTree) withinRadius(i int, radius float64) []neighbor {
	keeper := kdtree.NewDistKeeper(radius * radius)
	st.tree.NearestSet(keeper, st.points[i])
	out := collect(keeper.Heap, i, -1)
	n := 0
	for _, nb := range out {
		if nb.dist <= radius {
			out[n] = nb
			n++
		}
	}
	return out[:n]
}

func collect(heap kdtree.Heap, self, limit int) []neighbor {
	out := make([]neighbor, 0, len(heap))
	for _, cd := range heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(kdPoint)
		if p.idx == self {
			continue
		}
		out = append(out, neighbor{idx: p.idx, dist: math.Sqrt(cd.Dist)})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].dist != out[b].dist {
			return out[a].dist < out[b].dist
		}
		return out[a].idx < out[b].idx
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
