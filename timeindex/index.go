// Package timeindex provides logarithmic timestamp lookups over sorted sensor streams.
package timeindex

import (
	"fmt"
	"sort"

	"go.viam.com/avclean/utils"
)

// Index is an immutable sorted sequence of microsecond timestamps. Duplicates are permitted.
type Index struct {
	stamps []int64
}

// New returns an index over a copy of stamps, which must be non-decreasing.
func New(stamps []int64) (*Index, error) {
	for i := 1; i < len(stamps); i++ {
		if stamps[i] < stamps[i-1] {
			return nil, utils.NewConfigurationError(
				"timestamps", fmt.Sprintf("[%d]=%d after %d", i, stamps[i], stamps[i-1]), "must be sorted")
		}
	}
	copied := make([]int64, len(stamps))
	copy(copied, stamps)
	return &Index{stamps: copied}, nil
}

// Len returns the number of timestamps.
func (idx *Index) Len() int {
	return len(idx.stamps)
}

// At returns the i-th timestamp.
func (idx *Index) At(i int) int64 {
	return idx.stamps[i]
}

// First returns the earliest timestamp, or 0 for an empty index.
func (idx *Index) First() int64 {
	if len(idx.stamps) == 0 {
		return 0
	}
	return idx.stamps[0]
}

// Last returns the latest timestamp, or 0 for an empty index.
func (idx *Index) Last() int64 {
	if len(idx.stamps) == 0 {
		return 0
	}
	return idx.stamps[len(idx.stamps)-1]
}

// Contains reports whether q lies within [First, Last].
func (idx *Index) Contains(q int64) bool {
	return len(idx.stamps) > 0 && q >= idx.stamps[0] && q <= idx.stamps[len(idx.stamps)-1]
}

// lowerBound returns the first index whose timestamp is >= q.
func (idx *Index) lowerBound(q int64) int {
	return sort.Search(len(idx.stamps), func(i int) bool { return idx.stamps[i] >= q })
}

// upperBound returns the first index whose timestamp is > q.
func (idx *Index) upperBound(q int64) int {
	return sort.Search(len(idx.stamps), func(i int) bool { return idx.stamps[i] > q })
}

// Nearest returns the index minimizing |t[i] - q|. Ties go to the earlier index, including
// the earliest of a run of duplicates. Queries outside the range clamp to the ends.
func (idx *Index) Nearest(q int64) (int, error) {
	n := len(idx.stamps)
	if n == 0 {
		return 0, utils.NewEmptyStreamError()
	}
	hi := idx.lowerBound(q)
	if hi == 0 {
		return 0, nil
	}
	if hi == n {
		return idx.lowerBound(idx.stamps[n-1]), nil
	}
	lo := idx.lowerBound(idx.stamps[hi-1])
	if q-idx.stamps[lo] <= idx.stamps[hi]-q {
		return lo, nil
	}
	return hi, nil
}

// NearestWithin is Nearest restricted to samples no further than tolerance from q.
// It fails with OutOfRange when no sample is close enough.
func (idx *Index) NearestWithin(q, tolerance int64) (int, error) {
	i, err := idx.Nearest(q)
	if err != nil {
		return 0, err
	}
	d := idx.stamps[i] - q
	if d < 0 {
		d = -d
	}
	if d > tolerance {
		return 0, utils.NewOutOfRangeError(q, q-tolerance, q+tolerance)
	}
	return i, nil
}

// Bracket returns (lo, hi) with t[lo] <= q <= t[hi]. An exact hit returns lo == hi.
// It fails with OutOfRange when q precedes the first or follows the last timestamp.
func (idx *Index) Bracket(q int64) (int, int, error) {
	n := len(idx.stamps)
	if n == 0 {
		return 0, 0, utils.NewEmptyStreamError()
	}
	if q < idx.stamps[0] || q > idx.stamps[n-1] {
		return 0, 0, utils.NewOutOfRangeError(q, idx.stamps[0], idx.stamps[n-1])
	}
	hi := idx.lowerBound(q)
	if idx.stamps[hi] == q {
		return hi, hi, nil
	}
	return hi - 1, hi, nil
}

// Window returns the half-open range [start, end) of indices whose timestamps satisfy
// from <= t <= to. An empty range is returned when nothing matches or from > to.
func (idx *Index) Window(from, to int64) (int, int) {
	if from > to {
		return 0, 0
	}
	start := idx.lowerBound(from)
	end := idx.upperBound(to)
	if end < start {
		return start, start
	}
	return start, end
}
