package timeindex

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"go.viam.com/test"

	"go.viam.com/avclean/utils"
)

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestNewRejectsUnsorted(t *testing.T) {
	_, err := New([]int64{1, 5, 3})
	test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)

	idx, err := New([]int64{1, 1, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx.Len(), test.ShouldEqual, 3)
}

func TestNewCopiesInput(t *testing.T) {
	stamps := []int64{10, 20, 30}
	idx, err := New(stamps)
	test.That(t, err, test.ShouldBeNil)
	stamps[0] = 25
	test.That(t, idx.At(0), test.ShouldEqual, int64(10))
}

func TestNearestOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(40)
		stamps := make([]int64, n)
		for i := range stamps {
			stamps[i] = rng.Int63n(1000)
		}
		sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
		idx, err := New(stamps)
		test.That(t, err, test.ShouldBeNil)

		for q := int64(-50); q < 1050; q += 7 {
			got, err := idx.Nearest(q)
			test.That(t, err, test.ShouldBeNil)
			best := abs64(stamps[got] - q)
			for j := range stamps {
				d := abs64(stamps[j] - q)
				test.That(t, d, test.ShouldBeGreaterThanOrEqualTo, best)
				if d == best {
					// The earliest index among the optimal ones.
					test.That(t, got, test.ShouldBeLessThanOrEqualTo, j)
				}
			}
		}
	}
}

func TestNearestTies(t *testing.T) {
	idx, err := New([]int64{0, 10, 10, 10, 20})
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		q        int64
		expected int
	}{
		{-5, 0},
		{5, 0},
		{6, 1},
		{10, 1},
		{14, 1},
		{15, 1},
		{16, 4},
		{100, 4},
	} {
		got, err := idx.Nearest(tc.q)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, tc.expected)
	}

	dup, err := New([]int64{5, 7, 7})
	test.That(t, err, test.ShouldBeNil)
	got, err := dup.Nearest(100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, 1)
}

func TestEmptyIndex(t *testing.T) {
	idx, err := New(nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = idx.Nearest(3)
	test.That(t, errors.Is(err, utils.ErrOutOfRange), test.ShouldBeTrue)
	_, _, err = idx.Bracket(3)
	test.That(t, errors.Is(err, utils.ErrOutOfRange), test.ShouldBeTrue)
	start, end := idx.Window(0, 10)
	test.That(t, end-start, test.ShouldEqual, 0)
	test.That(t, idx.Contains(0), test.ShouldBeFalse)
}

func TestBracket(t *testing.T) {
	idx, err := New([]int64{100, 200, 200, 300})
	test.That(t, err, test.ShouldBeNil)

	lo, hi, err := idx.Bracket(150)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lo, test.ShouldEqual, 0)
	test.That(t, hi, test.ShouldEqual, 1)

	lo, hi, err = idx.Bracket(200)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lo, test.ShouldEqual, hi)
	test.That(t, idx.At(lo), test.ShouldEqual, int64(200))

	lo, hi, err = idx.Bracket(300)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lo, test.ShouldEqual, 3)
	test.That(t, hi, test.ShouldEqual, 3)

	lo, hi, err = idx.Bracket(250)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx.At(lo), test.ShouldBeLessThanOrEqualTo, int64(250))
	test.That(t, idx.At(hi), test.ShouldBeGreaterThanOrEqualTo, int64(250))
	test.That(t, hi, test.ShouldEqual, 3)

	_, _, err = idx.Bracket(99)
	test.That(t, errors.Is(err, utils.ErrOutOfRange), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "99 not within [100, 300]")
	_, _, err = idx.Bracket(301)
	test.That(t, errors.Is(err, utils.ErrOutOfRange), test.ShouldBeTrue)
}

func TestNearestWithin(t *testing.T) {
	idx, err := New([]int64{1000, 2000})
	test.That(t, err, test.ShouldBeNil)
	i, err := idx.NearestWithin(1040, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, i, test.ShouldEqual, 0)
	_, err = idx.NearestWithin(1500, 50)
	test.That(t, errors.Is(err, utils.ErrOutOfRange), test.ShouldBeTrue)
}

func TestWindow(t *testing.T) {
	idx, err := New([]int64{1, 2, 2, 3, 5, 8})
	test.That(t, err, test.ShouldBeNil)

	start, end := idx.Window(2, 5)
	test.That(t, start, test.ShouldEqual, 1)
	test.That(t, end, test.ShouldEqual, 5)

	start, end = idx.Window(6, 7)
	test.That(t, end-start, test.ShouldEqual, 0)

	start, end = idx.Window(9, 2)
	test.That(t, end-start, test.ShouldEqual, 0)

	start, end = idx.Window(-10, 100)
	test.That(t, start, test.ShouldEqual, 0)
	test.That(t, end, test.ShouldEqual, 6)
}
