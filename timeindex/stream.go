package timeindex

import (
	"sort"
)

// Sample is a timestamped payload from one sensor stream.
type Sample[T any] struct {
	Timestamp int64
	Payload   T
}

// Stream is an immutable, time-sorted sequence of samples with an Index over their timestamps.
type Stream[T any] struct {
	samples []Sample[T]
	index   *Index
}

// NewStream returns a stream over a copy of samples. Samples must already be sorted by timestamp.
func NewStream[T any](samples []Sample[T]) (*Stream[T], error) {
	stamps := make([]int64, len(samples))
	for i, s := range samples {
		stamps[i] = s.Timestamp
	}
	index, err := New(stamps)
	if err != nil {
		return nil, err
	}
	copied := make([]Sample[T], len(samples))
	copy(copied, samples)
	return &Stream[T]{samples: copied, index: index}, nil
}

// NewSortedStream sorts a copy of samples by timestamp, keeping the relative order of
// duplicates, and returns a stream over it.
func NewSortedStream[T any](samples []Sample[T]) *Stream[T] {
	copied := make([]Sample[T], len(samples))
	copy(copied, samples)
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Timestamp < copied[j].Timestamp })
	stamps := make([]int64, len(copied))
	for i, s := range copied {
		stamps[i] = s.Timestamp
	}
	return &Stream[T]{samples: copied, index: &Index{stamps: stamps}}
}

// Index returns the timestamp index of the stream.
func (s *Stream[T]) Index() *Index {
	return s.index
}

// Len returns the number of samples.
func (s *Stream[T]) Len() int {
	return len(s.samples)
}

// At returns the i-th sample.
func (s *Stream[T]) At(i int) Sample[T] {
	return s.samples[i]
}

// Samples returns a copy of the samples.
func (s *Stream[T]) Samples() []Sample[T] {
	out := make([]Sample[T], len(s.samples))
	copy(out, s.samples)
	return out
}

// Nearest returns the sample closest in time to q.
func (s *Stream[T]) Nearest(q int64) (Sample[T], error) {
	i, err := s.index.Nearest(q)
	if err != nil {
		return Sample[T]{}, err
	}
	return s.samples[i], nil
}

// NearestWithin returns the sample closest to q if it lies within tolerance.
func (s *Stream[T]) NearestWithin(q, tolerance int64) (Sample[T], error) {
	i, err := s.index.NearestWithin(q, tolerance)
	if err != nil {
		return Sample[T]{}, err
	}
	return s.samples[i], nil
}

// Bracket returns the samples surrounding q.
func (s *Stream[T]) Bracket(q int64) (Sample[T], Sample[T], error) {
	lo, hi, err := s.index.Bracket(q)
	if err != nil {
		return Sample[T]{}, Sample[T]{}, err
	}
	return s.samples[lo], s.samples[hi], nil
}

// Window returns the samples with from <= timestamp <= to.
func (s *Stream[T]) Window(from, to int64) []Sample[T] {
	start, end := s.index.Window(from, to)
	out := make([]Sample[T], end-start)
	copy(out, s.samples[start:end])
	return out
}
