package utils

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

type (
	// BeforeParallelGroupWorkFunc executes before any work starts with the calculated group size.
	BeforeParallelGroupWorkFunc func(groupSize int)
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// ErrWorkerPanic is returned when a parallel worker panics.
var ErrWorkerPanic = errors.New("worker panicked")

// workers runs functions on their own goroutines and collects the panics they raise.
type workers struct {
	group sync.WaitGroup
	mu    sync.Mutex
	err   error
}

func (w *workers) goRecovering(fn func()) {
	w.group.Add(1)
	go func() {
		defer w.group.Done()
		defer func() {
			if r := recover(); r != nil {
				w.mu.Lock()
				w.err = multierr.Append(w.err, errors.Wrapf(ErrWorkerPanic, "%v", r))
				w.mu.Unlock()
			}
		}()
		fn()
	}()
}

func (w *workers) finish() error {
	w.group.Wait()
	return w.err
}

// GroupWorkParallel parallelizes the given size of work over multiple workers.
// Work items are split into contiguous ranges; the last group absorbs the remainder.
// A panic in any group is returned as an error wrapping ErrWorkerPanic.
func GroupWorkParallel(ctx context.Context, totalSize int, before BeforeParallelGroupWorkFunc, groupWork GroupWorkFunc) error {
	numGroups := ParallelFactor
	if totalSize < numGroups {
		numGroups = totalSize
	}
	if numGroups <= 0 {
		if before != nil {
			before(0)
		}
		return ctx.Err()
	}
	groupSize := totalSize / numGroups
	extra := totalSize % numGroups

	if before != nil {
		before(numGroups)
	}

	var w workers
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNum := groupNum
		w.goRecovering(func() {
			if ctx.Err() != nil {
				return
			}

			thisGroupSize := groupSize
			if groupNum == numGroups-1 {
				thisGroupSize += extra
			}
			from := groupSize * groupNum
			to := from + thisGroupSize
			memberWork, groupWorkDone := groupWork(groupNum, thisGroupSize, from, to)
			if memberWork != nil {
				memberNum := 0
				for workNum := from; workNum < to; workNum++ {
					memberWork(memberNum, workNum)
					memberNum++
				}
			}
			if groupWorkDone != nil {
				groupWorkDone()
			}
		})
	}
	if err := w.finish(); err != nil {
		return err
	}
	return ctx.Err()
}

// ParallelForEachPixel loops through the image and calls f functions for each [x, y] position.
// The image is divided into horizontal bands, one per worker, each run on its own goroutine.
// A panic in f is returned as an error wrapping ErrWorkerPanic.
func ParallelForEachPixel(size image.Point, f func(x, y int)) error {
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	procs := ParallelFactor
	if procs > size.Y {
		procs = size.Y
	}
	band := size.Y / procs
	var w workers
	for i := 0; i < procs; i++ {
		startY := i * band
		endY := startY + band
		if i == procs-1 {
			endY = size.Y
		}
		w.goRecovering(func() {
			for y := startY; y < endY; y++ {
				for x := 0; x < size.X; x++ {
					f(x, y)
				}
			}
		})
	}
	return w.finish()
}
