package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Failure records a frame that could not be processed.
type Failure struct {
	FrameID string
	Err     error
}

// Batch is the outcome of one Run. Results are in input order.
type Batch struct {
	ID       uuid.UUID
	Results  []Result
	Failures []Failure
	Started  time.Time
	Finished time.Time
}

// Succeeded returns the number of frames without error.
func (b *Batch) Succeeded() int {
	return len(b.Results) - len(b.Failures)
}

// Failed returns the number of frames with an error.
func (b *Batch) Failed() int {
	return len(b.Failures)
}

// Err combines every frame failure, or returns nil when all frames succeeded.
func (b *Batch) Err() error {
	return multierr.Combine(lo.Map(b.Failures, func(f Failure, _ int) error { return f.Err })...)
}

// Summary describes a batch for reporting.
type Summary struct {
	Frames       int
	Succeeded    int
	Failed       int
	WithScan     int
	Points       int
	Projections  int
	MeanDuration time.Duration
	P95Duration  time.Duration
	Wall         time.Duration
}

// Summary aggregates the successful results of the batch.
func (b *Batch) Summary() Summary {
	ok := lo.Filter(b.Results, func(r Result, _ int) bool { return r.Err == nil })
	s := Summary{
		Frames:    len(b.Results),
		Succeeded: b.Succeeded(),
		Failed:    b.Failed(),
		WithScan:  lo.CountBy(ok, func(r Result) bool { return r.HasScan }),
		Wall:      b.Finished.Sub(b.Started),
	}
	for _, r := range ok {
		if r.Cloud != nil {
			s.Points += r.Cloud.Size()
		}
		s.Projections += len(r.Projections)
	}
	durations := lo.Map(ok, func(r Result, _ int) float64 { return float64(r.Duration) })
	if mean, err := stats.Mean(durations); err == nil {
		s.MeanDuration = time.Duration(mean)
	}
	if p95, err := stats.Percentile(durations, 95); err == nil {
		s.P95Duration = time.Duration(p95)
	}
	return s
}

// Run processes frames on at most the configured number of workers. A failed frame does not
// stop the others. Once ctx is done, frames not yet started fail with the context error.
func (p *Pipeline) Run(ctx context.Context, frames []Frame) *Batch {
	ctx, span := trace.StartSpan(ctx, "pipeline::Pipeline::Run")
	defer span.End()

	batch := &Batch{
		ID:      uuid.New(),
		Results: make([]Result, len(frames)),
		Started: p.clock.Now(),
	}
	logger := p.logger.With("batch", batch.ID.String())
	logger.Infow("starting batch", "frames", len(frames), "workers", p.workers)

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range frames {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				batch.Results[i] = Result{
					FrameID:        frames[i].ID,
					ImageTimestamp: frames[i].ImageTimestamp,
					ScanTimestamp:  frames[i].ScanTimestamp,
					HasScan:        frames[i].HasScan(),
					Err:            err,
				}
				return nil
			}
			batch.Results[i] = p.ProcessFrame(ctx, frames[i])
			return nil
		})
	}
	//nolint:errcheck
	g.Wait()

	batch.Finished = p.clock.Now()
	for _, r := range batch.Results {
		if r.Err != nil {
			batch.Failures = append(batch.Failures, Failure{FrameID: r.FrameID, Err: r.Err})
		}
	}
	logger.Infow("batch done", "succeeded", batch.Succeeded(), "failed", batch.Failed(), "wall", batch.Finished.Sub(batch.Started))
	return batch
}
