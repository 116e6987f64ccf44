// Package sink persists pipeline results.
package sink

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/avclean/pipeline"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("sink is closed")

// A Sink receives frame results. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, res pipeline.Result) error
	Close() error
}

// WriteBatch writes every successful result of batch to s in frame order. A failed write does
// not stop the remaining ones; all write errors are returned together.
func WriteBatch(ctx context.Context, s Sink, batch *pipeline.Batch) error {
	ctx, span := trace.StartSpan(ctx, "sink::WriteBatch")
	defer span.End()

	var err error
	for _, res := range batch.Results {
		if res.Err != nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return multierr.Combine(err, ctxErr)
		}
		err = multierr.Combine(err, errors.Wrap(s.Write(ctx, res), res.FrameID))
	}
	return err
}
