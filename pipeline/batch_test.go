package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/synthetic"
	"go.viam.com/avclean/utils"
)

func TestRunKeepsOrderAndIsolatesFailures(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := testConfig(t, true)
	scene := testScene(t, cfg, synthetic.SceneConfig{
		Frames: 6, GroundPoints: 200, WallPoints: 60, Outliers: 4, DropScanEvery: 3, Seed: 9,
	})

	p, err := New(cfg, scene.Poses, logger, clock.NewMock())
	test.That(t, err, test.ShouldBeNil)
	frames, err := AssembleFrames(scene.Images, scene.Scans, cfg.SyncToleranceUs)
	test.That(t, err, test.ShouldBeNil)
	frames[4].Image = nil

	batch := p.Run(context.Background(), frames)
	test.That(t, len(batch.Results), test.ShouldEqual, 6)
	for i, r := range batch.Results {
		test.That(t, r.FrameID, test.ShouldEqual, frames[i].ID)
	}
	test.That(t, batch.Failed(), test.ShouldEqual, 1)
	test.That(t, batch.Succeeded(), test.ShouldEqual, 5)
	test.That(t, batch.Failures[0].FrameID, test.ShouldEqual, frames[4].ID)
	test.That(t, errors.Is(batch.Err(), utils.ErrConfiguration), test.ShouldBeTrue)
	test.That(t, p.RemapComputations(), test.ShouldEqual, int64(1))

	summary := batch.Summary()
	test.That(t, summary.Frames, test.ShouldEqual, 6)
	test.That(t, summary.Failed, test.ShouldEqual, 1)
	// Frames 2 and 5 have no sweep and frame 4 failed.
	test.That(t, summary.WithScan, test.ShouldEqual, 3)
	test.That(t, summary.Points, test.ShouldBeGreaterThan, 0)
	test.That(t, summary.Projections, test.ShouldBeGreaterThan, 0)
}

func TestRunCanceled(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := testConfig(t, false)
	scene := testScene(t, cfg, synthetic.SceneConfig{Frames: 3, GroundPoints: 50, WallPoints: 10, Seed: 1})
	p, err := New(cfg, nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	frames, err := AssembleFrames(scene.Images, scene.Scans, cfg.SyncToleranceUs)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch := p.Run(ctx, frames)
	test.That(t, batch.Failed(), test.ShouldEqual, 3)
	test.That(t, len(multierr.Errors(batch.Err())), test.ShouldEqual, 3)
	test.That(t, errors.Is(batch.Err(), context.Canceled), test.ShouldBeTrue)
}

func TestEmptyBatch(t *testing.T) {
	logger := logging.NewTestLogger(t)
	p, err := New(testConfig(t, false), nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	batch := p.Run(context.Background(), nil)
	test.That(t, batch.Err(), test.ShouldBeNil)
	test.That(t, batch.Summary().Frames, test.ShouldEqual, 0)
}
