package transform

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/geo/r2"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/utils"
)

// RectifierConfig controls how images are undistorted.
type RectifierConfig struct {
	Border        rimage.BorderPolicy
	MaxIterations int
	Tolerance     float64
}

// RemapTable holds, for every pixel of the rectified image, the location in the distorted
// image it is sampled from. Tables are immutable once built.
type RemapTable struct {
	Width  int
	Height int

	src   []r2.Point
	valid []bool
}

// Source returns the distorted image location for rectified pixel (u, v). ok is false when
// the lens model has no finite source for the pixel; such pixels are always black.
func (t *RemapTable) Source(u, v int) (r2.Point, bool) {
	i := v*t.Width + u
	return t.src[i], t.valid[i]
}

// Rectifier removes lens distortion. Remap tables are cached per camera model and resolution
// and concurrent requests for a missing table share a single computation.
type Rectifier struct {
	cfg    RectifierConfig
	logger logging.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	tables map[string]*RemapTable

	computed atomic.Int64
}

// NewRectifier returns a rectifier with an empty remap cache.
func NewRectifier(cfg RectifierConfig, logger logging.Logger) *Rectifier {
	if cfg.Border == "" {
		cfg.Border = rimage.BorderBlack
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Rectifier{cfg: cfg, logger: logger, tables: map[string]*RemapTable{}}
}

// Computations returns how many remap tables have been built.
func (r *Rectifier) Computations() int64 {
	return r.computed.Load()
}

// CacheSize returns the number of cached remap tables.
func (r *Rectifier) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// Table returns the remap table for model, computing it at most once per key.
func (r *Rectifier) Table(ctx context.Context, model *PinholeCameraModel) (*RemapTable, error) {
	if model == nil {
		return nil, NewNoIntrinsicsError("camera model is nil")
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	key := model.Key()

	r.mu.RLock()
	table, ok := r.tables[key]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		table, ok := r.tables[key]
		r.mu.RUnlock()
		if ok {
			return table, nil
		}
		table, err := r.buildTable(ctx, model)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.tables[key] = table
		r.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debugw("shared remap table computation", "key", key)
	}
	return v.(*RemapTable), nil
}

func (r *Rectifier) buildTable(ctx context.Context, model *PinholeCameraModel) (*RemapTable, error) {
	ctx, span := trace.StartSpan(ctx, "transform::Rectifier::buildTable")
	defer span.End()

	width, height := model.Width, model.Height
	table := &RemapTable{
		Width:  width,
		Height: height,
		src:    make([]r2.Point, width*height),
		valid:  make([]bool, width*height),
	}
	var invalid atomic.Int64
	if err := utils.GroupWorkParallel(ctx, height, nil, func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(_, v int) {
			for u := 0; u < width; u++ {
				i := v*width + u
				table.src[i], table.valid[i] = model.SourcePixel(float64(u), float64(v), r.cfg.MaxIterations, r.cfg.Tolerance)
				if !table.valid[i] {
					invalid.Inc()
				}
			}
		}, nil
	}); err != nil {
		return nil, err
	}
	r.computed.Inc()
	r.logger.Debugw("built remap table", "width", width, "height", height, "model", model.Key(), "invalid", invalid.Load())
	return table, nil
}

// Undistort returns a new image, the size of img, with the lens distortion of model removed.
// Pixels whose source falls outside the image follow the configured border policy.
func (r *Rectifier) Undistort(ctx context.Context, img image.Image, model *PinholeCameraModel) (*image.RGBA64, error) {
	ctx, span := trace.StartSpan(ctx, "transform::Rectifier::Undistort")
	defer span.End()

	if img == nil {
		return nil, utils.NewConfigurationError("image", nil, "input image is nil")
	}
	table, err := r.Table(ctx, model)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() != table.Width || bounds.Dy() != table.Height {
		return nil, utils.NewConfigurationError(
			"image", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
			fmt.Sprintf("dimension does not match intrinsics %dx%d", table.Width, table.Height),
		)
	}

	src := toRGBA64(img)
	out := image.NewRGBA64(image.Rect(0, 0, table.Width, table.Height))
	if err := utils.ParallelForEachPixel(image.Point{table.Width, table.Height}, func(u, v int) {
		p, ok := table.Source(u, v)
		if !ok {
			out.SetRGBA64(u, v, color.RGBA64{})
			return
		}
		out.SetRGBA64(u, v, rimage.SampleBilinear(src, p.X, p.Y, r.cfg.Border))
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func toRGBA64(img image.Image) *image.RGBA64 {
	if rgba, ok := img.(*image.RGBA64); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	out := image.NewRGBA64(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
