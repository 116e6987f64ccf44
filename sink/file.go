package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"

	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/pipeline"
	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/utils"
)

// InProgressFileExt marks an output file that is still being written.
const InProgressFileExt = ".prog"

const (
	overlayPointRadius = 1.5
	overlayFontSize    = 10
)

// File name suffixes for the outputs of one frame.
const (
	ImageSuffix       = ".png"
	CloudSuffix       = ".pcd"
	GroundSuffix      = "_ground.pcd"
	ProjectionsSuffix = "_projections.csv"
	OverlaySuffix     = "_overlay.png"
)

// ProjectionsHeader is the header row of the projections CSV.
var ProjectionsHeader = []string{"index", "u", "v", "depth", "x", "y", "z", "intensity"}

// Stats counts what a FileSink has written.
type Stats struct {
	Frames int64
	Files  int64
	Bytes  int64
}

// FileSink writes each result as a set of files named after the frame:
// <frame>.png, <frame>.pcd, <frame>_ground.pcd, <frame>_projections.csv and <frame>_overlay.png.
// Files are written under an in-progress name and renamed once complete.
type FileSink struct {
	dir     string
	pcdType pointcloud.PCDType
	logger  logging.Logger

	mu     sync.RWMutex
	closed bool

	frames atomic.Int64
	files  atomic.Int64
	bytes  atomic.Int64
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string, pcdType pointcloud.PCDType, logger logging.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", dir)
	}
	return &FileSink{dir: dir, pcdType: pcdType, logger: logger}, nil
}

// Dir returns the output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Stats returns the counts so far.
func (s *FileSink) Stats() Stats {
	return Stats{Frames: s.frames.Load(), Files: s.files.Load(), Bytes: s.bytes.Load()}
}

// Write stores res. Results carrying an error are skipped.
func (s *FileSink) Write(ctx context.Context, res pipeline.Result) error {
	ctx, span := trace.StartSpan(ctx, "sink::FileSink::Write")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if res.Err != nil {
		s.logger.Debugw("skipping failed frame", "frame", res.FrameID)
		return nil
	}

	if res.Image != nil {
		if err := s.writeFile(res.FrameID+ImageSuffix, func(w io.Writer) error {
			return imaging.Encode(w, res.Image, imaging.PNG)
		}); err != nil {
			return err
		}
	}
	if res.Cloud != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeFile(res.FrameID+CloudSuffix, func(w io.Writer) error {
			return pointcloud.ToPCD(res.Cloud, w, s.pcdType)
		}); err != nil {
			return err
		}
		if err := s.writeFile(res.FrameID+ProjectionsSuffix, func(w io.Writer) error {
			return writeProjections(w, res)
		}); err != nil {
			return err
		}
		if res.Image != nil {
			if err := s.writeFile(res.FrameID+OverlaySuffix, func(w io.Writer) error {
				return imaging.Encode(w, Overlay(res), imaging.PNG)
			}); err != nil {
				return err
			}
		}
	}
	if res.Ground != nil {
		if err := s.writeFile(res.FrameID+GroundSuffix, func(w io.Writer) error {
			return pointcloud.ToPCD(res.Ground, w, s.pcdType)
		}); err != nil {
			return err
		}
	}
	s.frames.Inc()
	return nil
}

// Close stops further writes. It waits for writes in flight.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.logger.Debugw("closed file sink", "dir", s.dir, "frames", s.frames.Load(), "bytes", s.bytes.Load())
	return nil
}

func (s *FileSink) writeFile(name string, write func(io.Writer) error) error {
	final := filepath.Join(s.dir, name)
	tmp := final + InProgressFileExt
	//nolint:gosec
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	guard := utils.NewGuard(func() {
		//nolint:errcheck
		f.Close()
		//nolint:errcheck
		os.Remove(tmp)
	})
	defer guard.OnFail()

	cw := &countingWriter{w: f}
	if err := write(cw); err != nil {
		return errors.Wrapf(err, "writing %s", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", name)
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.Wrapf(err, "renaming %s", name)
	}
	guard.Success()
	s.files.Inc()
	s.bytes.Add(cw.n)
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func writeProjections(w io.Writer, res pipeline.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ProjectionsHeader); err != nil {
		return err
	}
	format := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	for _, p := range res.Projections {
		pt := res.Cloud.At(p.Index)
		if err := cw.Write([]string{
			strconv.Itoa(p.Index),
			format(p.X), format(p.Y), format(p.Depth),
			format(pt.Position.X), format(pt.Position.Y), format(pt.Position.Z),
			format(pt.Intensity),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Overlay draws the projected points of res over its rectified image, colored by depth, and
// labels the frame.
func Overlay(res pipeline.Result) image.Image {
	dc := gg.NewContextForImage(res.Image)
	if res.Depth != nil {
		minDepth, maxDepth := res.Depth.MinMax()
		for _, p := range res.Projections {
			rimage.DrawPoint(dc, p.X, p.Y, overlayPointRadius, rimage.DepthColor(p.Depth, minDepth, maxDepth))
		}
	}
	// Images too small for a readable label get only the points.
	if dc.Height() >= 3*overlayFontSize {
		label := fmt.Sprintf("%s  %d pts", res.FrameID, len(res.Projections))
		rimage.DrawLabel(dc, label, image.Point{4, 4}, color.White, overlayFontSize)
	}
	return dc.Image()
}
