// Package pipeline pairs camera images with LIDAR sweeps and runs each pair through
// rectification, cloud cleaning, deskewing and projection on a bounded worker pool.
package pipeline

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/timeindex"
	"go.viam.com/avclean/utils"
)

// Frame is one camera image and, when one was captured close enough, the LIDAR sweep paired
// with it.
type Frame struct {
	ID             string
	ImageTimestamp int64
	Image          image.Image

	// Scan is nil for image-only frames.
	Scan          *pointcloud.PointCloud
	ScanTimestamp int64
}

// HasScan reports whether the frame carries a sweep.
func (f Frame) HasScan() bool {
	return f.Scan != nil
}

// FrameID names the i-th frame, captured at ts.
func FrameID(i int, ts int64) string {
	return fmt.Sprintf("frame_%06d_%d", i, ts)
}

// AssembleFrames pairs every image with the sweep nearest in time, if that sweep is within
// tolerance microseconds. Frames follow image time order. A sweep may be paired with more than
// one image.
func AssembleFrames(
	images []timeindex.Sample[image.Image],
	scans []timeindex.Sample[*pointcloud.PointCloud],
	tolerance int64,
) ([]Frame, error) {
	if tolerance < 0 {
		return nil, utils.NewConfigurationError("sync_tolerance_us", tolerance, "must not be negative")
	}
	imageStream := timeindex.NewSortedStream(images)
	scanStream := timeindex.NewSortedStream(scans)

	frames := lo.Map(imageStream.Samples(), func(img timeindex.Sample[image.Image], i int) Frame {
		return Frame{ID: FrameID(i, img.Timestamp), ImageTimestamp: img.Timestamp, Image: img.Payload}
	})
	if scanStream.Len() == 0 {
		return frames, nil
	}
	for i := range frames {
		scan, err := scanStream.NearestWithin(frames[i].ImageTimestamp, tolerance)
		if err != nil {
			if errors.Is(err, utils.ErrOutOfRange) {
				continue
			}
			return nil, err
		}
		frames[i].Scan = scan.Payload
		frames[i].ScanTimestamp = scan.Timestamp
	}
	return frames, nil
}
