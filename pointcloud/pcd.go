package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// ParsePCDType maps "ascii" and "binary" to a PCDType. Empty means ascii.
func ParsePCDType(s string) (PCDType, error) {
	switch s {
	case "", "ascii":
		return PCDAscii, nil
	case "binary":
		return PCDBinary, nil
	default:
		return PCDAscii, errors.Errorf("unknown pcd format %q", s)
	}
}

// ToPCD writes the cloud as a PCD v0.7 file with fields x y z intensity, in meters.
func ToPCD(cloud *PointCloud, out io.Writer, outputType PCDType) error {
	w := bufio.NewWriter(out)
	_, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS x y z intensity\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F F\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Size(),
		cloud.Size())
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(w, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(w, "DATA ascii\n")
	default:
		return errors.Errorf("unsupported pcd type %d", outputType)
	}
	if err != nil {
		return err
	}
	if err := writePCDData(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

func writePCDData(cloud *PointCloud, out io.Writer, pcdtype PCDType) error {
	buf := make([]byte, 16)
	var err error
	cloud.Iterate(func(_ int, p Point) bool {
		if pcdtype == PCDBinary {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.Position.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Position.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Position.Z)))
			binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(p.Intensity)))
			_, err = out.Write(buf)
		} else {
			_, err = fmt.Fprintf(out, "%f %f %f %f\n", p.Position.X, p.Position.Y, p.Position.Z, p.Intensity)
		}
		return err == nil
	})
	return err
}
