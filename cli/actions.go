package cli

import (
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/avclean/config"
	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/pipeline"
	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/rimage/transform"
	"go.viam.com/avclean/sink"
	"go.viam.com/avclean/synthetic"
	"go.viam.com/avclean/utils"
)

// DemoConfig is the configuration demo uses when none is given: a 320x240 camera with mild
// barrel distortion looking forward from 1.5m, and a LIDAR mounted 1.8m up.
func DemoConfig() *config.Config {
	seed := int64(pointcloud.DefaultGroundSeed)
	return &config.Config{
		Camera: config.CameraConfig{
			Intrinsics: &transform.PinholeCameraIntrinsics{
				Width: 320, Height: 240, Fx: 250, Fy: 250, Ppx: 160, Ppy: 120,
			},
			Distortion: config.DistortionConfig{
				Model:      string(transform.BrownConradyDistortionType),
				Parameters: []float64{0.05, 0.01},
			},
			BayerPattern: string(rimage.BayerRGGB),
		},
		CameraFromVehicle: config.TransformConfig{Matrix: &[16]float64{
			0, -1, 0, 0,
			0, 0, -1, 1.5,
			1, 0, 0, 0,
			0, 0, 0, 1,
		}},
		VehicleFromLidar: config.TransformConfig{Translation: [3]float64{0, 0, 1.8}},
		Filters: []config.FilterConfig{
			{Type: config.StatisticalOutlierFilter, Attributes: utils.AttributeMap{"k": 8, "std_ratio": 2.0}},
			{Type: config.GroundFilter, Attributes: utils.AttributeMap{"max_iterations": 100, "threshold": 0.05, "seed": seed}},
		},
		Deskew: config.DeskewConfig{Enabled: true, Reference: "middle"},
	}
}

// loadConfig reads the config named by --config, or falls back to def when that flag is
// unset, and builds the logger it describes.
func loadConfig(c *cli.Context, def func() *config.Config) (*config.Config, logging.Logger, func() error, error) {
	var cfg *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, nil, nil, err
		}
	} else {
		cfg = def()
		if err := cfg.Ensure(); err != nil {
			return nil, nil, nil, err
		}
	}
	if file := c.String(generalFlagLogFile); file != "" {
		cfg.Log.File = file
	}
	logger, closeLog, err := cfg.Log.NewLogger("avclean", c.Bool(generalFlagDebug))
	if err != nil {
		return nil, nil, nil, err
	}
	logging.ReplaceGlobal(logger)
	return cfg, logger, closeLog, nil
}

// RectifyAction demosaics and undistorts one image.
func RectifyAction(c *cli.Context) (err error) {
	cfg, logger, closeLog, err := loadConfig(c, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, closeLog())
	}()

	calib, err := cfg.Calibration()
	if err != nil {
		return err
	}
	img, err := imaging.Open(c.String(flagInput))
	if err != nil {
		return errors.Wrapf(err, "reading %s", c.String(flagInput))
	}
	if calib.Pattern != "" {
		demosaiced, err := rimage.Demosaic(img, calib.Pattern)
		if err != nil {
			return err
		}
		img = demosaiced
	}

	start := time.Now()
	rectifier := transform.NewRectifier(calib.Rectifier, logger.Sublogger("rectifier"))
	rectified, err := rectifier.Undistort(c.Context, img, calib.Camera)
	if err != nil {
		return err
	}
	if err := imaging.Save(rectified, c.String(flagOutput)); err != nil {
		return errors.Wrapf(err, "writing %s", c.String(flagOutput))
	}
	logger.Debugw("rectified image", "input", c.String(flagInput), "duration", time.Since(start))

	bounds := rectified.Bounds()
	fmt.Fprintf(c.App.Writer, "%s %s (%dx%d)\n", color.GreenString("wrote"), c.String(flagOutput), bounds.Dx(), bounds.Dy())
	return nil
}

// DemoAction generates a drive, runs the pipeline over it, writes every result and prints
// a summary.
func DemoAction(c *cli.Context) (err error) {
	cfg, logger, closeLog, err := loadConfig(c, DemoConfig)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, closeLog())
	}()

	pcdType, err := pointcloud.ParsePCDType(c.String(flagPCD))
	if err != nil {
		return err
	}
	calib, err := cfg.Calibration()
	if err != nil {
		return err
	}
	scene, err := synthetic.Generate(synthetic.SceneConfig{
		Frames:        c.Int(flagFrames),
		DropScanEvery: c.Int(flagDropScan),
		RelativePoses: cfg.Poses.Relative,
		Seed:          c.Int64(flagSeed),
	}, calib)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, scene.Poses, logger.Sublogger("pipeline"), nil)
	if err != nil {
		return err
	}
	frames, err := pipeline.AssembleFrames(scene.Images, scene.Scans, cfg.SyncToleranceUs)
	if err != nil {
		return err
	}
	batch := p.Run(c.Context, frames)

	out, err := sink.NewFileSink(c.String(flagOut), pcdType, logger.Sublogger("sink"))
	if err != nil {
		return err
	}
	writeErr := multierr.Combine(sink.WriteBatch(c.Context, out, batch), out.Close())

	fmt.Fprintln(c.App.Writer, summaryTable(batch.Summary(), out.Stats()))
	if batch.Failed() > 0 {
		fmt.Fprintf(c.App.Writer, "%s %d of %d frames\n", color.RedString("failed"), batch.Failed(), len(frames))
		for _, f := range batch.Failures {
			fmt.Fprintf(c.App.ErrWriter, "  %s: %v\n", f.FrameID, f.Err)
		}
		return multierr.Combine(writeErr, errors.Errorf("%d frames failed", batch.Failed()))
	}
	if writeErr != nil {
		return writeErr
	}
	fmt.Fprintf(c.App.Writer, "%s batch %s to %s\n", color.GreenString("wrote"), batch.ID, out.Dir())
	return nil
}

func summaryTable(s pipeline.Summary, written sink.Stats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Frames", s.Frames},
		{"Succeeded", s.Succeeded},
		{"Failed", s.Failed},
		{"With sweep", s.WithScan},
		{"Points kept", s.Points},
		{"Projections", s.Projections},
		{"Mean frame", s.MeanDuration.Round(time.Microsecond)},
		{"P95 frame", s.P95Duration.Round(time.Microsecond)},
		{"Wall", s.Wall.Round(time.Millisecond)},
		{"Files", written.Files},
		{"Written", units.HumanSize(float64(written.Bytes))},
	})
	return t.Render()
}

// SchemaAction prints the config schema.
func SchemaAction(c *cli.Context) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(schema))
	return nil
}
