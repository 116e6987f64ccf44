// Package cli contains the avclean command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	// Command flags.
	flagConfig   = "config"
	flagInput    = "input"
	flagOutput   = "output"
	flagFrames   = "frames"
	flagOut      = "out"
	flagSeed     = "seed"
	flagPCD      = "pcd"
	flagDropScan = "drop-scan-every"
)

var app = &cli.App{
	Name:            "avclean",
	Usage:           "clean, rectify and align camera and LIDAR recordings",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "also write JSON logs to `FILE`, overriding the config",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "rectify",
			Usage:     "demosaic and undistort a single raw camera image",
			UsageText: "avclean rectify --config <path> --input <image> --output <image>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagConfig,
					Aliases:  []string{"c"},
					Usage:    "load configuration from `FILE`",
					Required: true,
				},
				&cli.StringFlag{
					Name:     flagInput,
					Usage:    "raw image to read",
					Required: true,
				},
				&cli.StringFlag{
					Name:     flagOutput,
					Usage:    "where to write the rectified image; the extension picks the format",
					Required: true,
				},
			},
			Action: RectifyAction,
		},
		{
			Name:      "demo",
			Usage:     "run the full pipeline over a generated drive and write the results",
			UsageText: "avclean demo --out <dir> [--config <path>] [--frames <n>]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagConfig,
					Aliases: []string{"c"},
					Usage:   "load configuration from `FILE`; a built-in demo camera is used otherwise",
				},
				&cli.IntFlag{
					Name:  flagFrames,
					Usage: "number of frames to generate",
					Value: 10,
				},
				&cli.Int64Flag{
					Name:  flagSeed,
					Usage: "random seed of the generated scene",
					Value: 1,
				},
				&cli.IntFlag{
					Name:  flagDropScan,
					Usage: "leave every n-th frame without a sweep",
				},
				&cli.StringFlag{
					Name:  flagPCD,
					Usage: "point cloud encoding: ascii or binary",
					Value: "binary",
				},
				&cli.StringFlag{
					Name:     flagOut,
					Usage:    "output directory",
					Required: true,
				},
			},
			Action: DemoAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the config file",
			Action: SchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
