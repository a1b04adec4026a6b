// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// mlnative-snapshot renders styled map images to PNG files from the
// command line. One invocation renders either a single view
// (--center/--zoom or --bounds) or a YAML batch job (--job) with one
// output file per view.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/adonm/mlnative"
	"github.com/adonm/mlnative/geo"
	"github.com/adonm/mlnative/renderstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("mlnative-snapshot", pflag.ContinueOnError)

	style := flagSet.String("style", "", "style URL or .json/.jsonc file (default: OpenFreeMap Liberty)")
	width := flagSet.Int("width", 512, "output width in pixels")
	height := flagSet.Int("height", 512, "output height in pixels")
	center := flagSet.Float64Slice("center", nil, "camera center as lon,lat")
	zoom := flagSet.Float64("zoom", 0, "zoom level (0-24)")
	bearing := flagSet.Float64("bearing", 0, "rotation in degrees")
	pitch := flagSet.Float64("pitch", 0, "tilt in degrees (0-85)")
	bounds := flagSet.Float64Slice("bounds", nil, "fit the viewport to xmin,ymin,xmax,ymax instead of --center/--zoom")
	padding := flagSet.Int("padding", 0, "pixel margin kept clear when fitting --bounds")
	pixelRatio := flagSet.Float64("pixel-ratio", 1, "pixel ratio for high-DPI output")
	out := flagSet.String("out", "map.png", "output PNG path")
	cacheDir := flagSet.String("cache-dir", "", "enable the render cache in this directory")
	jobPath := flagSet.String("job", "", "YAML batch job file (overrides the single-view flags)")
	binaryPath := flagSet.String("renderer", "", "renderer binary path override")
	timeout := flagSet.Duration("timeout", 0, "per-command timeout (default 30s, MLNATIVE_TIMEOUT respected)")
	logLevel := flagSet.String("log-level", "info", "log level: debug, info, warn, error")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger, err := buildLogger(*logLevel)
	if err != nil {
		return err
	}

	var job *Job
	if *jobPath != "" {
		loaded, err := LoadJob(*jobPath)
		if err != nil {
			return err
		}
		job = &loaded
		if job.Width > 0 {
			*width = job.Width
		}
		if job.Height > 0 {
			*height = job.Height
		}
		if job.PixelRatio > 0 {
			*pixelRatio = job.PixelRatio
		}
		if job.Style != "" {
			*style = job.Style
		}
	}

	options := []mlnative.Option{
		mlnative.WithPixelRatio(*pixelRatio),
		mlnative.WithLogger(logger),
	}
	if *binaryPath != "" {
		options = append(options, mlnative.WithBinaryPath(*binaryPath))
	}
	if *timeout > 0 {
		options = append(options, mlnative.WithTimeout(*timeout))
	}
	if *cacheDir != "" {
		store, err := renderstore.Open(*cacheDir, logger)
		if err != nil {
			return err
		}
		options = append(options, mlnative.WithCache(store))
	}

	m, err := mlnative.New(*width, *height, options...)
	if err != nil {
		return err
	}
	defer m.Close()

	if *style != "" {
		if err := m.LoadStyle(*style); err != nil {
			return err
		}
	}

	if job != nil {
		return renderJob(m, *job, logger)
	}

	var image []byte
	switch {
	case len(*bounds) > 0:
		box, err := parseBounds(*bounds)
		if err != nil {
			return err
		}
		image, err = m.RenderBounds(box, mlnative.FitPadding(*padding))
		if err != nil {
			return err
		}
	case len(*center) > 0:
		if len(*center) != 2 {
			return fmt.Errorf("--center needs exactly lon,lat, got %d values", len(*center))
		}
		image, err = m.Render(mlnative.View{
			Center:  [2]float64{(*center)[0], (*center)[1]},
			Zoom:    *zoom,
			Bearing: *bearing,
			Pitch:   *pitch,
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --center, --bounds, or --job is required")
	}

	if err := os.WriteFile(*out, image, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	logger.Info("snapshot written", "path", *out, "bytes", len(image))
	return nil
}

// renderJob renders every job view in one batch and writes each image
// to its configured output path.
func renderJob(m *mlnative.Map, job Job, logger *slog.Logger) error {
	views := make([]mlnative.View, len(job.Views))
	for i, view := range job.Views {
		views[i] = mlnative.View{
			Center:  [2]float64{view.Center[0], view.Center[1]},
			Zoom:    view.Zoom,
			Bearing: view.Bearing,
			Pitch:   view.Pitch,
			Sources: view.Sources,
		}
	}

	started := time.Now()
	images, err := m.RenderBatch(views)
	if err != nil {
		return fmt.Errorf("rendering job: %w", err)
	}
	for i, image := range images {
		if err := os.WriteFile(job.Views[i].Out, image, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", job.Views[i].Out, err)
		}
	}
	logger.Info("job complete",
		"views", len(views),
		"elapsed", time.Since(started),
	)
	return nil
}

func parseBounds(values []float64) (geo.Bounds, error) {
	if len(values) != 4 {
		return geo.Bounds{}, fmt.Errorf("--bounds needs exactly xmin,ymin,xmax,ymax, got %d values", len(values))
	}
	return geo.Bounds{
		XMin: values[0],
		YMin: values[1],
		XMax: values[2],
		YMax: values[3],
	}, nil
}

func buildLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	})), nil
}
