// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Job is a YAML batch description: shared map settings plus one view
// per output file.
//
//	style: https://tiles.openfreemap.org/styles/liberty
//	width: 1024
//	height: 768
//	views:
//	  - center: [-122.4, 37.8]
//	    zoom: 12
//	    out: sf.png
//	  - center: [-74.0, 40.7]
//	    zoom: 11
//	    out: nyc.png
type Job struct {
	Style      string    `yaml:"style"`
	Width      int       `yaml:"width"`
	Height     int       `yaml:"height"`
	PixelRatio float64   `yaml:"pixel_ratio"`
	Views      []JobView `yaml:"views"`
}

// JobView is one camera position and its output path. Sources
// optionally installs named GeoJSON sources before this view renders;
// it requires an inline style.
type JobView struct {
	Center  []float64      `yaml:"center"`
	Zoom    float64        `yaml:"zoom"`
	Bearing float64        `yaml:"bearing"`
	Pitch   float64        `yaml:"pitch"`
	Sources map[string]any `yaml:"sources"`
	Out     string         `yaml:"out"`
}

// LoadJob reads and validates a job file. Camera ranges are left to
// the renderer facade; this validates only the job structure.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("reading job file: %w", err)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("parsing job file %s: %w", path, err)
	}

	if len(job.Views) == 0 {
		return Job{}, fmt.Errorf("job file %s has no views", path)
	}
	for i, view := range job.Views {
		if len(view.Center) != 2 {
			return Job{}, fmt.Errorf("job view %d: center needs exactly [lon, lat], got %d values", i, len(view.Center))
		}
		if view.Out == "" {
			return Job{}, fmt.Errorf("job view %d: missing output path", i)
		}
	}
	return job, nil
}
