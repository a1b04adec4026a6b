// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package mlnative renders styled map images to PNG through a native
// renderer child process.
//
// The Map type is the whole API for most uses:
//
//	m, err := mlnative.New(512, 512)
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	png, err := m.Render(mlnative.View{
//		Center: [2]float64{-122.4, 37.8},
//		Zoom:   12,
//	})
//
// The renderer process is spawned on the first render call and driven
// over a line-oriented JSON command protocol; see the render package
// for the process supervision layer and the geo package for viewport
// fitting and GeoJSON helpers.
package mlnative
