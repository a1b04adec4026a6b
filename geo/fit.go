// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MaxZoom is the highest zoom the renderer accepts.
	MaxZoom = 24

	// PointZoom is the zoom chosen for a degenerate (single-point)
	// bounding box, where no span exists to derive one from. Street
	// level; a fixed policy rather than a computed value.
	PointZoom = 14

	// tileSize is the world size in pixels at zoom 0.
	tileSize = 256
)

// Validation errors returned by FitBounds.
var (
	ErrInvalidLongitude = errors.New("longitude out of range [-180, 180]")
	ErrInvalidLatitude  = errors.New("latitude out of range [-90, 90]")
	ErrBoundsOrder      = errors.New("bounds out of order")
	ErrInvalidViewport  = errors.New("viewport dimensions must be positive")
	ErrPaddingTooLarge  = errors.New("padding leaves no usable viewport")
)

// Bounds is a geographic bounding box in degrees, min corner to max
// corner. A degenerate box (XMin == XMax, YMin == YMax) is a valid
// single-point input.
type Bounds struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// Valid checks coordinate ranges and corner ordering.
func (b Bounds) Valid() error {
	for _, longitude := range [2]float64{b.XMin, b.XMax} {
		if longitude < -180 || longitude > 180 || math.IsNaN(longitude) {
			return fmt.Errorf("%w: %v", ErrInvalidLongitude, longitude)
		}
	}
	for _, latitude := range [2]float64{b.YMin, b.YMax} {
		if latitude < -90 || latitude > 90 || math.IsNaN(latitude) {
			return fmt.Errorf("%w: %v", ErrInvalidLatitude, latitude)
		}
	}
	if b.XMin > b.XMax {
		return fmt.Errorf("%w: xmin %v > xmax %v", ErrBoundsOrder, b.XMin, b.XMax)
	}
	if b.YMin > b.YMax {
		return fmt.Errorf("%w: ymin %v > ymax %v", ErrBoundsOrder, b.YMin, b.YMax)
	}
	return nil
}

// Viewport is the output image size in pixels.
type Viewport struct {
	Width  int
	Height int
}

// FitOptions adjust the fit. The zero value means no padding, pixel
// ratio 1, and the renderer's maximum zoom.
type FitOptions struct {
	// Padding is the margin in pixels kept clear on every edge.
	Padding int

	// MaxZoom caps the computed zoom. Zero means MaxZoom (24).
	MaxZoom float64

	// PixelRatio is the rendering pixel ratio. Output device pixels
	// scale with it, so the zoom drops by log2(ratio) to keep the
	// same geographic extent in frame. Zero means 1.
	PixelRatio float64
}

// FitBounds computes the center and zoom that display bounds inside
// viewport. The center is the arithmetic midpoint of the box in
// degrees; the zoom is the largest level at which both spans fit the
// usable viewport, padded and capped per options, clamped to [0, 24].
//
// Deterministic: equal inputs always produce equal outputs.
func FitBounds(bounds Bounds, viewport Viewport, options FitOptions) (center [2]float64, zoom float64, err error) {
	if err := bounds.Valid(); err != nil {
		return center, 0, fmt.Errorf("fit bounds: %w", err)
	}
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return center, 0, fmt.Errorf("fit bounds: %w: %dx%d", ErrInvalidViewport, viewport.Width, viewport.Height)
	}
	if options.Padding < 0 {
		return center, 0, fmt.Errorf("fit bounds: negative padding %d", options.Padding)
	}

	maxZoom := options.MaxZoom
	if maxZoom == 0 {
		maxZoom = MaxZoom
	}
	pixelRatio := options.PixelRatio
	if pixelRatio == 0 {
		pixelRatio = 1
	}

	center = [2]float64{
		(bounds.XMin + bounds.XMax) / 2,
		(bounds.YMin + bounds.YMax) / 2,
	}

	usableWidth := float64(viewport.Width - 2*options.Padding)
	usableHeight := float64(viewport.Height - 2*options.Padding)
	if usableWidth <= 0 || usableHeight <= 0 {
		return center, 0, fmt.Errorf("fit bounds: %w: padding %d in %dx%d",
			ErrPaddingTooLarge, options.Padding, viewport.Width, viewport.Height)
	}

	lonSpan := bounds.XMax - bounds.XMin
	mercSpan := mercatorY(bounds.YMax) - mercatorY(bounds.YMin)

	if lonSpan == 0 && mercSpan == 0 {
		return center, math.Min(PointZoom, maxZoom), nil
	}

	// Per-axis zoom at which the span exactly fills the usable
	// dimension, world = 256px at zoom 0, doubling per level. A zero
	// span on one axis yields +Inf there and the other axis governs.
	zoomX := math.Log2(usableWidth * 360 / (tileSize * lonSpan))
	zoomY := math.Log2(usableHeight * 2 * math.Pi / (tileSize * mercSpan))

	zoom = math.Min(math.Min(zoomX, zoomY), maxZoom)
	zoom -= math.Log2(pixelRatio)
	zoom = math.Max(0, math.Min(zoom, MaxZoom))
	return center, zoom, nil
}

// mercatorY projects latitude to the Web Mercator vertical axis,
// ln(tan(pi/4 + lat/2)).
func mercatorY(latitude float64) float64 {
	radians := latitude * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + radians/2))
}
