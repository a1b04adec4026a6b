// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package mlnative

import "errors"

// Validation and lifecycle errors. Discriminate with errors.Is; the
// wrapped message names the offending value.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("map is closed")

	// ErrInvalidDimensions rejects non-positive or oversized output
	// dimensions at construction.
	ErrInvalidDimensions = errors.New("invalid map dimensions")

	// ErrInvalidCenter rejects non-finite center coordinates.
	ErrInvalidCenter = errors.New("center coordinates must be finite")

	// ErrInvalidLongitude rejects center longitudes outside
	// [-180, 180].
	ErrInvalidLongitude = errors.New("longitude out of range [-180, 180]")

	// ErrInvalidLatitude rejects center latitudes outside [-90, 90].
	ErrInvalidLatitude = errors.New("latitude out of range [-90, 90]")

	// ErrInvalidZoom rejects zoom levels outside [0, 24].
	ErrInvalidZoom = errors.New("zoom out of range [0, 24]")

	// ErrInvalidPitch rejects pitch angles outside [0, 85].
	ErrInvalidPitch = errors.New("pitch out of range [0, 85]")

	// ErrRequiresInlineStyle is returned when a GeoJSON source update
	// is requested while the active style is a URL reference. Only an
	// inline style document has a sources map to mutate.
	ErrRequiresInlineStyle = errors.New("operation requires an inline style document")

	// ErrStyleNotFound is returned by LoadStyle for a missing style
	// file path.
	ErrStyleNotFound = errors.New("style file not found")

	// ErrInvalidStyle is returned for style inputs that are neither a
	// URL, a readable JSON/JSONC file, nor a document.
	ErrInvalidStyle = errors.New("invalid style")
)
