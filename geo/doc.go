// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package geo provides viewport fitting and GeoJSON construction for
// map rendering. FitBounds turns a geographic bounding box into the
// center and zoom that frame it in a pixel viewport; the GeoJSON
// helpers build the feature documents that renderers accept as inline
// sources. Everything here is pure computation, no I/O.
package geo
