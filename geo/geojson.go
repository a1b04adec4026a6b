// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import "fmt"

// Point builds a GeoJSON Point feature at (lng, lat). A nil
// properties map becomes an empty object, which renderers require.
func Point(lng, lat float64, properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	return map[string]any{
		"type": "Feature",
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []any{lng, lat},
		},
		"properties": properties,
	}
}

// FeatureCollection wraps features in a GeoJSON FeatureCollection.
func FeatureCollection(features []map[string]any) map[string]any {
	if features == nil {
		features = []map[string]any{}
	}
	collection := make([]any, len(features))
	for i, feature := range features {
		collection[i] = feature
	}
	return map[string]any{
		"type":     "FeatureCollection",
		"features": collection,
	}
}

// BoundsToPolygon builds a GeoJSON Polygon feature tracing the box,
// closed ring, counterclockwise from the min corner. The source
// bounds are recorded in the feature's properties.
func BoundsToPolygon(bounds Bounds) map[string]any {
	ring := []any{
		[]any{bounds.XMin, bounds.YMin},
		[]any{bounds.XMax, bounds.YMin},
		[]any{bounds.XMax, bounds.YMax},
		[]any{bounds.XMin, bounds.YMax},
		[]any{bounds.XMin, bounds.YMin},
	}
	return map[string]any{
		"type": "Feature",
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": []any{ring},
		},
		"properties": map[string]any{
			"bounds": []any{bounds.XMin, bounds.YMin, bounds.XMax, bounds.YMax},
		},
	}
}

// FromCoordinates builds a FeatureCollection of Point features from
// (lng, lat) pairs. When properties is non-nil it must carry one map
// per coordinate, matched by position.
func FromCoordinates(coordinates [][2]float64, properties []map[string]any) (map[string]any, error) {
	if properties != nil && len(properties) != len(coordinates) {
		return nil, fmt.Errorf("got %d property maps for %d coordinates", len(properties), len(coordinates))
	}
	features := make([]map[string]any, len(coordinates))
	for i, coordinate := range coordinates {
		var props map[string]any
		if properties != nil {
			props = properties[i]
		}
		features[i] = Point(coordinate[0], coordinate[1], props)
	}
	return FeatureCollection(features), nil
}

// FromLatLng is FromCoordinates for (lat, lng) pairs, the common GPS
// order, swapping each pair into GeoJSON's (lng, lat).
func FromLatLng(latlng [][2]float64, properties []map[string]any) (map[string]any, error) {
	coordinates := make([][2]float64, len(latlng))
	for i, pair := range latlng {
		coordinates[i] = [2]float64{pair[1], pair[0]}
	}
	return FromCoordinates(coordinates, properties)
}
