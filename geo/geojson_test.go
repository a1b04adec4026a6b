// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"encoding/json"
	"testing"
)

func TestPoint(t *testing.T) {
	feature := Point(-122.4194, 37.7749, map[string]any{"name": "San Francisco"})

	geometry := feature["geometry"].(map[string]any)
	if geometry["type"] != "Point" {
		t.Fatalf("geometry type = %v", geometry["type"])
	}
	coordinates := geometry["coordinates"].([]any)
	if coordinates[0] != -122.4194 || coordinates[1] != 37.7749 {
		t.Fatalf("coordinates = %v", coordinates)
	}
	properties := feature["properties"].(map[string]any)
	if properties["name"] != "San Francisco" {
		t.Fatalf("properties = %v", properties)
	}
}

func TestPointNilProperties(t *testing.T) {
	feature := Point(0, 0, nil)

	// Renderers reject null properties; the helper must emit {}.
	encoded, err := json.Marshal(feature)
	if err != nil {
		t.Fatalf("marshaling feature: %v", err)
	}
	var decoded struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshaling feature: %v", err)
	}
	if decoded.Properties == nil {
		t.Fatal("properties serialized as null")
	}
}

func TestFeatureCollection(t *testing.T) {
	collection := FeatureCollection([]map[string]any{
		Point(-122.4, 37.8, nil),
		Point(-74.0, 40.7, nil),
	})
	if collection["type"] != "FeatureCollection" {
		t.Fatalf("type = %v", collection["type"])
	}
	if features := collection["features"].([]any); len(features) != 2 {
		t.Fatalf("got %d features, want 2", len(features))
	}
}

func TestFeatureCollectionEmpty(t *testing.T) {
	collection := FeatureCollection(nil)
	encoded, err := json.Marshal(collection)
	if err != nil {
		t.Fatalf("marshaling collection: %v", err)
	}
	if string(encoded) != `{"features":[],"type":"FeatureCollection"}` {
		t.Fatalf("empty collection = %s", encoded)
	}
}

func TestBoundsToPolygon(t *testing.T) {
	feature := BoundsToPolygon(Bounds{XMin: -122.5, YMin: 37.7, XMax: -122.3, YMax: 37.9})

	geometry := feature["geometry"].(map[string]any)
	if geometry["type"] != "Polygon" {
		t.Fatalf("geometry type = %v", geometry["type"])
	}
	rings := geometry["coordinates"].([]any)
	if len(rings) != 1 {
		t.Fatalf("got %d rings, want 1", len(rings))
	}
	ring := rings[0].([]any)
	if len(ring) != 5 {
		t.Fatalf("ring has %d points, want 5 (closed)", len(ring))
	}
	first := ring[0].([]any)
	last := ring[4].([]any)
	if first[0] != last[0] || first[1] != last[1] {
		t.Fatalf("ring not closed: first %v, last %v", first, last)
	}
}

func TestFromCoordinates(t *testing.T) {
	collection, err := FromCoordinates(
		[][2]float64{{-122.4194, 37.7749}, {-74.0060, 40.7128}},
		[]map[string]any{{"name": "SF"}, {"name": "NYC"}},
	)
	if err != nil {
		t.Fatalf("FromCoordinates: %v", err)
	}
	features := collection["features"].([]any)
	if len(features) != 2 {
		t.Fatalf("got %d features, want 2", len(features))
	}
	second := features[1].(map[string]any)
	if second["properties"].(map[string]any)["name"] != "NYC" {
		t.Fatalf("second feature properties = %v", second["properties"])
	}
}

func TestFromCoordinatesPropertyCountMismatch(t *testing.T) {
	_, err := FromCoordinates(
		[][2]float64{{0, 0}, {1, 1}},
		[]map[string]any{{"only": "one"}},
	)
	if err == nil {
		t.Fatal("FromCoordinates accepted a property count mismatch")
	}
}

func TestFromLatLngSwapsOrder(t *testing.T) {
	// GPS order (lat, lng) becomes GeoJSON order (lng, lat).
	collection, err := FromLatLng([][2]float64{{37.7749, -122.4194}}, nil)
	if err != nil {
		t.Fatalf("FromLatLng: %v", err)
	}
	feature := collection["features"].([]any)[0].(map[string]any)
	coordinates := feature["geometry"].(map[string]any)["coordinates"].([]any)
	if coordinates[0] != -122.4194 || coordinates[1] != 37.7749 {
		t.Fatalf("coordinates = %v, want [-122.4194, 37.7749]", coordinates)
	}
}
