// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	// Maps are the CBOR structure where encoding order could vary.
	// Core Deterministic Encoding sorts keys, so repeated marshals of
	// the same map must be byte-identical.
	value := map[string]any{
		"width":       512,
		"height":      256,
		"pixel_ratio": 2.0,
		"style":       "https://tiles.openfreemap.org/styles/liberty",
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 8; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal (repeat %d): %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("non-deterministic encoding on repeat %d", i)
		}
	}
}

func TestRoundTripStruct(t *testing.T) {
	type request struct {
		Width  int        `cbor:"width"`
		Height int        `cbor:"height"`
		Center [2]float64 `cbor:"center"`
		Zoom   float64    `cbor:"zoom"`
	}

	input := request{Width: 512, Height: 512, Center: [2]float64{-122.4, 37.8}, Zoom: 12}

	data, err := Marshal(input)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var output request
	if err := Unmarshal(data, &output); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if output != input {
		t.Fatalf("round trip mismatch: got %+v, want %+v", output, input)
	}
}

func TestUnmarshalAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"sources": map[string]any{"markers": "x"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[string]any", decoded)
	}
	if _, ok := outer["sources"].(map[string]any); !ok {
		t.Fatalf("nested type %T, want map[string]any", outer["sources"])
	}
}
