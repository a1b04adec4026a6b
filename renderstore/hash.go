// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package renderstore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/adonm/mlnative/lib/codec"
)

// Key is a 32-byte BLAKE3 digest addressing one cache entry.
type Key [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Separate
// domains keep a request digest from ever colliding with an image
// digest for the same bytes.
type domainKey [32]byte

// Domain separation keys. Fixed constants — changing one invalidates
// every existing cache in that domain. The byte values are the ASCII
// encoding of the domain name, zero-padded to 32 bytes, so the keys
// stay readable in hex dumps.
var (
	requestDomainKey = domainKey{
		'm', 'l', 'n', 'a', 't', 'i', 'v', 'e', '.', 'r', 'e', 'n', 'd', 'e', 'r', '.',
		'r', 'e', 'q', 'u', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	imageDomainKey = domainKey{
		'm', 'l', 'n', 'a', 't', 'i', 'v', 'e', '.', 'r', 'e', 'n', 'd', 'e', 'r', '.',
		'i', 'm', 'a', 'g', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Request captures everything that determines a rendered image. Two
// requests with the same key render the same PNG (given a
// deterministic renderer build), which is what makes the cache sound.
type Request struct {
	Width      int        `cbor:"width"`
	Height     int        `cbor:"height"`
	PixelRatio float64    `cbor:"pixel_ratio"`
	Style      string     `cbor:"style"`
	Center     [2]float64 `cbor:"center"`
	Zoom       float64    `cbor:"zoom"`
	Bearing    float64    `cbor:"bearing"`
	Pitch      float64    `cbor:"pitch"`
}

// RequestKey computes the request-domain key: a keyed BLAKE3 hash of
// the deterministic CBOR encoding of the request. Determinism of the
// encoding is what makes the key stable across processes.
func RequestKey(request Request) (Key, error) {
	encoded, err := codec.Marshal(request)
	if err != nil {
		return Key{}, fmt.Errorf("encoding render request: %w", err)
	}
	return keyedHash(requestDomainKey, encoded), nil
}

// ImageKey computes the image-domain key of rendered PNG bytes. Used
// in metadata so an entry's payload can be verified out of band.
func ImageKey(image []byte) Key {
	return keyedHash(imageDomainKey, image)
}

// FormatKey returns the canonical hex form used in file names, logs,
// and CLI output.
func FormatKey(key Key) string {
	return hex.EncodeToString(key[:])
}

// ParseKey parses a 64-character hex string into a Key.
func ParseKey(hexString string) (Key, error) {
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return Key{}, fmt.Errorf("parsing cache key: %w", err)
	}
	if len(decoded) != 32 {
		return Key{}, fmt.Errorf("cache key is %d bytes, want 32", len(decoded))
	}
	var key Key
	copy(key[:], decoded)
	return key, nil
}

func keyedHash(key domainKey, data []byte) Key {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("renderstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Key
	copy(digest[:], hasher.Sum(nil))
	return digest
}
