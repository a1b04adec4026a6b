// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides mlnative's standard CBOR encoding.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same logical value always produces identical bytes. The render
// cache depends on this: a cache key is the keyed BLAKE3 hash of a
// CBOR-encoded render request, and two equal requests must hash
// identically regardless of which process encoded them.
//
// Decoding accepts standard CBOR and ignores unknown fields, so cache
// metadata written by a newer version of the module remains readable
// by an older one.
package codec
