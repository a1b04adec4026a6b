// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package renderstore is a content-addressed on-disk cache for
// rendered map images. Entries are keyed by a BLAKE3 hash of the full
// render request (dimensions, style, camera), so a cache hit is
// byte-identical to re-rendering. Each entry stores the PNG payload
// with a one-byte compression tag plus a compressed CBOR metadata
// record alongside it.
package renderstore
