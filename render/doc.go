// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package render supervises the external mlnative renderer process and
// speaks its line-delimited JSON command protocol.
//
// The renderer is a long-lived black-box binary: it accepts one
// command per line on stdin (init, render, render_batch, reload_style,
// quit) and writes exactly one JSON response per command to stdout, in
// order. Image payloads travel base64-encoded because the channel is
// text-oriented; decoded bytes always begin with the PNG signature.
//
//   - [Channel]: frames commands and responses over the child's pipes.
//     A dedicated goroutine owns the stdout side for the channel's
//     lifetime and every wait is bounded by a deadline. A timeout is
//     fatal to the channel: a stale reader may consume the next
//     response, so the only safe recovery is tearing the daemon down
//     and starting a fresh one. The channel enforces this by refusing
//     all further sends after any fatal error.
//
//   - [Daemon]: the process lifecycle state machine (NotStarted →
//     Starting → Ready → Closed). Start spawns the renderer, drains
//     its stderr in the background so the child can never block on a
//     full diagnostic pipe, and performs the init handshake carrying
//     the protocol version. Stop escalates from a graceful quit
//     command through SIGTERM to SIGKILL.
//
// A Daemon is not safe for concurrent use: the protocol has no
// pipelining, so at most one command may be outstanding. Callers that
// want parallel rendering run multiple Daemon instances, each owning
// its own process and pipes.
//
// [LookupBinary] resolves the platform-specific renderer binary;
// MLNATIVE_RENDER_BINARY overrides it and MLNATIVE_VENDOR_DIR is
// passed through to the child for its bundled support assets.
package render
