// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "errors"

// Sentinel errors for the daemon state machine and the command
// channel. Callers discriminate with errors.Is; every returned error
// wraps one of these (or is a plain validation/command failure) with
// the operation name prefixed.
var (
	// ErrAlreadyStarted is returned by Start when the daemon has
	// already been started and not yet stopped.
	ErrAlreadyStarted = errors.New("daemon already started")

	// ErrNotInitialized is returned by render-like operations before
	// a successful Start. No I/O is performed.
	ErrNotInitialized = errors.New("daemon not initialized")

	// ErrClosed is returned by operations on a stopped daemon. A
	// closed daemon never leaves the closed state; build a new one.
	ErrClosed = errors.New("daemon closed")

	// ErrTimeout is returned when no complete response frame arrives
	// within the deadline. Fatal to the channel: the background
	// reader may still be blocked on the pipe and could consume a
	// late response, so the channel refuses all further sends.
	ErrTimeout = errors.New("renderer response timeout")

	// ErrPeerClosed is returned when the renderer's pipe closes
	// mid-protocol — the common failure mode when the child crashes.
	ErrPeerClosed = errors.New("renderer closed the pipe")

	// ErrProtocol is returned for undecodable or malformed response
	// frames. Fatal to the channel.
	ErrProtocol = errors.New("renderer protocol violation")

	// ErrVersionMismatch is returned when the renderer rejects the
	// init handshake because its protocol version differs from
	// ProtocolVersion. Signals a stale renderer binary.
	ErrVersionMismatch = errors.New("renderer protocol version mismatch")

	// ErrNoImageData is returned when a render response carries an
	// absent or empty image payload.
	ErrNoImageData = errors.New("renderer returned no image data")

	// ErrImageCount is returned when a batch response carries a
	// different number of images than views were requested. The
	// result is discarded rather than truncated or padded.
	ErrImageCount = errors.New("renderer returned wrong image count")
)
