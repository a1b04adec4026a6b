// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of
// calling time.Now, time.After, or time.Sleep directly. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a deterministic clock that advances only when Advance is
// called.
//
// The renderer command channel and daemon shutdown paths are built on
// deadlines (response timeouts, exit grace periods). Driving those
// deadlines through a FakeClock lets the timeout tests run in
// microseconds without ever sleeping for the real duration.
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep or After on a FakeClock, it registers a
// pending waiter. Use WaitForTimers to block until a specific number
// of waiters are registered before calling Advance. This eliminates
// the race between deadline registration and time advancement that
// plagues tests using time.Sleep for synchronization.
package clock
