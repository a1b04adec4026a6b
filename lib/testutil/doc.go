// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for mlnative packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. These are the only place
// in the test suite where real wall-clock timeouts are used; all
// production deadlines run through lib/clock.
//
// [Script] writes an executable shell script to a temporary directory,
// used to fake the external renderer binary in daemon and facade
// tests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no mlnative-internal dependencies.
package testutil
