// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Script writes contents to an executable file in a test-scoped
// temporary directory and returns its absolute path. Used to stand in
// fake renderer binaries: a shell script that speaks just enough of
// the line protocol for the scenario under test.
//
// The file is removed when the test completes.
func Script(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-renderer")
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("writing test script: %v", err)
	}
	return path
}
