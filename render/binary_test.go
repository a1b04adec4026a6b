// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"testing"
)

func TestBinaryName(t *testing.T) {
	cases := []struct {
		goos   string
		goarch string
		want   string
	}{
		{"darwin", "arm64", "mlnative-render-darwin-arm64"},
		{"darwin", "amd64", "mlnative-render-darwin-x64"},
		{"linux", "arm64", "mlnative-render-linux-arm64"},
		{"linux", "amd64", "mlnative-render-linux-x64"},
		{"windows", "amd64", "mlnative-render-win32-x64.exe"},
	}
	for _, testCase := range cases {
		got, err := binaryName(testCase.goos, testCase.goarch)
		if err != nil {
			t.Errorf("binaryName(%s, %s): %v", testCase.goos, testCase.goarch, err)
			continue
		}
		if got != testCase.want {
			t.Errorf("binaryName(%s, %s) = %q, want %q", testCase.goos, testCase.goarch, got, testCase.want)
		}
	}
}

func TestBinaryNameUnsupported(t *testing.T) {
	unsupported := [][2]string{
		{"plan9", "amd64"},
		{"linux", "riscv64"},
		{"windows", "arm64"},
	}
	for _, pair := range unsupported {
		if _, err := binaryName(pair[0], pair[1]); err == nil {
			t.Errorf("binaryName(%s, %s) succeeded, want error", pair[0], pair[1])
		}
	}
}

func TestLookupBinaryEnvOverride(t *testing.T) {
	t.Setenv(BinaryEnv, "/opt/render/custom-renderer")
	got, err := LookupBinary()
	if err != nil {
		t.Fatalf("LookupBinary: %v", err)
	}
	// The override is trusted verbatim, even if the file does not
	// exist, so that tests and wrappers can point at anything.
	if got != "/opt/render/custom-renderer" {
		t.Fatalf("LookupBinary = %q", got)
	}
}
