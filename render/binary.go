// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Environment variables read by this package. Each is read in exactly
// one place.
const (
	// BinaryEnv overrides renderer binary resolution with an explicit
	// path.
	BinaryEnv = "MLNATIVE_RENDER_BINARY"

	// VendorDirEnv names the directory containing the renderer's
	// bundled support assets. Passed through to the child process's
	// environment at spawn time.
	VendorDirEnv = "MLNATIVE_VENDOR_DIR"

	// TimeoutEnv overrides the default command timeout, in whole
	// seconds.
	TimeoutEnv = "MLNATIVE_TIMEOUT"
)

// LookupBinary resolves the renderer binary for the current platform.
// Resolution order: the MLNATIVE_RENDER_BINARY override, PATH lookup
// of the platform-specific name, then the directory containing the
// current executable (bundled installs ship the renderer next to the
// embedding binary).
func LookupBinary() (string, error) {
	if path := os.Getenv(BinaryEnv); path != "" {
		return path, nil
	}

	name, err := binaryName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	if executable, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(executable), name)
		if info, statError := os.Stat(candidate); statError == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("renderer binary %q not found in PATH (set %s to override)", name, BinaryEnv)
}

// binaryName returns the platform-specific renderer binary name,
// mlnative-render-<platform>-<arch>. The platform and architecture
// labels match the renderer's release naming, which uses node-style
// identifiers (win32, x64) rather than Go's.
func binaryName(goos, goarch string) (string, error) {
	var platform string
	switch goos {
	case "darwin":
		platform = "darwin"
	case "linux":
		platform = "linux"
	case "windows":
		platform = "win32"
	default:
		return "", fmt.Errorf("unsupported platform %s/%s (supported: darwin-arm64, darwin-x64, linux-arm64, linux-x64, win32-x64)", goos, goarch)
	}

	var arch string
	switch goarch {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "arm64"
	default:
		return "", fmt.Errorf("unsupported platform %s/%s (supported: darwin-arm64, darwin-x64, linux-arm64, linux-x64, win32-x64)", goos, goarch)
	}

	if platform == "win32" && arch == "arm64" {
		return "", fmt.Errorf("unsupported platform %s/%s (supported: darwin-arm64, darwin-x64, linux-arm64, linux-x64, win32-x64)", goos, goarch)
	}

	name := "mlnative-render-" + platform + "-" + arch
	if goos == "windows" {
		name += ".exe"
	}
	return name, nil
}
