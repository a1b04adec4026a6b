// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/adonm/mlnative/lib/clock"
)

// Shutdown escalation grace periods. Stop first asks the renderer to
// quit, then signals, then kills; each step gets its own wait.
const (
	quitGrace = 3 * time.Second
	termGrace = 2 * time.Second
	killGrace = 1 * time.Second
)

// State is the daemon lifecycle state. No transition leaves
// StateClosed; recovery from any failure is a new Daemon.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config is sent to the renderer exactly once, at initialization. A
// style change after start goes through ReloadStyle, never a new
// Config.
type Config struct {
	// Width and Height are the output image dimensions in pixels.
	Width  int
	Height int

	// PixelRatio scales the rendering for high-DPI output. Zero means
	// 1.0.
	PixelRatio float64

	// Style is the wire-form style: an http(s) URL or an inline style
	// document serialized to JSON text.
	Style string

	// BinaryPath overrides renderer binary resolution. Empty means
	// LookupBinary.
	BinaryPath string

	// VendorDir is exported to the child as MLNATIVE_VENDOR_DIR when
	// non-empty; otherwise the inherited environment is unchanged.
	VendorDir string

	// Timeout bounds single commands. Zero means MLNATIVE_TIMEOUT or
	// DefaultTimeout.
	Timeout time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock drives timeouts and shutdown grace periods. If nil, the
	// real clock is used.
	Clock clock.Clock
}

// Daemon owns one renderer process: its handle, its pipes, and the
// command channel over them. The zero value is a daemon in
// StateNotStarted.
//
// A Daemon is not safe for concurrent use; the embedding application
// serializes calls (or runs one Daemon per worker). The daemon never
// restarts its process — after any fatal error the caller tears it
// down with Stop and builds a new one.
type Daemon struct {
	state   State
	command *exec.Cmd
	stdin   io.WriteCloser
	channel *Channel
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

// State reports the daemon's lifecycle state.
func (d *Daemon) State() State { return d.state }

// Start spawns the renderer process and performs the init handshake.
// Fails with ErrAlreadyStarted if the daemon is starting or ready, and
// ErrClosed if it was stopped. On any failure after the spawn the
// process is torn down completely before the error returns — a failed
// Start never leaves a half-initialized renderer running — and the
// daemon ends in StateClosed.
func (d *Daemon) Start(ctx context.Context, config Config) error {
	switch d.state {
	case StateStarting, StateReady:
		return fmt.Errorf("start: %w", ErrAlreadyStarted)
	case StateClosed:
		return fmt.Errorf("start: %w", ErrClosed)
	}

	d.clock = config.Clock
	if d.clock == nil {
		d.clock = clock.Real()
	}
	d.logger = config.Logger
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.timeout = config.Timeout
	if d.timeout == 0 {
		d.timeout = TimeoutFromEnvironment(DefaultTimeout)
	}
	pixelRatio := config.PixelRatio
	if pixelRatio == 0 {
		pixelRatio = 1.0
	}

	binaryPath := config.BinaryPath
	if binaryPath == "" {
		var err error
		binaryPath, err = LookupBinary()
		if err != nil {
			d.state = StateClosed
			return fmt.Errorf("start: %w", err)
		}
	}

	command := exec.CommandContext(ctx, binaryPath)
	command.Env = os.Environ()
	if config.VendorDir != "" {
		command.Env = append(command.Env, VendorDirEnv+"="+config.VendorDir)
	}

	stdin, err := command.StdinPipe()
	if err != nil {
		d.state = StateClosed
		return fmt.Errorf("start: creating stdin pipe: %w", err)
	}
	stdout, err := command.StdoutPipe()
	if err != nil {
		stdin.Close()
		d.state = StateClosed
		return fmt.Errorf("start: creating stdout pipe: %w", err)
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		stdin.Close()
		d.state = StateClosed
		return fmt.Errorf("start: creating stderr pipe: %w", err)
	}

	if err := command.Start(); err != nil {
		stdin.Close()
		d.state = StateClosed
		return fmt.Errorf("start: spawning renderer %s: %w", binaryPath, err)
	}

	d.command = command
	d.stdin = stdin
	d.state = StateStarting

	go DrainDiagnostics(stderr, d.logger)
	d.channel = NewChannel(stdin, stdout, d.clock, d.logger)

	response, err := d.channel.Send(initCommand{
		Cmd:             "init",
		Width:           config.Width,
		Height:          config.Height,
		Style:           config.Style,
		PixelRatio:      pixelRatio,
		ProtocolVersion: ProtocolVersion,
	}, d.timeout)
	if err != nil {
		d.teardown()
		return fmt.Errorf("init: %w", err)
	}
	if response.Status == statusError {
		d.teardown()
		if isVersionMismatch(response.Error) {
			return fmt.Errorf("init: %w: %s", ErrVersionMismatch, response.Error)
		}
		return fmt.Errorf("init: renderer error: %s", response.Error)
	}

	d.state = StateReady
	d.logger.Info("renderer daemon ready",
		"pid", command.Process.Pid,
		"binary", binaryPath,
		"width", config.Width,
		"height", config.Height,
		"pixel_ratio", pixelRatio,
	)
	return nil
}

// Render renders one view and returns the PNG bytes.
func (d *Daemon) Render(view View) ([]byte, error) {
	if err := d.readyError(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	response, err := d.channel.Send(renderCommand{
		Cmd:     "render",
		Center:  view.Center,
		Zoom:    view.Zoom,
		Bearing: view.Bearing,
		Pitch:   view.Pitch,
	}, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if response.Status == statusError {
		return nil, fmt.Errorf("render: renderer error: %s", response.Error)
	}

	image, err := decodeImage(response.PNG)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return image, nil
}

// RenderBatch renders the views in order with a single command and
// returns one PNG per view, in request order. The renderer does not
// contractually guarantee the count, so a mismatch fails with
// ErrImageCount rather than returning a truncated or padded result.
func (d *Daemon) RenderBatch(views []View) ([][]byte, error) {
	if err := d.readyError(); err != nil {
		return nil, fmt.Errorf("render_batch: %w", err)
	}
	if len(views) == 0 {
		return nil, nil
	}

	timeout := d.timeout
	if timeout < BatchTimeout {
		timeout = BatchTimeout
	}
	response, err := d.channel.Send(batchCommand{Cmd: "render_batch", Views: views}, timeout)
	if err != nil {
		return nil, fmt.Errorf("render_batch: %w", err)
	}
	if response.Status == statusError {
		return nil, fmt.Errorf("render_batch: renderer error: %s", response.Error)
	}

	images, err := splitBatchImages(response.PNG, len(views))
	if err != nil {
		return nil, fmt.Errorf("render_batch: %w", err)
	}
	return images, nil
}

// ReloadStyle swaps the active style document in the running renderer
// without restarting the process.
func (d *Daemon) ReloadStyle(style string) error {
	if err := d.readyError(); err != nil {
		return fmt.Errorf("reload_style: %w", err)
	}

	response, err := d.channel.Send(reloadStyleCommand{Cmd: "reload_style", Style: style}, d.timeout)
	if err != nil {
		return fmt.Errorf("reload_style: %w", err)
	}
	if response.Status == statusError {
		return fmt.Errorf("reload_style: renderer error: %s", response.Error)
	}
	return nil
}

// Stop shuts the renderer down. Idempotent. Escalation: a graceful
// quit command with stdin close, then SIGTERM, then SIGKILL, each with
// its own grace period. The daemon always ends in StateClosed with the
// process handle released, whichever path fired.
func (d *Daemon) Stop() error {
	if d.state == StateNotStarted || d.state == StateClosed {
		d.state = StateClosed
		return nil
	}

	command := d.command
	logger := d.logger
	defer func() {
		d.state = StateClosed
		d.command = nil
		d.channel = nil
		d.stdin = nil
	}()

	exited := make(chan error, 1)
	go func() { exited <- command.Wait() }()

	// Graceful: ask the renderer to quit, close stdin so its read
	// loop ends even if the command was not understood.
	if err := d.channel.Post(quitCommand{Cmd: "quit"}); err != nil {
		logger.Debug("quit command not delivered", "error", err)
	}
	d.stdin.Close()
	if d.awaitExit(exited, quitGrace) {
		logger.Info("renderer daemon stopped", "pid", command.Process.Pid)
		return nil
	}

	logger.Warn("renderer did not exit after quit, sending SIGTERM", "pid", command.Process.Pid)
	command.Process.Signal(syscall.SIGTERM)
	if d.awaitExit(exited, termGrace) {
		return nil
	}

	logger.Warn("renderer ignored SIGTERM, killing", "pid", command.Process.Pid)
	command.Process.Kill()
	if d.awaitExit(exited, killGrace) {
		return nil
	}
	return fmt.Errorf("stop: renderer process %d did not exit after kill", command.Process.Pid)
}

// awaitExit waits for process exit with a bounded grace period.
func (d *Daemon) awaitExit(exited <-chan error, grace time.Duration) bool {
	select {
	case <-exited:
		return true
	case <-d.clock.After(grace):
		return false
	}
}

// readyError returns the state-appropriate sentinel for operations
// that require StateReady. No I/O is performed on this path.
func (d *Daemon) readyError() error {
	switch d.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotInitialized
	}
}

// teardown kills the renderer after a failed init and releases the
// handle. The wait is unconditional: kill has been delivered, so exit
// is imminent and the zombie must be reaped.
func (d *Daemon) teardown() {
	if d.command != nil && d.command.Process != nil {
		d.command.Process.Kill()
		d.command.Wait()
	}
	if d.stdin != nil {
		d.stdin.Close()
	}
	d.command = nil
	d.channel = nil
	d.stdin = nil
	d.state = StateClosed
}
