// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/adonm/mlnative/lib/clock"
)

const (
	// DefaultTimeout bounds single commands (init, render,
	// reload_style). Overridable per daemon and via MLNATIVE_TIMEOUT.
	DefaultTimeout = 30 * time.Second

	// BatchTimeout bounds render_batch commands, which do the work of
	// many renders in one round trip.
	BatchTimeout = 60 * time.Second
)

// maxFrameBytes caps a single response frame. A 4096x4096 render is a
// few tens of megabytes of base64; batches multiply that, so the cap
// is generous. Anything larger is a protocol violation, not a render.
const maxFrameBytes = 256 * 1024 * 1024

// TimeoutFromEnvironment returns the command timeout: MLNATIVE_TIMEOUT
// (whole seconds) when set and valid, otherwise fallback.
func TimeoutFromEnvironment(fallback time.Duration) time.Duration {
	value := os.Getenv(TimeoutEnv)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Channel frames commands and responses over the renderer's pipes.
// At most one command may be in flight at a time; the protocol has no
// pipelining, and serializing concurrent callers is the embedding
// application's obligation.
//
// Any fatal error — timeout, peer-closed pipe, protocol violation —
// permanently breaks the channel: every subsequent Send fails
// immediately with the original error and performs no I/O. The owning
// daemon must be torn down and a new one started.
type Channel struct {
	writer io.Writer
	frames chan frame
	clock  clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	fatal error
}

// frame is one decoded response or a terminal channel error.
type frame struct {
	response Response
	err      error
}

// NewChannel wraps the renderer's stdin/stdout pipe pair and starts
// the background response reader. The reader owns stdout until the
// pipe closes; no other code may read from it.
func NewChannel(writer io.Writer, reader io.Reader, clk clock.Clock, logger *slog.Logger) *Channel {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	channel := &Channel{
		writer: writer,
		frames: make(chan frame, 1),
		clock:  clk,
		logger: logger,
	}
	go channel.readLoop(reader)
	return channel
}

// Send writes one command frame and waits for exactly one response
// frame, failing with ErrTimeout when the deadline expires first. A
// timed-out caller is released, but the background reader may still
// be blocked on the pipe — the channel is broken from that point on.
func (c *Channel) Send(command any, timeout time.Duration) (Response, error) {
	if err := c.brokenError(); err != nil {
		return Response{}, err
	}
	if err := c.post(command); err != nil {
		return Response{}, err
	}

	select {
	case received := <-c.frames:
		if received.err != nil {
			return Response{}, received.err
		}
		return received.response, nil
	case <-c.clock.After(timeout):
		err := fmt.Errorf("%w: no response within %s", ErrTimeout, timeout)
		c.setFatal(err)
		return Response{}, err
	}
}

// Post writes one command frame without waiting for a response. Used
// for quit, which is answered by process exit rather than a frame.
func (c *Channel) Post(command any) error {
	if err := c.brokenError(); err != nil {
		return err
	}
	return c.post(command)
}

func (c *Channel) post(command any) error {
	data, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.writer.Write(data); err != nil {
		wrapped := fmt.Errorf("writing command: %w", coalescePeerClosed(err))
		c.setFatal(wrapped)
		return wrapped
	}
	return nil
}

// readLoop owns the response side of the pipe. It decodes one frame
// per line and delivers it; any decode failure or pipe closure is
// fatal and ends the loop.
func (c *Channel) readLoop(reader io.Reader) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var response Response
		if err := json.Unmarshal(line, &response); err != nil {
			c.fail(fmt.Errorf("%w: undecodable response frame: %v", ErrProtocol, err))
			return
		}
		if response.Status != statusOK && response.Status != statusError {
			c.fail(fmt.Errorf("%w: unexpected status %q", ErrProtocol, response.Status))
			return
		}
		c.deliver(frame{response: response})
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			c.fail(fmt.Errorf("%w: response frame exceeds %d bytes", ErrProtocol, maxFrameBytes))
			return
		}
		c.fail(fmt.Errorf("reading renderer output: %w", coalescePeerClosed(err)))
		return
	}
	// EOF: the renderer exited or closed stdout. Normal after quit;
	// mid-protocol it surfaces to the waiting Send as ErrPeerClosed.
	c.fail(ErrPeerClosed)
}

// deliver hands a frame to the waiting Send. The buffer has capacity
// one and at most one command is outstanding, so a response frame
// always fits; a terminal error frame competing with a stale response
// after a timeout is dropped here, which is fine — the fatal error is
// already recorded and the channel refuses further sends.
func (c *Channel) deliver(received frame) {
	select {
	case c.frames <- received:
	default:
	}
}

// fail records the fatal error and delivers it to any waiting Send.
func (c *Channel) fail(err error) {
	c.setFatal(err)
	c.deliver(frame{err: err})
}

func (c *Channel) setFatal(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal == nil {
		c.fatal = err
	}
}

func (c *Channel) brokenError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal != nil {
		return fmt.Errorf("channel unusable after earlier failure: %w", c.fatal)
	}
	return nil
}

// coalescePeerClosed maps the zoo of closed-pipe errors onto
// ErrPeerClosed so callers can discriminate the child-crashed case
// from other I/O failures.
func coalescePeerClosed(err error) error {
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("%w: %v", ErrPeerClosed, err)
	}
	return err
}

// DrainDiagnostics consumes a renderer diagnostic stream (stderr)
// until it closes, logging each line at Debug. The renderer writes
// progress and warnings there; if nobody reads them the pipe buffer
// fills and the child blocks mid-render, deadlocked against the
// response pipe. The drain runs for the process's whole lifetime.
func DrainDiagnostics(reader io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 4*1024), 1024*1024)
	for scanner.Scan() {
		if logger != nil && logger.Enabled(context.Background(), slog.LevelDebug) {
			logger.Debug("renderer stderr", "line", strings.TrimRight(scanner.Text(), "\r"))
		}
	}
	// A scanner error (oversized line, injected read failure) must not
	// stop the drain — the pipe still needs consuming until close.
	if scanner.Err() != nil {
		io.Copy(io.Discard, reader)
	}
}
