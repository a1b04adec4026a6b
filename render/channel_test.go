// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adonm/mlnative/lib/clock"
	"github.com/adonm/mlnative/lib/testutil"
)

// pngAlphaBase64 decodes to bytes beginning with the PNG signature.
const pngAlphaBase64 = "iVBORw0KGgppbWFnZS1hbHBoYQ=="

// safeBuffer is a bytes.Buffer guarded by a mutex so tests can
// inspect written commands while Send runs on another goroutine.
type safeBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

// testChannel wires a Channel to an in-memory response pipe and a
// command buffer. The returned writer feeds response frames to the
// channel's reader.
func testChannel(t *testing.T, clk clock.Clock) (*Channel, *safeBuffer, *io.PipeWriter) {
	t.Helper()
	responseReader, responseWriter := io.Pipe()
	commands := &safeBuffer{}
	channel := NewChannel(commands, responseReader, clk, nil)
	t.Cleanup(func() { responseWriter.Close() })
	return channel, commands, responseWriter
}

func writeFrame(t *testing.T, w io.Writer, frame string) {
	t.Helper()
	if _, err := io.WriteString(w, frame+"\n"); err != nil {
		t.Errorf("writing response frame: %v", err)
	}
}

func TestSendRoundTrip(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, commands, responses := testChannel(t, fake)

	go writeFrame(t, responses, `{"status":"ok","png":"`+pngAlphaBase64+`"}`)

	response, err := channel.Send(renderCommand{
		Cmd:    "render",
		Center: [2]float64{-122.4, 37.8},
		Zoom:   12,
	}, DefaultTimeout)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if response.Status != "ok" {
		t.Fatalf("status = %q, want ok", response.Status)
	}
	if response.PNG != pngAlphaBase64 {
		t.Fatalf("png payload = %q, want %q", response.PNG, pngAlphaBase64)
	}

	// The command must be exactly one newline-terminated JSON line
	// carrying its discriminator.
	written := commands.String()
	if !strings.HasSuffix(written, "\n") {
		t.Fatalf("command frame not newline-terminated: %q", written)
	}
	lines := strings.Split(strings.TrimSuffix(written, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 command frame, got %d", len(lines))
	}
	var decoded struct {
		Cmd  string  `json:"cmd"`
		Zoom float64 `json:"zoom"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("command frame is not valid JSON: %v", err)
	}
	if decoded.Cmd != "render" || decoded.Zoom != 12 {
		t.Fatalf("decoded command = %+v", decoded)
	}
}

func TestSendTimeout(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, _, _ := testChannel(t, fake)

	type result struct {
		err error
	}
	results := make(chan result, 1)
	go func() {
		_, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
		results <- result{err: err}
	}()

	// No response ever arrives; the deadline must release the caller
	// at exactly the configured timeout, never before.
	fake.WaitForTimers(1)
	fake.Advance(DefaultTimeout - time.Millisecond)
	select {
	case got := <-results:
		t.Fatalf("Send returned before the deadline: %v", got.err)
	default:
	}

	fake.Advance(time.Millisecond)
	got := testutil.RequireReceive(t, results, 5*time.Second, "waiting for Send to time out")
	if !errors.Is(got.err, ErrTimeout) {
		t.Fatalf("Send error = %v, want ErrTimeout", got.err)
	}
}

func TestChannelBrokenAfterTimeout(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, commands, _ := testChannel(t, fake)

	errs := make(chan error, 1)
	go func() {
		_, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
		errs <- err
	}()
	fake.WaitForTimers(1)
	fake.Advance(DefaultTimeout)
	first := testutil.RequireReceive(t, errs, 5*time.Second, "first Send timing out")
	if !errors.Is(first, ErrTimeout) {
		t.Fatalf("first Send error = %v, want ErrTimeout", first)
	}

	before := commands.String()

	// A second Send must fail immediately with the original fatal
	// error and perform no I/O — a stale reader could otherwise pair
	// the next response with the wrong request.
	_, second := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if !errors.Is(second, ErrTimeout) {
		t.Fatalf("second Send error = %v, want wrapped ErrTimeout", second)
	}
	if commands.String() != before {
		t.Fatal("second Send wrote a command frame on a broken channel")
	}
}

func TestSendPeerClosed(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, _, responses := testChannel(t, fake)

	errs := make(chan error, 1)
	go func() {
		_, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
		errs <- err
	}()

	// Closing the response pipe mid-command is the child-crashed
	// case: EOF before a frame.
	responses.Close()

	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for peer-closed error")
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("Send error = %v, want ErrPeerClosed", err)
	}
}

func TestSendProtocolError(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, _, responses := testChannel(t, fake)

	go writeFrame(t, responses, `this is not a JSON frame`)

	_, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Send error = %v, want ErrProtocol", err)
	}

	// Protocol violations are channel-fatal.
	_, err = channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Send after protocol error = %v, want wrapped ErrProtocol", err)
	}
}

func TestSendUnexpectedStatus(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, _, responses := testChannel(t, fake)

	go writeFrame(t, responses, `{"status":"maybe"}`)

	_, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Send error = %v, want ErrProtocol", err)
	}
}

func TestErrorStatusIsNotChannelFatal(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, _, responses := testChannel(t, fake)

	go writeFrame(t, responses, `{"status":"error","error":"style failed to load"}`)

	response, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if response.Status != "error" || response.Error != "style failed to load" {
		t.Fatalf("response = %+v", response)
	}

	// A command-level error leaves the channel healthy.
	go writeFrame(t, responses, `{"status":"ok"}`)
	response, err = channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if err != nil {
		t.Fatalf("Send after command error: %v", err)
	}
	if response.Status != "ok" {
		t.Fatalf("status = %q, want ok", response.Status)
	}
}

func TestReaderSkipsBlankLines(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	channel, _, responses := testChannel(t, fake)

	go func() {
		writeFrame(t, responses, "")
		writeFrame(t, responses, "   ")
		writeFrame(t, responses, `{"status":"ok"}`)
	}()

	response, err := channel.Send(renderCommand{Cmd: "render"}, DefaultTimeout)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if response.Status != "ok" {
		t.Fatalf("status = %q, want ok", response.Status)
	}
}

func TestTimeoutFromEnvironment(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "unset", value: "", want: DefaultTimeout},
		{name: "valid", value: "45", want: 45 * time.Second},
		{name: "garbage", value: "soon", want: DefaultTimeout},
		{name: "negative", value: "-3", want: DefaultTimeout},
		{name: "zero", value: "0", want: DefaultTimeout},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Setenv(TimeoutEnv, testCase.value)
			if got := TimeoutFromEnvironment(DefaultTimeout); got != testCase.want {
				t.Fatalf("TimeoutFromEnvironment = %v, want %v", got, testCase.want)
			}
		})
	}
}
