// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ProtocolVersion is the command protocol version sent in the init
// handshake. The renderer rejects mismatched clients, which surfaces
// as ErrVersionMismatch.
const ProtocolVersion = "1.0"

const (
	statusOK    = "ok"
	statusError = "error"
)

// View is one camera position in a render or render_batch command.
// GeoJSON carries optional named source updates applied by the
// renderer before that view is rendered; the current renderer build
// ignores them inside batches, which is why the facade falls back to
// serial reload+render when they are present.
type View struct {
	Center  [2]float64     `json:"center"`
	Zoom    float64        `json:"zoom"`
	Bearing float64        `json:"bearing"`
	Pitch   float64        `json:"pitch"`
	GeoJSON map[string]any `json:"geojson,omitempty"`
}

// Command variants. Each carries the "cmd" discriminator as its first
// field so a command is identifiable from the frame prefix.

type initCommand struct {
	Cmd             string  `json:"cmd"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Style           string  `json:"style"`
	PixelRatio      float64 `json:"pixel_ratio"`
	ProtocolVersion string  `json:"protocol_version"`
}

type renderCommand struct {
	Cmd     string     `json:"cmd"`
	Center  [2]float64 `json:"center"`
	Zoom    float64    `json:"zoom"`
	Bearing float64    `json:"bearing"`
	Pitch   float64    `json:"pitch"`
}

type batchCommand struct {
	Cmd   string `json:"cmd"`
	Views []View `json:"views"`
}

type reloadStyleCommand struct {
	Cmd   string `json:"cmd"`
	Style string `json:"style"`
}

type quitCommand struct {
	Cmd string `json:"cmd"`
}

// Response is the renderer's reply to a single command. Status is
// "ok" or "error"; PNG carries the base64 image payload for render
// commands (comma-joined for batches); Error carries the failure
// message when Status is "error".
type Response struct {
	Status string `json:"status"`
	PNG    string `json:"png,omitempty"`
	Error  string `json:"error,omitempty"`
}

// pngSignature is the first four bytes of every valid PNG stream.
var pngSignature = []byte("\x89PNG")

// decodeImage decodes one base64 image payload and verifies the PNG
// signature. Decoded bytes with any other prefix are treated as an
// error message from the renderer, not image data.
func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrNoImageData
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image payload: %v", ErrProtocol, err)
	}
	if len(data) == 0 {
		return nil, ErrNoImageData
	}
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("renderer error: %s", diagnosticText(data))
	}
	return data, nil
}

// splitBatchImages decodes a comma-joined batch payload into one image
// per requested view. A count mismatch fails with ErrImageCount — the
// images cannot be paired with their views reliably, so nothing is
// returned.
func splitBatchImages(encoded string, viewCount int) ([][]byte, error) {
	if encoded == "" {
		return nil, ErrNoImageData
	}
	parts := strings.Split(encoded, ",")
	if len(parts) != viewCount {
		return nil, fmt.Errorf("%w: got %d images for %d views", ErrImageCount, len(parts), viewCount)
	}
	images := make([][]byte, len(parts))
	for i, part := range parts {
		image, err := decodeImage(part)
		if err != nil {
			return nil, fmt.Errorf("image %d of %d: %w", i+1, viewCount, err)
		}
		images[i] = image
	}
	return images, nil
}

// diagnosticText renders a non-PNG payload as a printable message,
// truncated so a corrupt binary blob cannot flood the error string.
func diagnosticText(data []byte) string {
	const limit = 256
	truncated := len(data) > limit
	if truncated {
		data = data[:limit]
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = fmt.Sprintf("%d bytes of non-PNG binary data", len(data))
	} else if truncated {
		text += "..."
	}
	return text
}

// isVersionMismatch reports whether a renderer error message is the
// init-handshake protocol version rejection. The renderer reports it
// as a plain message, so detection is by its stable phrasing.
func isVersionMismatch(message string) bool {
	return strings.Contains(strings.ToLower(message), "version mismatch")
}
