// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package mlnative

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// DefaultStyle is the style applied when rendering starts before any
// LoadStyle call.
const DefaultStyle = "https://tiles.openfreemap.org/styles/liberty"

// Style is the active map style: either a URL reference or an inline
// document, never both. The zero value means "no style loaded yet"
// and renders with DefaultStyle.
type Style struct {
	// URL references a hosted style, fetched by the renderer itself.
	URL string

	// Document is an inline style. Inline styles are required for
	// GeoJSON source updates, which mutate the document's sources
	// map.
	Document map[string]any
}

// StyleURL wraps a hosted style reference.
func StyleURL(url string) Style { return Style{URL: url} }

// StyleDocument wraps an inline style document.
func StyleDocument(document map[string]any) Style { return Style{Document: document} }

// LoadStyleFile reads a style document from a .json or .jsonc file.
// JSONC comments and trailing commas are stripped before parsing.
func LoadStyleFile(path string) (Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Style{}, fmt.Errorf("%w: %s", ErrStyleNotFound, path)
		}
		return Style{}, fmt.Errorf("reading style file %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".jsonc") {
		data = jsonc.ToJSON(data)
	}

	var document map[string]any
	if err := json.Unmarshal(data, &document); err != nil {
		return Style{}, fmt.Errorf("%w: %s is not valid style JSON: %v", ErrInvalidStyle, path, err)
	}
	return StyleDocument(document), nil
}

// parseStyle normalizes the LoadStyle input forms: a Style, a URL
// string, a file path string, or an inline document map.
func parseStyle(style any) (Style, error) {
	switch value := style.(type) {
	case Style:
		if value.URL != "" && value.Document != nil {
			return Style{}, fmt.Errorf("%w: both URL and document set", ErrInvalidStyle)
		}
		return value, nil
	case map[string]any:
		return StyleDocument(value), nil
	case string:
		if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			return StyleURL(value), nil
		}
		if strings.Contains(value, "://") {
			return Style{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidStyle, value)
		}
		return LoadStyleFile(value)
	default:
		return Style{}, fmt.Errorf("%w: must be a URL, file path, or document, got %T", ErrInvalidStyle, style)
	}
}

// inline reports whether the style carries a mutable document.
func (s Style) inline() bool { return s.Document != nil }

// wire serializes the style to the renderer's protocol form: URLs
// verbatim, documents as JSON text.
func (s Style) wire() (string, error) {
	if s.Document != nil {
		encoded, err := json.Marshal(s.Document)
		if err != nil {
			return "", fmt.Errorf("serializing style document: %w", err)
		}
		return string(encoded), nil
	}
	if s.URL != "" {
		return s.URL, nil
	}
	return DefaultStyle, nil
}

// setGeoJSONSource installs data as a named GeoJSON source in the
// document, creating the sources map if the document lacks one.
func (s Style) setGeoJSONSource(sourceID string, data map[string]any) error {
	if !s.inline() {
		return ErrRequiresInlineStyle
	}
	sources, ok := s.Document["sources"].(map[string]any)
	if !ok {
		sources = map[string]any{}
		s.Document["sources"] = sources
	}
	sources[sourceID] = map[string]any{
		"type": "geojson",
		"data": data,
	}
	return nil
}
