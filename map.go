// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package mlnative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/adonm/mlnative/geo"
	"github.com/adonm/mlnative/lib/clock"
	"github.com/adonm/mlnative/render"
	"github.com/adonm/mlnative/renderstore"
)

// Validation limits for render parameters.
const (
	MaxDimension = 4096
	MaxZoom      = 24
	MaxPitch     = 85
)

// View is one requested camera position. Sources optionally names
// GeoJSON source updates to apply before rendering this view; using
// it requires an inline style document.
type View struct {
	// Center is (longitude, latitude) in degrees.
	Center [2]float64

	// Zoom is the zoom level, 0 to 24.
	Zoom float64

	// Bearing is the map rotation in degrees. Any value is accepted
	// and wrapped into [0, 360).
	Bearing float64

	// Pitch is the camera tilt in degrees, 0 to 85.
	Pitch float64

	// Sources maps source IDs to GeoJSON documents installed in the
	// style before this view renders.
	Sources map[string]any
}

// backend is the daemon surface the facade drives. Satisfied by
// *render.Daemon; tests substitute an in-process fake.
type backend interface {
	Render(render.View) ([]byte, error)
	RenderBatch([]render.View) ([][]byte, error)
	ReloadStyle(string) error
	Stop() error
	State() render.State
}

// Map renders styled map images through a supervised renderer
// process. The renderer is spawned lazily on the first render call
// and torn down by Close.
//
// A Map is not safe for concurrent use; callers serialize access or
// use one Map per worker.
type Map struct {
	width      int
	height     int
	pixelRatio float64
	binaryPath string
	vendorDir  string
	timeout    time.Duration
	logger     *slog.Logger
	clock      clock.Clock
	cache      *renderstore.Store

	style      Style
	styleDirty bool
	backend    backend
	closed     bool

	// start spawns the renderer. Swapped by tests.
	start func(config render.Config) (backend, error)
}

// Option configures a Map at construction.
type Option func(*Map)

// WithPixelRatio sets the rendering pixel ratio for high-DPI output.
func WithPixelRatio(ratio float64) Option {
	return func(m *Map) { m.pixelRatio = ratio }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Map) { m.logger = logger }
}

// WithClock injects the clock driving command timeouts and shutdown
// grace periods. Defaults to the real clock.
func WithClock(clk clock.Clock) Option {
	return func(m *Map) { m.clock = clk }
}

// WithCache enables the content-addressed render cache. Single-view
// renders consult it before touching the renderer; batches bypass it.
func WithCache(store *renderstore.Store) Option {
	return func(m *Map) { m.cache = store }
}

// WithBinaryPath overrides renderer binary resolution.
func WithBinaryPath(path string) Option {
	return func(m *Map) { m.binaryPath = path }
}

// WithVendorDir sets the renderer's bundled asset directory.
func WithVendorDir(dir string) Option {
	return func(m *Map) { m.vendorDir = dir }
}

// WithTimeout overrides the per-command timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Map) { m.timeout = timeout }
}

// New creates a map renderer producing width x height images.
func New(width, height int, options ...Option) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: must be at most %d, got %dx%d", ErrInvalidDimensions, MaxDimension, width, height)
	}

	m := &Map{
		width:      width,
		height:     height,
		pixelRatio: 1.0,
	}
	for _, option := range options {
		option(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	m.start = m.startDaemon
	return m, nil
}

// LoadStyle sets the active style: a URL string, a .json/.jsonc file
// path, an inline document map, or a Style value. If the renderer is
// already running, the new style is pushed before the next render.
func (m *Map) LoadStyle(style any) error {
	if m.closed {
		return fmt.Errorf("load style: %w", ErrClosed)
	}
	parsed, err := parseStyle(style)
	if err != nil {
		return fmt.Errorf("load style: %w", err)
	}
	m.style = parsed
	m.styleDirty = m.backend != nil
	return nil
}

// SetGeoJSON installs data as the named GeoJSON source in the active
// inline style. The data may be a GeoJSON document map or JSON text.
// Fails with ErrRequiresInlineStyle when the active style is a URL
// reference, which has no document to mutate.
func (m *Map) SetGeoJSON(sourceID string, data any) error {
	if m.closed {
		return fmt.Errorf("set geojson: %w", ErrClosed)
	}

	document, err := geoJSONDocument(data)
	if err != nil {
		return fmt.Errorf("set geojson: %w", err)
	}
	if err := m.style.setGeoJSONSource(sourceID, document); err != nil {
		return fmt.Errorf("set geojson %q: %w", sourceID, err)
	}
	m.styleDirty = m.backend != nil
	return nil
}

// Render renders one view to PNG bytes. The renderer process is
// started on first use; parameters are validated before any daemon
// interaction.
func (m *Map) Render(view View) ([]byte, error) {
	if m.closed {
		return nil, fmt.Errorf("render: %w", ErrClosed)
	}
	if err := validateView(view); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	view.Bearing = normalizeBearing(view.Bearing)

	if len(view.Sources) > 0 {
		if err := m.applySources(view.Sources); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
	}
	if err := m.ensureReady(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	key, cached, err := m.cacheLookup(view)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	image, err := m.backend.Render(wireView(view))
	if err != nil {
		return nil, err
	}
	m.cacheStore(key, view, image)
	return image, nil
}

// RenderBatch renders the views in order. When no view carries source
// updates the batch goes to the renderer as one command; otherwise
// the facade falls back to rendering serially, reloading the style
// between views, because the batch command cannot mutate sources per
// view.
func (m *Map) RenderBatch(views []View) ([][]byte, error) {
	if m.closed {
		return nil, fmt.Errorf("render batch: %w", ErrClosed)
	}
	if len(views) == 0 {
		return nil, nil
	}

	withSources := false
	normalized := make([]View, len(views))
	for i, view := range views {
		if err := validateView(view); err != nil {
			return nil, fmt.Errorf("render batch: view %d: %w", i, err)
		}
		if len(view.Sources) > 0 {
			withSources = true
		}
		normalized[i] = view
		normalized[i].Bearing = normalizeBearing(view.Bearing)
	}
	if withSources && !m.style.inline() {
		return nil, fmt.Errorf("render batch: %w", ErrRequiresInlineStyle)
	}
	views = normalized

	if err := m.ensureReady(); err != nil {
		return nil, fmt.Errorf("render batch: %w", err)
	}

	if withSources {
		return m.renderSerial(views)
	}

	wire := make([]render.View, len(views))
	for i, view := range views {
		wire[i] = wireView(view)
	}
	return m.backend.RenderBatch(wire)
}

// renderSerial is the degraded batch path for views carrying source
// updates: each view's sources are installed, the style reloaded, and
// the view rendered, one at a time in request order.
func (m *Map) renderSerial(views []View) ([][]byte, error) {
	m.logger.Info("batch has per-view source updates, rendering serially",
		"views", len(views),
	)
	images := make([][]byte, len(views))
	for i, view := range views {
		if len(view.Sources) > 0 {
			if err := m.applySources(view.Sources); err != nil {
				return nil, fmt.Errorf("render batch: view %d: %w", i, err)
			}
			if err := m.reconcileStyle(); err != nil {
				return nil, fmt.Errorf("render batch: view %d: %w", i, err)
			}
		}
		image, err := m.backend.Render(wireView(view))
		if err != nil {
			return nil, fmt.Errorf("render batch: view %d: %w", i, err)
		}
		images[i] = image
	}
	return images, nil
}

// FitOption adjusts FitBounds and RenderBounds.
type FitOption func(*geo.FitOptions)

// FitPadding keeps a pixel margin clear on every viewport edge.
func FitPadding(pixels int) FitOption {
	return func(o *geo.FitOptions) { o.Padding = pixels }
}

// FitMaxZoom caps the fitted zoom level.
func FitMaxZoom(zoom float64) FitOption {
	return func(o *geo.FitOptions) { o.MaxZoom = zoom }
}

// FitBounds computes the center and zoom framing bounds in this map's
// viewport at its pixel ratio. Pure computation; the renderer is not
// touched.
func (m *Map) FitBounds(bounds geo.Bounds, options ...FitOption) ([2]float64, float64, error) {
	if m.closed {
		return [2]float64{}, 0, fmt.Errorf("fit bounds: %w", ErrClosed)
	}
	fitOptions := geo.FitOptions{PixelRatio: m.pixelRatio}
	for _, option := range options {
		option(&fitOptions)
	}
	return geo.FitBounds(bounds,
		geo.Viewport{Width: m.width, Height: m.height},
		fitOptions,
	)
}

// RenderBounds fits bounds into the viewport and renders at the
// resulting camera.
func (m *Map) RenderBounds(bounds geo.Bounds, options ...FitOption) ([]byte, error) {
	center, zoom, err := m.FitBounds(bounds, options...)
	if err != nil {
		return nil, err
	}
	return m.Render(View{Center: center, Zoom: zoom})
}

// Close stops the renderer process. Idempotent; every operation after
// Close fails with ErrClosed.
func (m *Map) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.backend == nil {
		return nil
	}
	err := m.backend.Stop()
	m.backend = nil
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// ensureReady starts the renderer on first use and pushes any pending
// style change.
func (m *Map) ensureReady() error {
	if m.backend == nil {
		wire, err := m.style.wire()
		if err != nil {
			return err
		}
		started, err := m.start(render.Config{
			Width:      m.width,
			Height:     m.height,
			PixelRatio: m.pixelRatio,
			Style:      wire,
			BinaryPath: m.binaryPath,
			VendorDir:  m.vendorDir,
			Timeout:    m.timeout,
			Logger:     m.logger,
			Clock:      m.clock,
		})
		if err != nil {
			return err
		}
		m.backend = started
		m.styleDirty = false
		return nil
	}
	return m.reconcileStyle()
}

// reconcileStyle pushes the active style to the running renderer if
// it changed since the last dispatch.
func (m *Map) reconcileStyle() error {
	if !m.styleDirty {
		return nil
	}
	wire, err := m.style.wire()
	if err != nil {
		return err
	}
	if err := m.backend.ReloadStyle(wire); err != nil {
		return err
	}
	m.styleDirty = false
	return nil
}

// applySources installs per-view source updates into the inline
// style; the next reconcile pushes them.
func (m *Map) applySources(sources map[string]any) error {
	for sourceID, data := range sources {
		document, err := geoJSONDocument(data)
		if err != nil {
			return fmt.Errorf("source %q: %w", sourceID, err)
		}
		if err := m.style.setGeoJSONSource(sourceID, document); err != nil {
			return fmt.Errorf("source %q: %w", sourceID, err)
		}
	}
	m.styleDirty = m.backend != nil
	return nil
}

// cacheLookup computes the request key and consults the cache. The
// key is returned for the store step even on a miss; a zero key with
// nil payload means caching is disabled.
func (m *Map) cacheLookup(view View) (renderstore.Key, []byte, error) {
	if m.cache == nil {
		return renderstore.Key{}, nil, nil
	}
	request, err := m.cacheRequest(view)
	if err != nil {
		return renderstore.Key{}, nil, err
	}
	key, err := renderstore.RequestKey(request)
	if err != nil {
		return renderstore.Key{}, nil, err
	}
	image, found, err := m.cache.Get(key)
	if err != nil {
		// The cache is advisory: a damaged entry costs a re-render
		// and gets overwritten by the store step, never a failure.
		m.logger.Warn("render cache read failed",
			"key", renderstore.FormatKey(key),
			"error", err,
		)
		return key, nil, nil
	}
	if found {
		m.logger.Debug("render cache hit", "key", renderstore.FormatKey(key))
		return key, image, nil
	}
	return key, nil, nil
}

// cacheStore records a rendered image under its request key. Cache
// write failures are logged, never surfaced: the render succeeded.
func (m *Map) cacheStore(key renderstore.Key, view View, image []byte) {
	if m.cache == nil {
		return
	}
	request, err := m.cacheRequest(view)
	if err != nil {
		m.logger.Warn("render cache store skipped", "error", err)
		return
	}
	meta := renderstore.Meta{
		Request:   request,
		ImageHash: renderstore.FormatKey(renderstore.ImageKey(image)),
		CreatedAt: m.clock.Now(),
		Size:      int64(len(image)),
	}
	if err := m.cache.Put(key, image, meta); err != nil {
		m.logger.Warn("render cache store failed",
			"key", renderstore.FormatKey(key),
			"error", err,
		)
	}
}

func (m *Map) cacheRequest(view View) (renderstore.Request, error) {
	wire, err := m.style.wire()
	if err != nil {
		return renderstore.Request{}, err
	}
	return renderstore.Request{
		Width:      m.width,
		Height:     m.height,
		PixelRatio: m.pixelRatio,
		Style:      wire,
		Center:     view.Center,
		Zoom:       view.Zoom,
		Bearing:    view.Bearing,
		Pitch:      view.Pitch,
	}, nil
}

// startDaemon is the production start hook: spawn and initialize a
// renderer process.
func (m *Map) startDaemon(config render.Config) (backend, error) {
	daemon := &render.Daemon{}
	if err := daemon.Start(context.Background(), config); err != nil {
		return nil, err
	}
	return daemon, nil
}

// validateView checks each camera parameter against the renderer's
// accepted ranges, one distinct error per parameter.
func validateView(view View) error {
	longitude, latitude := view.Center[0], view.Center[1]
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) ||
		math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return fmt.Errorf("%w: got (%v, %v)", ErrInvalidCenter, longitude, latitude)
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("%w: got %v", ErrInvalidLongitude, longitude)
	}
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: got %v", ErrInvalidLatitude, latitude)
	}
	if view.Zoom < 0 || view.Zoom > MaxZoom || math.IsNaN(view.Zoom) {
		return fmt.Errorf("%w: got %v", ErrInvalidZoom, view.Zoom)
	}
	if view.Pitch < 0 || view.Pitch > MaxPitch || math.IsNaN(view.Pitch) {
		return fmt.Errorf("%w: got %v", ErrInvalidPitch, view.Pitch)
	}
	return nil
}

// normalizeBearing wraps any bearing into [0, 360).
func normalizeBearing(bearing float64) float64 {
	wrapped := math.Mod(bearing, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped
}

// geoJSONDocument normalizes GeoJSON input: a document map or JSON
// text.
func geoJSONDocument(data any) (map[string]any, error) {
	switch value := data.(type) {
	case map[string]any:
		return value, nil
	case string:
		var document map[string]any
		if err := json.Unmarshal([]byte(value), &document); err != nil {
			return nil, fmt.Errorf("invalid GeoJSON text: %w", err)
		}
		return document, nil
	case []byte:
		var document map[string]any
		if err := json.Unmarshal(value, &document); err != nil {
			return nil, fmt.Errorf("invalid GeoJSON text: %w", err)
		}
		return document, nil
	default:
		return nil, fmt.Errorf("GeoJSON must be a document map or JSON text, got %T", data)
	}
}

// wireView converts a facade view to its protocol form. Sources never
// cross this boundary; they are folded into the style beforehand.
func wireView(view View) render.View {
	return render.View{
		Center:  view.Center,
		Zoom:    view.Zoom,
		Bearing: view.Bearing,
		Pitch:   view.Pitch,
	}
}
