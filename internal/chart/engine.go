// Package chart turns a normalized point sequence plus a viewport into
// renderable geometry: axis bounds, a polyline path, min/max markers, and a
// nearest-point hover resolver for tooltips and the crosshair.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/LouisHart1808/Plutus/internal/models"
)

// Default logical viewport, matching the dashboard's SVG viewBox.
const (
	DefaultWidth   = 640.0
	DefaultHeight  = 200.0
	DefaultPadding = 24.0

	// markerLabelMargin keeps min/max labels clear of the right edge.
	markerLabelMargin = 48.0
)

// Viewport is the logical drawing surface for one chart instance.
type Viewport struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding float64 `json:"padding"`
}

// AxisBounds is the padded vertical value range mapped onto the plot.
type AxisBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// XY is a position in logical viewport units.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarkerKind distinguishes the annotated extremes.
type MarkerKind string

const (
	MarkerMin MarkerKind = "min"
	MarkerMax MarkerKind = "max"
)

// Marker flags an extreme point for distinct visual annotation. LabelX is
// clamped so the label never clips off the right edge.
type Marker struct {
	Kind   MarkerKind `json:"kind"`
	Index  int        `json:"index"`
	At     XY         `json:"at"`
	LabelX float64    `json:"label_x"`
	Value  float64    `json:"value"`
}

// HoverState is the transient pointer interaction state. PointIndex always
// snaps to a valid in-range point, while ViewX/ViewY keep the unclamped
// cursor position so the crosshair tracks the true cursor past the data's
// edges.
type HoverState struct {
	PointIndex int     `json:"point_index"`
	ViewX      float64 `json:"view_x"`
	ViewY      float64 `json:"view_y"`
	PixelX     float64 `json:"pixel_x"`
	PixelY     float64 `json:"pixel_y"`
}

// Engine computes and caches geometry for a single chart instance. It is not
// safe for concurrent use; each chart view owns its own engine and nothing is
// shared across instances.
type Engine struct {
	viewport Viewport
	points   []models.TimeSeriesPoint

	// Display size may differ from the logical viewport when the host
	// scales the drawing surface; hover input arrives in display pixels.
	displayWidth  float64
	displayHeight float64

	bounds  AxisBounds
	path    []XY
	markers []Marker
	hover   *HoverState
}

// NewEngine creates an engine with the default logical viewport.
func NewEngine() *Engine {
	engine := &Engine{
		viewport:      Viewport{Width: DefaultWidth, Height: DefaultHeight, Padding: DefaultPadding},
		displayWidth:  DefaultWidth,
		displayHeight: DefaultHeight,
	}
	engine.recompute()
	return engine
}

// SetViewport sets the logical viewport dimensions and recomputes geometry.
func (e *Engine) SetViewport(width, height float64) {
	e.viewport.Width = width
	e.viewport.Height = height
	e.recompute()
}

// SetPadding overrides the plot padding and recomputes geometry.
func (e *Engine) SetPadding(padding float64) {
	e.viewport.Padding = padding
	e.recompute()
}

// SetDisplaySize records the displayed pixel size of the drawing surface so
// pointer input can be mapped back into logical units. Defaults to the
// logical viewport size (scale 1).
func (e *Engine) SetDisplaySize(width, height float64) {
	e.displayWidth = width
	e.displayHeight = height
}

// SetPoints replaces the point sequence, recomputes geometry, and clears any
// hover state: a stale hover referencing a now-invalid index must not survive
// a data change.
func (e *Engine) SetPoints(points []models.TimeSeriesPoint) {
	e.points = append([]models.TimeSeriesPoint(nil), points...)
	e.hover = nil
	e.recompute()
}

// Viewport returns the current logical viewport.
func (e *Engine) Viewport() Viewport {
	return e.viewport
}

// AxisBounds returns the padded vertical bounds.
func (e *Engine) AxisBounds() AxisBounds {
	return e.bounds
}

// Insufficient reports whether there are too few points to draw a path.
func (e *Engine) Insufficient() bool {
	return len(e.points) < 2
}

// Path returns the polyline vertices, or nil with fewer than 2 points.
func (e *Engine) Path() []XY {
	return e.path
}

// Markers returns the min/max annotations, or nil with fewer than 2 points.
func (e *Engine) Markers() []Marker {
	return e.markers
}

// Hover returns the current hover state, if any.
func (e *Engine) Hover() (HoverState, bool) {
	if e.hover == nil {
		return HoverState{}, false
	}
	return *e.hover, true
}

// PathData renders the polyline as an SVG path string, empty when there is
// insufficient data.
func (e *Engine) PathData() string {
	if len(e.path) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range e.path {
		if i == 0 {
			fmt.Fprintf(&b, "M%.2f %.2f", p.X, p.Y)
			continue
		}
		fmt.Fprintf(&b, " L%.2f %.2f", p.X, p.Y)
	}
	return b.String()
}

// AreaPathData renders the filled-area variant: the polyline closed down to
// the plot's bottom baseline.
func (e *Engine) AreaPathData() string {
	if len(e.path) == 0 {
		return ""
	}
	baseline := e.viewport.Height - e.viewport.Padding
	var b strings.Builder
	b.WriteString(e.PathData())
	fmt.Fprintf(&b, " L%.2f %.2f", e.path[len(e.path)-1].X, baseline)
	fmt.Fprintf(&b, " L%.2f %.2f", e.path[0].X, baseline)
	b.WriteString(" Z")
	return b.String()
}

// OnPointerMove resolves a raw cursor pixel position to the nearest point.
// Selection clamps to the plot's inner horizontal bounds and snaps to a valid
// index in [0, n-1]; the unclamped logical position is retained for crosshair
// placement.
func (e *Engine) OnPointerMove(pixelX, pixelY float64) (HoverState, bool) {
	n := len(e.points)
	if n == 0 {
		e.hover = nil
		return HoverState{}, false
	}

	scaleX, scaleY := 1.0, 1.0
	if e.displayWidth > 0 {
		scaleX = e.viewport.Width / e.displayWidth
	}
	if e.displayHeight > 0 {
		scaleY = e.viewport.Height / e.displayHeight
	}
	viewX := pixelX * scaleX
	viewY := pixelY * scaleY

	inner := e.innerWidth()
	left := e.viewport.Padding
	clampedX := math.Min(math.Max(viewX, left), left+inner)

	index := 0
	if n > 1 && inner > 0 {
		fraction := (clampedX - left) / inner * float64(n-1)
		index = int(math.Round(fraction))
		if index < 0 {
			index = 0
		}
		if index > n-1 {
			index = n - 1
		}
	}

	hover := HoverState{
		PointIndex: index,
		ViewX:      viewX,
		ViewY:      viewY,
		PixelX:     pixelX,
		PixelY:     pixelY,
	}
	e.hover = &hover
	return hover, true
}

// OnPointerLeave clears the hover state.
func (e *Engine) OnPointerLeave() {
	e.hover = nil
}

// PointAt maps an ordinal point index to its logical position.
func (e *Engine) PointAt(index int) XY {
	return XY{X: e.xAt(index), Y: e.yAt(e.points[index].V)}
}

// recompute rebuilds axis bounds, path, and markers from the current point
// sequence and viewport.
func (e *Engine) recompute() {
	e.bounds = computeBounds(e.points)

	if len(e.points) < 2 {
		// Insufficient data: no drawable path, no markers. Not an error.
		e.path = nil
		e.markers = nil
		return
	}

	path := make([]XY, len(e.points))
	minIndex, maxIndex := 0, 0
	for i, point := range e.points {
		path[i] = XY{X: e.xAt(i), Y: e.yAt(point.V)}
		// First occurrence wins when a value repeats.
		if point.V < e.points[minIndex].V {
			minIndex = i
		}
		if point.V > e.points[maxIndex].V {
			maxIndex = i
		}
	}
	e.path = path
	e.markers = []Marker{
		e.markerAt(MarkerMin, minIndex),
		e.markerAt(MarkerMax, maxIndex),
	}
}

func (e *Engine) markerAt(kind MarkerKind, index int) Marker {
	at := e.path[index]
	labelX := math.Min(at.X, e.viewport.Width-markerLabelMargin)
	return Marker{
		Kind:   kind,
		Index:  index,
		At:     at,
		LabelX: labelX,
		Value:  e.points[index].V,
	}
}

// xAt maps index i of n points to padding + (i / max(n-1, 1)) * innerWidth.
// With a single point everything sits on the left padding edge.
func (e *Engine) xAt(index int) float64 {
	n := len(e.points)
	divisor := float64(n - 1)
	if divisor < 1 {
		divisor = 1
	}
	return e.viewport.Padding + float64(index)/divisor*e.innerWidth()
}

// yAt maps a value into chart coordinates: higher value, smaller y.
func (e *Engine) yAt(value float64) float64 {
	spread := e.bounds.Max - e.bounds.Min
	if spread <= 0 {
		spread = 1
	}
	return e.viewport.Padding + (1-(value-e.bounds.Min)/spread)*e.innerHeight()
}

func (e *Engine) innerWidth() float64 {
	return e.viewport.Width - 2*e.viewport.Padding
}

func (e *Engine) innerHeight() float64 {
	return e.viewport.Height - 2*e.viewport.Padding
}

// computeBounds pads the raw value range by 5% of the spread, or by an
// absolute 0.01 when the range is flat, so the vertical mapping never
// degenerates to zero height.
func computeBounds(points []models.TimeSeriesPoint) AxisBounds {
	if len(points) == 0 {
		return AxisBounds{Min: 0, Max: 1}
	}
	min, max := points[0].V, points[0].V
	for _, point := range points[1:] {
		if point.V < min {
			min = point.V
		}
		if point.V > max {
			max = point.V
		}
	}
	if min == max {
		return AxisBounds{Min: min - 0.01, Max: max + 0.01}
	}
	pad := (max - min) * 0.05
	return AxisBounds{Min: min - pad, Max: max + pad}
}
