package chart

import (
	"math"
	"strings"
	"testing"

	"github.com/LouisHart1808/Plutus/internal/models"
)

func pointsFrom(values ...float64) []models.TimeSeriesPoint {
	points := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = models.TimeSeriesPoint{T: "2024-01-01", V: v}
	}
	return points
}

func TestEngine_HorizontalMappingScenario(t *testing.T) {
	// Width 640, padding 24, 5 points: index 4 maps to 24 + (4/4)*(640-48).
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 2, 3, 4, 5))

	path := engine.Path()
	if len(path) != 5 {
		t.Fatalf("Path() length = %d, want 5", len(path))
	}
	if path[4].X != 616 {
		t.Errorf("x(4) = %v, want 616", path[4].X)
	}
	if path[0].X != 24 {
		t.Errorf("x(0) = %v, want 24", path[0].X)
	}
}

func TestEngine_HorizontalMappingMonotonic(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(3, 1, 4, 1, 5, 9, 2, 6))

	path := engine.Path()
	for i := 1; i < len(path); i++ {
		if path[i].X <= path[i-1].X {
			t.Errorf("x not strictly increasing at %d: %v <= %v", i, path[i].X, path[i-1].X)
		}
	}
}

func TestEngine_VerticalMapping(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 3))

	path := engine.Path()
	// Higher value maps to smaller y.
	if path[1].Y >= path[0].Y {
		t.Errorf("y(3) = %v not above y(1) = %v", path[1].Y, path[0].Y)
	}
	// Both inside the padded plot area.
	for i, p := range path {
		if p.Y < 24 || p.Y > 200-24 {
			t.Errorf("y(%d) = %v outside plot area", i, p.Y)
		}
	}
}

func TestEngine_AxisBoundsPadding(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(10, 20))

	bounds := engine.AxisBounds()
	if got, want := bounds.Min, 9.5; math.Abs(got-want) > 1e-9 {
		t.Errorf("bounds.Min = %v, want %v", got, want)
	}
	if got, want := bounds.Max, 20.5; math.Abs(got-want) > 1e-9 {
		t.Errorf("bounds.Max = %v, want %v", got, want)
	}
}

func TestEngine_AxisBoundsFlatSeries(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(5, 5, 5))

	bounds := engine.AxisBounds()
	if bounds.Min != 4.99 || bounds.Max != 5.01 {
		t.Errorf("flat bounds = %+v, want [4.99, 5.01]", bounds)
	}
	// No degenerate division: y values stay finite.
	for i, p := range engine.Path() {
		if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			t.Errorf("y(%d) = %v on flat series", i, p.Y)
		}
	}
}

func TestEngine_InsufficientData(t *testing.T) {
	engine := NewEngine()

	for _, points := range [][]models.TimeSeriesPoint{nil, pointsFrom(1)} {
		engine.SetPoints(points)
		if !engine.Insufficient() {
			t.Errorf("Insufficient() = false with %d points", len(points))
		}
		if engine.Path() != nil {
			t.Errorf("Path() = %v with %d points, want nil", engine.Path(), len(points))
		}
		if engine.PathData() != "" {
			t.Errorf("PathData() = %q with %d points, want empty", engine.PathData(), len(points))
		}
		if engine.Markers() != nil {
			t.Errorf("Markers() present with %d points", len(points))
		}
	}
}

func TestEngine_SinglePointHoverDoesNotDivideByZero(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(1.5))

	hover, ok := engine.OnPointerMove(500, 100)
	if !ok {
		t.Fatal("OnPointerMove() = none with one point")
	}
	if hover.PointIndex != 0 {
		t.Errorf("PointIndex = %d with one point, want 0", hover.PointIndex)
	}
}

func TestEngine_Markers(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	// Min value 1 repeats; the first occurrence (index 1) wins.
	engine.SetPoints(pointsFrom(3, 1, 5, 1, 5))

	markers := engine.Markers()
	if len(markers) != 2 {
		t.Fatalf("Markers() length = %d, want 2", len(markers))
	}

	var minMarker, maxMarker Marker
	for _, marker := range markers {
		switch marker.Kind {
		case MarkerMin:
			minMarker = marker
		case MarkerMax:
			maxMarker = marker
		}
	}
	if minMarker.Index != 1 || minMarker.Value != 1 {
		t.Errorf("min marker = %+v, want index 1 value 1", minMarker)
	}
	if maxMarker.Index != 2 || maxMarker.Value != 5 {
		t.Errorf("max marker = %+v, want index 2 value 5", maxMarker)
	}
}

func TestEngine_MarkerLabelClampedToRightEdge(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	// Max at the last point, whose x is 616, past the label clamp.
	engine.SetPoints(pointsFrom(1, 2, 3, 4, 9))

	for _, marker := range engine.Markers() {
		if marker.LabelX > 640-markerLabelMargin {
			t.Errorf("%s label x = %v exceeds clamp %v", marker.Kind, marker.LabelX, 640.0-markerLabelMargin)
		}
	}
}

func TestEngine_HoverSnapsToNearestIndex(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 2, 3, 4, 5))

	tests := []struct {
		name   string
		pixelX float64
		want   int
	}{
		{"left edge", 24, 0},
		{"right edge", 616, 4},
		{"middle", 320, 2},
		{"snaps up", 470, 3},
		{"past left", -50, 0},
		{"past right", 2000, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hover, ok := engine.OnPointerMove(tt.pixelX, 100)
			if !ok {
				t.Fatal("OnPointerMove() = none")
			}
			if hover.PointIndex != tt.want {
				t.Errorf("PointIndex = %d, want %d", hover.PointIndex, tt.want)
			}
			if hover.PointIndex < 0 || hover.PointIndex > 4 {
				t.Errorf("PointIndex = %d out of range", hover.PointIndex)
			}
		})
	}
}

func TestEngine_HoverIdempotent(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(1, 2, 3))

	first, ok := engine.OnPointerMove(333, 50)
	if !ok {
		t.Fatal("OnPointerMove() = none")
	}
	second, ok := engine.OnPointerMove(333, 50)
	if !ok {
		t.Fatal("OnPointerMove() = none on repeat")
	}
	if first != second {
		t.Errorf("hover not idempotent: %+v vs %+v", first, second)
	}
}

func TestEngine_HoverKeepsUnclampedCursor(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 2, 3))

	// Cursor past the data's right edge: selection snaps, crosshair tracks.
	hover, ok := engine.OnPointerMove(700, 100)
	if !ok {
		t.Fatal("OnPointerMove() = none")
	}
	if hover.PointIndex != 2 {
		t.Errorf("PointIndex = %d, want 2", hover.PointIndex)
	}
	if hover.ViewX != 700 {
		t.Errorf("ViewX = %v, want unclamped 700", hover.ViewX)
	}
}

func TestEngine_HoverScalesDisplayPixels(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 2, 3, 4, 5))
	// Rendered at twice the logical size.
	engine.SetDisplaySize(1280, 400)

	hover, ok := engine.OnPointerMove(1232, 200)
	if !ok {
		t.Fatal("OnPointerMove() = none")
	}
	if hover.ViewX != 616 {
		t.Errorf("ViewX = %v, want 616 after descaling", hover.ViewX)
	}
	if hover.PointIndex != 4 {
		t.Errorf("PointIndex = %d, want 4", hover.PointIndex)
	}
}

func TestEngine_HoverClearedOnPointChange(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(1, 2, 3, 4, 5))

	if _, ok := engine.OnPointerMove(300, 100); !ok {
		t.Fatal("OnPointerMove() = none")
	}
	if _, ok := engine.Hover(); !ok {
		t.Fatal("Hover() missing after pointer move")
	}

	// A shorter series invalidates the old index; it must be cleared, not
	// re-indexed.
	engine.SetPoints(pointsFrom(1, 2))
	if _, ok := engine.Hover(); ok {
		t.Error("Hover() survived a point-sequence change")
	}
}

func TestEngine_PointerLeaveClearsHover(t *testing.T) {
	engine := NewEngine()
	engine.SetPoints(pointsFrom(1, 2, 3))

	engine.OnPointerMove(100, 50)
	engine.OnPointerLeave()
	if _, ok := engine.Hover(); ok {
		t.Error("Hover() present after pointer leave")
	}
}

func TestEngine_PathData(t *testing.T) {
	engine := NewEngine()
	engine.SetViewport(640, 200)
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 2, 3))

	pathData := engine.PathData()
	if !strings.HasPrefix(pathData, "M24.00 ") {
		t.Errorf("PathData() = %q, want M24.00 prefix", pathData)
	}
	if strings.Count(pathData, "L") != 2 {
		t.Errorf("PathData() = %q, want 2 line segments", pathData)
	}

	areaData := engine.AreaPathData()
	if !strings.HasSuffix(areaData, " Z") {
		t.Errorf("AreaPathData() = %q, want trailing Z", areaData)
	}
	// The area closes down to the baseline at height - padding.
	if !strings.Contains(areaData, "176.00") {
		t.Errorf("AreaPathData() = %q, want baseline at 176", areaData)
	}
}

func TestEngine_ViewportChangeRecomputesGeometry(t *testing.T) {
	engine := NewEngine()
	engine.SetPadding(24)
	engine.SetPoints(pointsFrom(1, 2, 3))

	engine.SetViewport(640, 200)
	xBefore := engine.Path()[2].X

	engine.SetViewport(320, 200)
	xAfter := engine.Path()[2].X
	if xAfter >= xBefore {
		t.Errorf("x(2) = %v after shrink, want < %v", xAfter, xBefore)
	}
	if xAfter != 320-24 {
		t.Errorf("x(2) = %v, want %v", xAfter, 320.0-24)
	}
}
