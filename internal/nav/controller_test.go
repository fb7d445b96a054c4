package nav

import (
	"errors"
	"testing"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
	"github.com/marine-acoustics/hydroscope/internal/timeline"
)

var t0 = time.Date(2025, 4, 23, 2, 0, 0, 0, time.UTC)

func testTimeline(t *testing.T, n int) *timeline.Timeline {
	t.Helper()

	samples := make([]spectrum.Sample, n)
	for i := range samples {
		samples[i] = spectrum.Sample{
			Instant: t0.Add(time.Duration(i) * time.Second),
			Bins:    []float64{-80, -75, -90},
		}
	}

	tl, err := timeline.Assemble([]*spectrum.SourceFile{{
		Path:           "a.txt",
		DeclaredStart:  t0,
		Zone:           time.UTC,
		ZoneName:       "UTC",
		SampleInterval: time.Second,
		Freqs:          []float64{100, 200, 300},
		Samples:        samples,
	}}, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	return tl
}

func TestIndexAt(t *testing.T) {
	c := NewController(testTimeline(t, 101))

	testCases := []struct {
		p    float64
		want int
	}{
		{0, 0},
		{0.5, 50},
		{1, 100},
		{0.254, 25},
		{-0.5, 0},  // out-of-range positions clamp, never reject
		{1.5, 100}, // likewise past the end
	}

	for _, tc := range testCases {
		if got := c.IndexAt(tc.p); got != tc.want {
			t.Errorf("IndexAt(%v) = %d, want %d", tc.p, got, tc.want)
		}
	}
}

func TestZoom(t *testing.T) {
	c := NewController(testTimeline(t, 300))

	c.ZoomIn()
	if got := c.Span(); got != 200 {
		t.Errorf("span after ZoomIn = %d, want 200", got)
	}

	c.ZoomOut()
	if got := c.Span(); got != 300 {
		t.Errorf("span after ZoomOut = %d, want full 300", got)
	}

	// Zooming far in never drops below one sample.
	for i := 0; i < 30; i++ {
		c.ZoomIn()
	}
	if got := c.Span(); got < 1 {
		t.Errorf("span after repeated ZoomIn = %d, want >= 1", got)
	}

	// Zooming back out never exceeds the timeline.
	for i := 0; i < 30; i++ {
		c.ZoomOut()
	}
	start, end := c.Window()
	if start != 0 || end != 300 {
		t.Errorf("window after repeated ZoomOut = [%d, %d), want [0, 300)", start, end)
	}
}

func TestPanPreservesSpanAtBoundaries(t *testing.T) {
	c := NewController(testTimeline(t, 300))
	if err := c.SetRange(t0.Add(100*time.Second), t0.Add(199*time.Second)); err != nil {
		t.Fatalf("SetRange() error: %v", err)
	}
	if got := c.Span(); got != 100 {
		t.Fatalf("span = %d, want 100", got)
	}

	// Pan left by 10% repeatedly; at the left edge the span must hold.
	for i := 0; i < 50; i++ {
		c.PanLeft()
	}
	start, end := c.Window()
	if start != 0 {
		t.Errorf("start after panning to the edge = %d, want 0", start)
	}
	if end-start != 100 {
		t.Errorf("span after left clamp = %d, want 100", end-start)
	}

	// Same at the right edge.
	for i := 0; i < 50; i++ {
		c.PanRight()
	}
	start, end = c.Window()
	if end != 300 {
		t.Errorf("end after panning to the edge = %d, want 300", end)
	}
	if end-start != 100 {
		t.Errorf("span after right clamp = %d, want 100", end-start)
	}

	// A single pan in the interior shifts both bounds by the same step.
	c.JumpTo(0.5)
	before, _ := c.Window()
	c.PanRight()
	after, _ := c.Window()
	if after-before != 10 {
		t.Errorf("pan step = %d, want 10", after-before)
	}
}

func TestJumpToPreservesSpan(t *testing.T) {
	c := NewController(testTimeline(t, 300))
	if err := c.SetRange(t0, t0.Add(49*time.Second)); err != nil {
		t.Fatalf("SetRange() error: %v", err)
	}

	c.JumpTo(1.0)
	start, end := c.Window()
	if end != 300 || end-start != 50 {
		t.Errorf("window = [%d, %d), want span 50 ending at 300", start, end)
	}

	c.JumpTo(0.0)
	start, end = c.Window()
	if start != 0 || end-start != 50 {
		t.Errorf("window = [%d, %d), want span 50 starting at 0", start, end)
	}
}

func TestSetRange(t *testing.T) {
	c := NewController(testTimeline(t, 300))

	if err := c.SetRange(t0.Add(10*time.Second), t0.Add(19*time.Second)); err != nil {
		t.Fatalf("SetRange() error: %v", err)
	}
	start, end := c.Window()
	if start != 10 || end != 20 {
		t.Errorf("window = [%d, %d), want [10, 20)", start, end)
	}

	err := c.SetRange(t0.Add(time.Hour), t0.Add(2*time.Hour))
	if !errors.Is(err, ErrEmptyRange) {
		t.Errorf("SetRange() past the end error = %v, want ErrEmptyRange", err)
	}

	err = c.SetRange(t0.Add(time.Minute), t0)
	if !errors.Is(err, ErrEmptyRange) {
		t.Errorf("inverted SetRange() error = %v, want ErrEmptyRange", err)
	}
}

func TestVisibleSamples(t *testing.T) {
	c := NewController(testTimeline(t, 100))
	if err := c.SetRange(t0.Add(10*time.Second), t0.Add(14*time.Second)); err != nil {
		t.Fatalf("SetRange() error: %v", err)
	}

	var indices []int
	for i, s := range c.VisibleSamples() {
		indices = append(indices, i)
		want := t0.Add(time.Duration(i) * time.Second)
		if !s.Instant.Equal(want) {
			t.Errorf("sample %d instant = %v, want %v", i, s.Instant, want)
		}
	}
	if len(indices) != 5 || indices[0] != 10 || indices[4] != 14 {
		t.Errorf("visible indices = %v, want [10..14]", indices)
	}

	// The iterator is restartable.
	count := 0
	for range c.VisibleSamples() {
		count++
	}
	if count != 5 {
		t.Errorf("second iteration yielded %d samples, want 5", count)
	}
}

func TestRebaseReclampsWindow(t *testing.T) {
	c := NewController(testTimeline(t, 300))
	if err := c.SetRange(t0.Add(250*time.Second), t0.Add(299*time.Second)); err != nil {
		t.Fatalf("SetRange() error: %v", err)
	}

	c.Rebase(testTimeline(t, 100))
	start, end := c.Window()
	if start < 0 || end > 100 || start >= end {
		t.Errorf("window after Rebase = [%d, %d), want inside [0, 100]", start, end)
	}
	if end-start != 50 {
		t.Errorf("span after Rebase = %d, want preserved 50", end-start)
	}

	c.ResetToFull()
	start, end = c.Window()
	if start != 0 || end != 100 {
		t.Errorf("window after ResetToFull = [%d, %d), want [0, 100)", start, end)
	}
}
