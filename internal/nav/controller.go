// Package nav centralizes all view-window mutation over a timeline. Every
// zoom, pan and jump goes through the Controller so the window invariants
// are enforced in one place.
package nav

import (
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
	"github.com/marine-acoustics/hydroscope/internal/timeline"
)

const (
	// DefaultZoomFactor is the span multiplier applied by ZoomIn/ZoomOut.
	DefaultZoomFactor = 1.5

	// DefaultPanFraction is the fraction of the span shifted by a pan.
	DefaultPanFraction = 0.10
)

// ErrEmptyRange is returned by SetRange when the requested instants resolve
// to no samples.
var ErrEmptyRange = timeline.ErrEmptyRange

// Option configures a Controller.
type Option func(*Controller)

// WithZoomFactor overrides the zoom multiplier.
func WithZoomFactor(f float64) Option {
	return func(c *Controller) {
		if f > 1 {
			c.zoomFactor = f
		}
	}
}

// WithPanFraction overrides the pan step as a fraction of the span.
func WithPanFraction(f float64) Option {
	return func(c *Controller) {
		if f > 0 && f <= 1 {
			c.panFraction = f
		}
	}
}

// Controller owns the view window over a timeline. The window is a
// half-open index range [start, end) with 0 <= start < end <= Len().
// Operations preserve the span at boundaries: a clamped bound shifts the
// opposite bound by the same delta instead of shrinking the window.
type Controller struct {
	tl    *timeline.Timeline
	start int
	end   int

	zoomFactor  float64
	panFraction float64
}

// NewController creates a Controller with the window spanning the full
// timeline.
func NewController(tl *timeline.Timeline, opts ...Option) *Controller {
	c := &Controller{
		tl:          tl,
		end:         tl.Len(),
		zoomFactor:  DefaultZoomFactor,
		panFraction: DefaultPanFraction,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the current half-open index range.
func (c *Controller) Window() (start, end int) {
	return c.start, c.end
}

// Span returns the number of samples in the window.
func (c *Controller) Span() int {
	return c.end - c.start
}

// Timeline returns the timeline the controller navigates.
func (c *Controller) Timeline() *timeline.Timeline {
	return c.tl
}

// IndexAt maps a fractional position to a sample index. Out-of-range
// positions are clamped, never rejected.
func (c *Controller) IndexAt(p float64) int {
	n := c.tl.Len()
	if n == 0 {
		return 0
	}
	return clamp(int(math.Round(p*float64(n-1))), 0, n-1)
}

// ZoomIn shrinks the span around the window midpoint.
func (c *Controller) ZoomIn() {
	c.setSpanAroundCenter(int(math.Round(float64(c.Span()) / c.zoomFactor)))
}

// ZoomOut grows the span around the window midpoint, clamped to the full
// timeline.
func (c *Controller) ZoomOut() {
	c.setSpanAroundCenter(int(math.Round(float64(c.Span()) * c.zoomFactor)))
}

func (c *Controller) setSpanAroundCenter(span int) {
	span = clamp(span, 1, c.tl.Len())
	center := (c.start + c.end) / 2
	start := center - span/2
	c.start, c.end = clampWindow(start, start+span, c.tl.Len())
}

// PanLeft shifts the window toward index zero by the pan fraction of the
// span, preserving the span at the boundary.
func (c *Controller) PanLeft() {
	c.shift(-c.panStep())
}

// PanRight shifts the window toward the end of the timeline by the pan
// fraction of the span, preserving the span at the boundary.
func (c *Controller) PanRight() {
	c.shift(c.panStep())
}

func (c *Controller) panStep() int {
	step := int(math.Round(float64(c.Span()) * c.panFraction))
	if step < 1 {
		step = 1
	}
	return step
}

func (c *Controller) shift(delta int) {
	c.start, c.end = clampWindow(c.start+delta, c.end+delta, c.tl.Len())
}

// JumpTo recenters the window on a fractional position in [0, 1],
// preserving the span.
func (c *Controller) JumpTo(p float64) {
	span := c.Span()
	start := c.IndexAt(p) - span/2
	c.start, c.end = clampWindow(start, start+span, c.tl.Len())
}

// JumpToInstant recenters the window on the sample nearest to a canonical
// instant, preserving the span.
func (c *Controller) JumpToInstant(instant time.Time) {
	span := c.Span()
	i := c.tl.IndexOf(instant)
	if i >= c.tl.Len() {
		i = c.tl.Len() - 1
	}
	start := i - span/2
	c.start, c.end = clampWindow(start, start+span, c.tl.Len())
}

// SetRange resolves both instants to indices by binary search and sets the
// window directly. Fails with ErrEmptyRange when no samples fall inside.
func (c *Controller) SetRange(start, end time.Time) error {
	lo, hi, err := c.tl.ResolveRange(start, end)
	if err != nil {
		return fmt.Errorf("setting range: %w", err)
	}
	c.start, c.end = lo, hi+1
	return nil
}

// ResetToFull sets the window to the whole timeline.
func (c *Controller) ResetToFull() {
	c.start, c.end = 0, c.tl.Len()
}

// Rebase replaces the timeline, re-clamping the window so an in-flight view
// survives an atomic timeline swap.
func (c *Controller) Rebase(tl *timeline.Timeline) {
	c.tl = tl
	if c.end == 0 {
		c.start, c.end = 0, tl.Len()
		return
	}
	c.start, c.end = clampWindow(c.start, c.end, tl.Len())
}

// VisibleSamples returns a restartable iterator over the samples currently
// in the window, keyed by global index. This is the only read surface the
// rendering collaborator uses.
func (c *Controller) VisibleSamples() iter.Seq2[int, spectrum.Sample] {
	start, end := c.start, c.end
	return func(yield func(int, spectrum.Sample) bool) {
		for i := start; i < end; i++ {
			if !yield(i, c.tl.Resolve(i)) {
				return
			}
		}
	}
}

// VisibleRange returns the canonical instants of the first and last visible
// samples.
func (c *Controller) VisibleRange() (time.Time, time.Time) {
	if c.Span() <= 0 {
		return time.Time{}, time.Time{}
	}
	return c.tl.Resolve(c.start).Instant, c.tl.Resolve(c.end - 1).Instant
}

// clampWindow clamps [start, end) into [0, n] preserving the span whenever
// the timeline is long enough to hold it.
func clampWindow(start, end, n int) (int, int) {
	span := end - start
	if span < 1 {
		span = 1
	}
	if span > n {
		return 0, n
	}
	if start < 0 {
		return 0, span
	}
	if end > n {
		return n - span, n
	}
	return start, end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
