// Package timeline assembles parsed recordings into a single ordered
// timeline of canonical-time samples, with gap markers where recording
// coverage is discontinuous.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
)

var (
	// ErrEmptyInput indicates no recordings were supplied, or none carried
	// samples.
	ErrEmptyInput = errors.New("no recordings to assemble")

	// ErrOverlappingFiles indicates two recordings cover overlapping time
	// ranges and cannot be placed on one timeline.
	ErrOverlappingFiles = errors.New("overlapping recordings")

	// ErrBinMismatch indicates recordings disagree on the number of
	// frequency bins.
	ErrBinMismatch = errors.New("frequency bin count mismatch")

	// ErrEmptyRange indicates a requested time range contains no samples.
	ErrEmptyRange = errors.New("no samples in range")
)

const (
	// DefaultToleranceFactor scales the nominal sample interval when
	// deciding whether the silence between two recordings is a gap.
	DefaultToleranceFactor = 2.0

	// DefaultMinGap is the floor below which inter-file silence is never
	// marked as a gap. Recorders routinely pause a few minutes between
	// consecutive files; only a pause past this floor is a loss of coverage.
	DefaultMinGap = 15 * time.Minute

	// DefaultOverlapFactor scales the nominal sample interval into the
	// overlap allowed between adjacent recordings. A recorder splitting a
	// run mid-second writes the seam sample into both files; only overlap
	// beyond this slack is a conflict.
	DefaultOverlapFactor = 1.0
)

// Options controls gap and overlap detection during assembly.
type Options struct {
	ToleranceFactor float64
	MinGap          time.Duration
	OverlapFactor   float64
}

// DefaultOptions returns the assembly defaults.
func DefaultOptions() Options {
	return Options{
		ToleranceFactor: DefaultToleranceFactor,
		MinGap:          DefaultMinGap,
		OverlapFactor:   DefaultOverlapFactor,
	}
}

// Segment is one recording's span on the timeline. Offset is the global
// index of the segment's first sample.
type Segment struct {
	File   *spectrum.SourceFile
	Offset int
}

// End returns the global index one past the segment's last sample.
func (s *Segment) End() int {
	return s.Offset + len(s.File.Samples)
}

// Gap marks a loss of recording coverage between two adjacent segments.
// AfterIndex is the global index of the last sample before the gap.
type Gap struct {
	AfterIndex int
	Start      time.Time
	End        time.Time
}

// Duration returns the length of the gap.
func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

// Timeline is an immutable ordered view over the samples of one or more
// recordings. Construct with Assemble; all navigation and export reads
// resolve through it.
type Timeline struct {
	segments []*Segment
	gaps     []Gap
	total    int
	interval time.Duration
	freqs    []float64
}

// Assemble orders files by their first sample instant, verifies they do not
// overlap beyond the configured slack and share one bin layout, and records
// a gap wherever the silence between two adjacent files exceeds the
// configured threshold.
func Assemble(files []*spectrum.SourceFile, opts Options) (*Timeline, error) {
	withSamples := make([]*spectrum.SourceFile, 0, len(files))
	for _, f := range files {
		if f != nil && len(f.Samples) > 0 {
			withSamples = append(withSamples, f)
		}
	}
	if len(withSamples) == 0 {
		return nil, ErrEmptyInput
	}

	if opts.ToleranceFactor <= 0 {
		opts.ToleranceFactor = DefaultToleranceFactor
	}
	if opts.MinGap <= 0 {
		opts.MinGap = DefaultMinGap
	}
	if opts.OverlapFactor <= 0 {
		opts.OverlapFactor = DefaultOverlapFactor
	}

	sort.SliceStable(withSamples, func(i, j int) bool {
		return withSamples[i].Start().Before(withSamples[j].Start())
	})

	tl := &Timeline{
		interval: withSamples[0].SampleInterval,
		freqs:    withSamples[0].Freqs,
	}

	for _, f := range withSamples {
		if len(f.Freqs) != len(tl.freqs) {
			return nil, fmt.Errorf("%w: %s has %d bins, %s has %d",
				ErrBinMismatch, f.Path, len(f.Freqs), withSamples[0].Path, len(tl.freqs))
		}

		if n := len(tl.segments); n > 0 {
			prev := tl.segments[n-1].File
			slack := time.Duration(float64(prev.SampleInterval) * opts.OverlapFactor)
			if f.Start().Before(prev.End().Add(-slack)) {
				return nil, fmt.Errorf("%w: %s starts at %s, before %s ends at %s",
					ErrOverlappingFiles, f.Path, f.Start().Format(time.RFC3339),
					prev.Path, prev.End().Format(time.RFC3339))
			}

			silence := f.Start().Sub(prev.End())
			if silence > gapThreshold(prev.SampleInterval, opts) {
				tl.gaps = append(tl.gaps, Gap{
					AfterIndex: tl.total - 1,
					Start:      prev.End(),
					End:        f.Start(),
				})
			}
		}

		tl.segments = append(tl.segments, &Segment{File: f, Offset: tl.total})
		tl.total += len(f.Samples)
	}

	return tl, nil
}

func gapThreshold(interval time.Duration, opts Options) time.Duration {
	t := time.Duration(float64(interval) * opts.ToleranceFactor)
	if t < opts.MinGap {
		t = opts.MinGap
	}
	return t
}

// Len returns the total number of samples on the timeline.
func (t *Timeline) Len() int {
	return t.total
}

// Freqs returns the shared bin center frequencies.
func (t *Timeline) Freqs() []float64 {
	return t.freqs
}

// SampleInterval returns the nominal interval of the earliest recording.
func (t *Timeline) SampleInterval() time.Duration {
	return t.interval
}

// Segments returns the ordered segments of the timeline.
func (t *Timeline) Segments() []*Segment {
	return t.segments
}

// Gaps returns the recorded coverage gaps in timeline order.
func (t *Timeline) Gaps() []Gap {
	return t.gaps
}

// Start returns the instant of the first sample.
func (t *Timeline) Start() time.Time {
	return t.segments[0].File.Start()
}

// End returns the instant of the last sample.
func (t *Timeline) End() time.Time {
	return t.segments[len(t.segments)-1].File.End()
}

// SegmentAt returns the segment containing the global sample index i.
// Resolution is a binary search over segment offsets.
func (t *Timeline) SegmentAt(i int) *Segment {
	n := sort.Search(len(t.segments), func(k int) bool {
		return t.segments[k].End() > i
	})
	if n == len(t.segments) {
		return nil
	}
	return t.segments[n]
}

// Resolve returns the sample at global index i. The index must be within
// [0, Len()).
func (t *Timeline) Resolve(i int) spectrum.Sample {
	seg := t.SegmentAt(i)
	if seg == nil || i < seg.Offset {
		panic(fmt.Sprintf("timeline: index %d out of range [0, %d)", i, t.total))
	}
	return seg.File.Samples[i-seg.Offset]
}

// ZoneAt returns the declared zone of the recording containing index i.
// Used by presentation when the display mode follows the file zone.
func (t *Timeline) ZoneAt(i int) (*time.Location, string) {
	seg := t.SegmentAt(i)
	if seg == nil {
		seg = t.segments[len(t.segments)-1]
	}
	return seg.File.Zone, seg.File.ZoneName
}

// ZoneFor returns the declared zone of the recording containing instant.
// Instants before the first segment resolve to the first recording's zone.
func (t *Timeline) ZoneFor(instant time.Time) (*time.Location, string) {
	i := t.IndexOf(instant)
	if i >= t.total {
		i = t.total - 1
	}
	return t.ZoneAt(i)
}

// GapNear reports the gap immediately following sample index i, if any.
func (t *Timeline) GapNear(i int) (Gap, bool) {
	n := sort.Search(len(t.gaps), func(k int) bool {
		return t.gaps[k].AfterIndex >= i
	})
	if n == len(t.gaps) || t.gaps[n].AfterIndex != i {
		return Gap{}, false
	}
	return t.gaps[n], true
}

// IndexOf returns the global index of the first sample at or after instant.
// Resolution is a binary search over segments, then within the segment.
func (t *Timeline) IndexOf(instant time.Time) int {
	n := sort.Search(len(t.segments), func(k int) bool {
		return !t.segments[k].File.End().Before(instant)
	})
	if n == len(t.segments) {
		return t.total
	}

	seg := t.segments[n]
	samples := seg.File.Samples
	k := sort.Search(len(samples), func(j int) bool {
		return !samples[j].Instant.Before(instant)
	})
	return seg.Offset + k
}

// ResolveRange returns the inclusive global index range [lo, hi] of samples
// with instants in [start, end]. Returns ErrEmptyRange when no sample falls
// inside.
func (t *Timeline) ResolveRange(start, end time.Time) (lo, hi int, err error) {
	if end.Before(start) {
		return 0, 0, fmt.Errorf("%w: %s is after %s",
			ErrEmptyRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	lo = t.IndexOf(start)
	hi = t.IndexOf(end)
	if hi == t.total || t.Resolve(hi).Instant.After(end) {
		hi--
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: %s to %s",
			ErrEmptyRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return lo, hi, nil
}

// CommentRun is a maximal run of adjacent samples sharing one non-empty
// inline comment, in global index coordinates.
type CommentRun struct {
	Text       string
	Start, End int
}

// CommentRuns extracts run-length encoded inline comments from the
// assembled samples. Runs never span recording boundaries.
func (t *Timeline) CommentRuns() []CommentRun {
	var runs []CommentRun
	for _, seg := range t.segments {
		var open *CommentRun
		for i, s := range seg.File.Samples {
			g := seg.Offset + i
			switch {
			case open != nil && s.Comment == open.Text:
				open.End = g
			case s.Comment != "":
				if open != nil {
					runs = append(runs, *open)
				}
				open = &CommentRun{Text: s.Comment, Start: g, End: g}
			default:
				if open != nil {
					runs = append(runs, *open)
					open = nil
				}
			}
		}
		if open != nil {
			runs = append(runs, *open)
		}
	}
	return runs
}
