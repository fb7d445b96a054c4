// Package export materializes timeline ranges back into recording files.
// Artifacts are written through the shared wire writer so their headers are
// canonical by construction; each artifact is written to a temporary file
// and renamed into place, so a failed or cancelled job never leaves a half
// written file posing as a finished one.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/marine-acoustics/hydroscope/internal/annotation"
	"github.com/marine-acoustics/hydroscope/internal/hydrofile"
	"github.com/marine-acoustics/hydroscope/internal/spectrum"
	"github.com/marine-acoustics/hydroscope/internal/timeline"
)

// SplitPolicy selects how an export range is partitioned into artifacts.
type SplitPolicy string

const (
	Single               SplitPolicy = "single"
	ByHour               SplitPolicy = "by_hour"
	ByDay                SplitPolicy = "by_day"
	BySize               SplitPolicy = "by_size"
	ByOriginalBoundaries SplitPolicy = "by_original_boundaries"
)

const defaultPrefix = "hydroscope"

var (
	// ErrUnsupportedSplit indicates an unknown split policy.
	ErrUnsupportedSplit = errors.New("unsupported split policy")

	// ErrNoSizeBudget indicates a by-size job without a byte budget.
	ErrNoSizeBudget = errors.New("by-size export requires a byte budget")
)

// ParseSplitPolicy validates a policy string from flags or configuration.
func ParseSplitPolicy(s string) (SplitPolicy, error) {
	switch SplitPolicy(s) {
	case Single, ByHour, ByDay, BySize, ByOriginalBoundaries:
		return SplitPolicy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSplit, s)
}

// Job describes one requested materialization of a timeline range.
type Job struct {
	ID    string
	Start time.Time // canonical
	End   time.Time // canonical

	// Presentation zone for artifact headers, row clocks and file names.
	Zone     *time.Location
	ZoneName string

	Split    SplitPolicy
	Dir      string
	Prefix   string
	MaxBytes uint64 // budget per artifact for BySize
}

// Artifact describes one written export file.
type Artifact struct {
	Path    string
	Samples int
	Bytes   int64
	Start   time.Time
	End     time.Time
}

// Result reports a completed or partially completed job. Artifacts written
// before a failure remain on disk and are listed here.
type Result struct {
	JobID          string
	Artifacts      []Artifact
	AnnotationPath string
}

// Failure identifies the partition on which a job stopped.
type Failure struct {
	Partition int
	Path      string
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("export partition %d (%s): %v", f.Partition, f.Path, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Engine writes export jobs against a timeline and its annotation store.
type Engine struct {
	tl          *timeline.Timeline
	annotations *annotation.Store
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an export engine over a timeline. The annotation store
// may be nil when no companion artifact is wanted.
func NewEngine(tl *timeline.Timeline, annotations *annotation.Store, opts ...Option) *Engine {
	e := &Engine{tl: tl, annotations: annotations, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a job. On failure the returned Result still lists every
// artifact completed before the failing partition, and the error identifies
// the partition that failed.
func (e *Engine) Run(ctx context.Context, job Job) (*Result, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Zone == nil {
		job.Zone = time.UTC
		job.ZoneName = "UTC"
	}
	if job.Prefix == "" {
		job.Prefix = defaultPrefix
	}
	if _, err := ParseSplitPolicy(string(job.Split)); err != nil {
		return nil, err
	}
	if job.Split == BySize && job.MaxBytes == 0 {
		return nil, ErrNoSizeBudget
	}

	lo, hi, err := e.tl.ResolveRange(job.Start, job.End)
	if err != nil {
		return nil, fmt.Errorf("resolving export range: %w", err)
	}

	parts, err := e.partition(job, lo, hi)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting export",
		slog.Group("job",
			slog.String("id", job.ID),
			slog.String("split", string(job.Split)),
			slog.String("zone", job.ZoneName),
			slog.String("samples", humanize.Comma(int64(hi-lo+1))),
			slog.Int("partitions", len(parts)),
		))

	result := &Result{JobID: job.ID}
	names := make(map[string]int)
	var total int64

	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return result, &Failure{Partition: i, Path: "", Err: err}
		}

		path := filepath.Join(job.Dir, e.artifactName(job, part, names))
		art, err := e.writePartition(job, part, path)
		if err != nil {
			return result, &Failure{Partition: i, Path: path, Err: err}
		}

		result.Artifacts = append(result.Artifacts, art)
		total += art.Bytes

		e.logger.Debug("wrote artifact",
			slog.String("path", art.Path),
			slog.Int("samples", art.Samples),
			slog.String("size", humanize.Bytes(uint64(art.Bytes))))
	}

	if e.annotations != nil {
		startInstant := e.tl.Resolve(lo).Instant
		endInstant := e.tl.Resolve(hi).Instant
		overlapping := e.annotations.Overlapping(startInstant, endInstant)

		// One companion artifact per job, present even when no annotation
		// intersects the range.
		path := filepath.Join(job.Dir, job.Prefix+annotation.ArtifactSuffix)
		if err := annotation.WriteArtifact(path, job.Prefix, job.Zone, overlapping); err != nil {
			return result, &Failure{Partition: len(parts), Path: path, Err: err}
		}
		result.AnnotationPath = path
	}

	e.logger.Info("export finished",
		slog.String("job", job.ID),
		slog.Int("artifacts", len(result.Artifacts)),
		slog.String("total", humanize.Bytes(uint64(total))))

	return result, nil
}

// span is an inclusive global index range.
type span struct {
	lo, hi int
}

func (e *Engine) partition(job Job, lo, hi int) ([]span, error) {
	switch job.Split {
	case Single:
		return []span{{lo, hi}}, nil
	case ByHour:
		return e.partitionByClock(job.Zone, lo, hi, nextHour), nil
	case ByDay:
		return e.partitionByClock(job.Zone, lo, hi, nextDay), nil
	case BySize:
		return e.partitionBySize(job.MaxBytes, lo, hi), nil
	case ByOriginalBoundaries:
		return e.partitionBySegments(lo, hi), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSplit, job.Split)
}

func nextHour(wall time.Time) time.Time {
	y, m, d := wall.Date()
	return time.Date(y, m, d, wall.Hour(), 0, 0, 0, wall.Location()).Add(time.Hour)
}

func nextDay(wall time.Time) time.Time {
	y, m, d := wall.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, wall.Location()).AddDate(0, 0, 1)
}

// partitionByClock cuts the range at wall-clock boundaries computed in the
// job's presentation zone.
func (e *Engine) partitionByClock(zone *time.Location, lo, hi int, next func(time.Time) time.Time) []span {
	var parts []span
	cur := lo
	for cur <= hi {
		wall := e.tl.Resolve(cur).Instant.In(zone)
		boundary := next(wall)

		cut := e.tl.IndexOf(boundary.UTC())
		if cut > hi+1 {
			cut = hi + 1
		}
		if cut <= cur {
			cut = cur + 1
		}
		parts = append(parts, span{cur, cut - 1})
		cur = cut
	}
	return parts
}

func (e *Engine) partitionBySize(maxBytes uint64, lo, hi int) []span {
	rows := hydrofile.RowsForBudget(maxBytes, len(e.tl.Freqs()))
	var parts []span
	for cur := lo; cur <= hi; cur += rows {
		end := cur + rows - 1
		if end > hi {
			end = hi
		}
		parts = append(parts, span{cur, end})
	}
	return parts
}

func (e *Engine) partitionBySegments(lo, hi int) []span {
	var parts []span
	cur := lo
	for cur <= hi {
		seg := e.tl.SegmentAt(cur)
		end := seg.End() - 1
		if end > hi {
			end = hi
		}
		parts = append(parts, span{cur, end})
		cur = end + 1
	}
	return parts
}

// artifactName builds the file name from the partition's wall-clock range in
// the presentation zone, deduplicated within the job.
func (e *Engine) artifactName(job Job, part span, seen map[string]int) string {
	start := e.tl.Resolve(part.lo).Instant.In(job.Zone)
	end := e.tl.Resolve(part.hi).Instant.In(job.Zone)

	zone := strings.NewReplacer("/", "-", " ", "_").Replace(job.ZoneName)
	name := fmt.Sprintf("%s_%s_%s-%s", job.Prefix, zone,
		start.Format("20060102_1504"), end.Format("20060102_1504"))

	seen[name]++
	if n := seen[name]; n > 1 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	return name + ".txt"
}

// writePartition serializes one partition to a temporary file and renames it
// into place, so a partial write never appears as a finished artifact.
func (e *Engine) writePartition(job Job, part span, path string) (Artifact, error) {
	doc := e.document(job, part)

	tmp, err := os.CreateTemp(job.Dir, ".hydroscope-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("creating temp file: %w", err)
	}

	if err := hydrofile.Write(tmp, doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Artifact{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("renaming artifact: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}

	return Artifact{
		Path:    path,
		Samples: len(doc.Samples),
		Bytes:   info.Size(),
		Start:   doc.Samples[0].Instant,
		End:     doc.Samples[len(doc.Samples)-1].Instant,
	}, nil
}

// document assembles the wire document for one partition: the samples plus
// provenance from the recordings the partition intersects.
func (e *Engine) document(job Job, part span) *hydrofile.Document {
	samples := make([]spectrum.Sample, 0, part.hi-part.lo+1)
	var sources []string
	for i := part.lo; i <= part.hi; {
		seg := e.tl.SegmentAt(i)
		sources = append(sources, seg.File.Path)

		end := seg.End() - 1
		if end > part.hi {
			end = part.hi
		}
		local := seg.File.Samples[i-seg.Offset : end-seg.Offset+1]
		samples = append(samples, local...)
		i = end + 1
	}

	first := e.tl.SegmentAt(part.lo).File
	return &hydrofile.Document{
		Client:      first.Client,
		Job:         first.Job,
		Personnel:   first.Personnel,
		Device:      first.Device,
		Setup:       first.Setup,
		SourceFiles: sources,
		Zone:        job.Zone,
		ZoneName:    job.ZoneName,
		Freqs:       e.tl.Freqs(),
		Samples:     samples,
	}
}
