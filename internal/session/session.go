// Package session ties the engine together: it loads recording files,
// assembles them into a timeline, and exposes navigation, time display,
// annotations and export over the assembled state. All methods are safe for
// concurrent use.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marine-acoustics/hydroscope/internal/annotation"
	"github.com/marine-acoustics/hydroscope/internal/export"
	"github.com/marine-acoustics/hydroscope/internal/hydrofile"
	"github.com/marine-acoustics/hydroscope/internal/nav"
	"github.com/marine-acoustics/hydroscope/internal/spectrum"
	"github.com/marine-acoustics/hydroscope/internal/timeline"
	"github.com/marine-acoustics/hydroscope/internal/timezone"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger to use.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithAssemblyOptions overrides the gap-detection defaults.
func WithAssemblyOptions(opts timeline.Options) Option {
	return func(s *Session) {
		s.asmOpts = opts
	}
}

// WithNavOptions passes options through to the navigation controller.
func WithNavOptions(opts ...nav.Option) Option {
	return func(s *Session) {
		s.navOpts = opts
	}
}

// Session owns the assembled timeline and the stateful views over it.
type Session struct {
	parser  *hydrofile.Parser
	logger  *slog.Logger
	asmOpts timeline.Options
	navOpts []nav.Option

	mu          sync.RWMutex
	tl          *timeline.Timeline
	ctrl        *nav.Controller
	presenter   *timezone.Presenter
	annotations *annotation.Store
	mode        timezone.Mode
}

// New creates an empty session. LoadFiles must succeed before the
// navigation and display methods are usable.
func New(opts ...Option) *Session {
	s := Session{
		logger:      slog.Default(),
		asmOpts:     timeline.DefaultOptions(),
		annotations: annotation.NewStore(),
		mode:        timezone.FileZone,
	}

	for _, opt := range opts {
		opt(&s)
	}

	s.parser = hydrofile.NewParser(hydrofile.WithLogger(s.logger))
	return &s
}

type parseResult struct {
	path string
	file *spectrum.SourceFile
	err  error
}

// LoadFiles parses the given recording files concurrently, assembles them
// into a timeline and swaps it in. Files that fail to parse are logged and
// skipped; LoadFiles fails only when no file parses or assembly fails.
// Recorder comments found in the files are seeded into the annotation store.
func (s *Session) LoadFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("loading files: no paths given")
	}

	results := make(chan parseResult, len(paths))

	var wg sync.WaitGroup
	for _, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				results <- parseResult{path: path, err: err}
				return
			}

			file, err := s.parser.ParseFile(path)
			results <- parseResult{path: path, file: file, err: err}
		}()
	}

	wg.Wait()
	close(results)

	files := make([]*spectrum.SourceFile, 0, len(paths))
	for res := range results {
		if res.err != nil {
			s.logger.Warn("skipping file",
				slog.String("path", res.path),
				slog.Any("error", res.err))
			continue
		}
		files = append(files, res.file)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("loading files: none of %d files parsed", len(paths))
	}

	tl, err := timeline.Assemble(files, s.asmOpts)
	if err != nil {
		return fmt.Errorf("assembling timeline: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tl = tl
	if s.ctrl == nil {
		s.ctrl = nav.NewController(tl, s.navOpts...)
	} else {
		s.ctrl.Rebase(tl)
	}
	s.presenter = timezone.NewPresenter(tl)
	s.seedRecorderComments(tl)

	s.logger.Info("timeline assembled",
		slog.Int("files", len(files)),
		slog.Int("samples", tl.Len()),
		slog.Int("gaps", len(tl.Gaps())),
		slog.Time("start", tl.Start()),
		slog.Time("end", tl.End()))

	return nil
}

// seedRecorderComments turns runs of identical recorder comments into
// annotations, skipping runs whose comment already exists as a title.
func (s *Session) seedRecorderComments(tl *timeline.Timeline) {
	existing := make(map[string]bool)
	for a := range s.annotations.ListOrderedByStart() {
		existing[a.Title] = true
	}

	for _, run := range tl.CommentRuns() {
		title := run.Text
		if r := []rune(title); len(r) > annotation.MaxTitleLen {
			title = string(r[:annotation.MaxTitleLen])
		}
		if existing[title] {
			continue
		}

		if _, err := s.annotations.Add(annotation.Annotation{
			Title: title,
			Notes: run.Text,
			Start: tl.Resolve(run.Start).Instant,
			End:   tl.Resolve(run.End).Instant.Add(tl.SampleInterval()),
		}); err != nil {
			s.logger.Warn("skipping recorder comment",
				slog.String("comment", run.Text),
				slog.Any("error", err))
			continue
		}
		existing[title] = true
	}
}

// Timeline returns the assembled timeline, or nil before LoadFiles.
func (s *Session) Timeline() *timeline.Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tl
}

// Controller returns the navigation controller, or nil before LoadFiles.
func (s *Session) Controller() *nav.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctrl
}

// Annotations returns the annotation store.
func (s *Session) Annotations() *annotation.Store {
	return s.annotations
}

// SetDisplayMode switches how instants are rendered. For UserZone mode the
// zone must have been set with SetUserZone first.
func (s *Session) SetDisplayMode(mode timezone.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == timezone.UserZone && s.presenter != nil && s.presenter.UserZoneName() == "" {
		return timezone.ErrNoUserZone
	}
	s.mode = mode
	return nil
}

// DisplayMode returns the active display mode.
func (s *Session) DisplayMode() timezone.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetUserZone sets the zone used by UserZone mode.
func (s *Session) SetUserZone(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.presenter == nil {
		return fmt.Errorf("setting user zone: no timeline loaded")
	}
	return s.presenter.SetUserZone(name)
}

// DisplayIndex renders the instant of sample i in the active display mode.
// It returns the formatted time and the zone label.
func (s *Session) DisplayIndex(i int) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tl == nil || s.presenter == nil {
		return "", "", fmt.Errorf("displaying sample: no timeline loaded")
	}
	return s.presenter.Present(s.tl.Resolve(i).Instant, s.mode)
}

// Presenter returns the timezone presenter, or nil before LoadFiles.
func (s *Session) Presenter() *timezone.Presenter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presenter
}

// Export runs an export job over the current timeline and annotations.
func (s *Session) Export(ctx context.Context, job export.Job) (*export.Result, error) {
	s.mu.RLock()
	tl := s.tl
	s.mu.RUnlock()

	if tl == nil {
		return nil, fmt.Errorf("exporting: no timeline loaded")
	}

	engine := export.NewEngine(tl, s.annotations, export.WithLogger(s.logger))
	return engine.Run(ctx, job)
}

// ExportResult pairs an export outcome with its error for async delivery.
type ExportResult struct {
	Result *export.Result
	Err    error
}

// ExportAsync runs Export on its own goroutine and delivers the outcome on
// the returned channel. The channel is buffered; the result is never lost
// if the caller is slow to receive.
func (s *Session) ExportAsync(ctx context.Context, job export.Job) <-chan ExportResult {
	out := make(chan ExportResult, 1)
	go func() {
		defer close(out)
		res, err := s.Export(ctx, job)
		out <- ExportResult{Result: res, Err: err}
	}()
	return out
}
