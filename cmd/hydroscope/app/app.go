package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marine-acoustics/hydroscope/internal/annotation"
	"github.com/marine-acoustics/hydroscope/internal/export"
	"github.com/marine-acoustics/hydroscope/internal/nav"
	"github.com/marine-acoustics/hydroscope/internal/project"
	"github.com/marine-acoustics/hydroscope/internal/session"
	"github.com/marine-acoustics/hydroscope/internal/timeline"
)

// Run loads the recordings, optionally restores project state, prints the
// assembled timeline summary and performs the requested export. When a
// project path is configured the resulting state is saved back on exit.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var store *project.Store
	var snap *project.Snapshot

	if config.ProjectPath != "" {
		store = project.NewStore(config.ProjectPath)
		defer store.Close()

		var err error
		if snap, err = store.Load(ctx); err != nil && !errors.Is(err, project.ErrNoProject) {
			// A fresh project file is fine; anything else is not.
			logger.Warn("project state not restored",
				slog.String("path", config.ProjectPath),
				slog.Any("error", err))
		}
	}

	files := config.Files
	if len(files) == 0 && snap != nil {
		files = snap.Sources
	}
	if len(files) == 0 {
		return fmt.Errorf("no recording files to load")
	}

	s := session.New(
		session.WithLogger(logger),
		session.WithAssemblyOptions(assemblyOptions(config.Engine.Assembly)),
		session.WithNavOptions(navOptions(config.Engine.Nav)...),
	)

	if err := s.LoadFiles(ctx, files); err != nil {
		return err
	}

	if err := applyDisplayState(s, config, snap); err != nil {
		return err
	}
	if snap != nil {
		restoreProjectState(s, snap, logger)
	}

	tl := s.Timeline()
	logger.Info("timeline ready",
		slog.String("samples", humanize.Comma(int64(tl.Len()))),
		slog.String("span", tl.End().Sub(tl.Start()).String()),
		slog.Int("gaps", len(tl.Gaps())),
		slog.Int("annotations", s.Annotations().Len()))

	if config.ExportDir != "" {
		if err := runExport(ctx, s, config, logger); err != nil {
			return err
		}
	}

	if store != nil {
		if err := saveProject(ctx, store, s, config, files); err != nil {
			return err
		}
		logger.Info("project saved", slog.String("path", config.ProjectPath))
	}
	return nil
}

func assemblyOptions(cfg AssemblyConfig) timeline.Options {
	opts := timeline.DefaultOptions()
	if cfg.ToleranceFactor > 0 {
		opts.ToleranceFactor = cfg.ToleranceFactor
	}
	if cfg.MinGapMinutes > 0 {
		opts.MinGap = time.Duration(cfg.MinGapMinutes) * time.Minute
	}
	if cfg.OverlapFactor > 0 {
		opts.OverlapFactor = cfg.OverlapFactor
	}
	return opts
}

func navOptions(cfg NavConfig) []nav.Option {
	var opts []nav.Option
	if cfg.ZoomFactor > 0 {
		opts = append(opts, nav.WithZoomFactor(cfg.ZoomFactor))
	}
	if cfg.PanFraction > 0 {
		opts = append(opts, nav.WithPanFraction(cfg.PanFraction))
	}
	return opts
}

// applyDisplayState resolves the display mode and user zone: explicit flags
// win, then the restored project, then the file-zone default.
func applyDisplayState(s *session.Session, config *Config, snap *project.Snapshot) error {
	mode := config.Mode
	zone := config.UserZone
	if !config.ModeSet && snap != nil {
		mode = snap.Mode
		if zone == "" {
			zone = snap.UserZone
		}
	}

	if zone != "" {
		if err := s.SetUserZone(zone); err != nil {
			return err
		}
	}
	return s.SetDisplayMode(mode)
}

func restoreProjectState(s *session.Session, snap *project.Snapshot, logger *slog.Logger) {
	for _, a := range snap.Annotations {
		if _, err := s.Annotations().Add(a); err != nil {
			logger.Warn("skipping saved annotation",
				slog.String("id", a.ID),
				slog.Any("error", err))
		}
	}

	tl := s.Timeline()
	if snap.WindowStart >= 0 && snap.WindowStart < snap.WindowEnd && snap.WindowEnd <= tl.Len() {
		start := tl.Resolve(snap.WindowStart).Instant
		end := tl.Resolve(snap.WindowEnd - 1).Instant
		if err := s.Controller().SetRange(start, end); err != nil {
			logger.Warn("saved view window not restored", slog.Any("error", err))
		}
	}
}

func runExport(ctx context.Context, s *session.Session, config *Config, logger *slog.Logger) error {
	tl := s.Timeline()

	start, end := tl.Start(), tl.End()
	if config.Start != nil {
		start = *config.Start
	}
	if config.End != nil {
		end = *config.End
	}

	zone, zoneName, err := s.Presenter().Zone(start, s.DisplayMode())
	if err != nil {
		return fmt.Errorf("resolving export zone: %w", err)
	}

	res, err := s.Export(ctx, export.Job{
		Start:    start,
		End:      end,
		Zone:     zone,
		ZoneName: zoneName,
		Split:    config.Split,
		Dir:      config.ExportDir,
		Prefix:   config.Prefix,
		MaxBytes: config.MaxBytes,
	})
	if res != nil {
		for _, a := range res.Artifacts {
			logger.Info("artifact written",
				slog.String("path", a.Path),
				slog.Int("samples", a.Samples),
				slog.String("size", humanize.IBytes(uint64(a.Bytes))))
		}
	}
	return err
}

func saveProject(ctx context.Context, store *project.Store, s *session.Session, config *Config, files []string) error {
	var annotations []annotation.Annotation
	for a := range s.Annotations().ListOrderedByStart() {
		annotations = append(annotations, a)
	}

	start, end := s.Controller().Window()
	name := strings.TrimSuffix(filepath.Base(config.ProjectPath), filepath.Ext(config.ProjectPath))

	return store.Save(ctx, &project.Snapshot{
		Name:        name,
		Mode:        s.DisplayMode(),
		UserZone:    s.Presenter().UserZoneName(),
		WindowStart: start,
		WindowEnd:   end,
		Sources:     files,
		Annotations: annotations,
	})
}
