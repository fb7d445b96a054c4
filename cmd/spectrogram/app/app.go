package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/render"
	"github.com/marine-acoustics/hydroscope/internal/session"
)

// Run loads the recordings, selects the requested range and renders it to
// an image file.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	s := session.New(session.WithLogger(logger))
	if err := s.LoadFiles(ctx, config.Files); err != nil {
		return err
	}

	if config.UserZone != "" {
		if err := s.SetUserZone(config.UserZone); err != nil {
			return err
		}
	}
	if err := s.SetDisplayMode(config.Mode); err != nil {
		return err
	}

	ctrl := s.Controller()
	if config.Start != nil || config.End != nil {
		tl := s.Timeline()
		start, end := tl.Start(), tl.End()
		if config.Start != nil {
			start = *config.Start
		}
		if config.End != nil {
			end = *config.End
		}
		if err := ctrl.SetRange(start, end); err != nil {
			return fmt.Errorf("selecting range: %w", err)
		}
	}

	data := render.Collect(ctrl.VisibleSamples(), s.Timeline().Freqs())

	visibleStart, _ := ctrl.VisibleRange()
	loc, zoneName, err := s.Presenter().Zone(visibleStart, s.DisplayMode())
	if err != nil {
		return fmt.Errorf("resolving display zone: %w", err)
	}

	logger.Info("rendering spectrogram",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", data.Width()),
			slog.Int("height", data.Height()),
		),
		slog.String("zone", zoneName),
		slog.String("start", data.TimestampStart().In(loc).Format(time.DateTime)),
		slog.String("end", data.TimestampEnd().In(loc).Format(time.DateTime)))

	renderer := render.NewRenderer(render.Config{
		Location:   loc,
		ZoneName:   zoneName,
		ColorTheme: config.Theme,
		FontPath:   config.FontPath,
		FontSizePt: config.FontSizePt,
	})

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering spectrogram: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
