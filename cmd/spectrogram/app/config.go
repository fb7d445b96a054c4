package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/render"
	"github.com/marine-acoustics/hydroscope/internal/timezone"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	Files      []string
	OutputFile string
	Format     ImageFormat
	Theme      render.ColorTheme
	Mode       timezone.Mode
	UserZone   string
	Start      *time.Time
	End        *time.Time
	FontPath   string
	FontSizePt float64
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validThemes = map[render.ColorTheme]struct{}{
	render.ClassicTheme:   {},
	render.GrayscaleTheme: {},
	render.ThermalTheme:   {},
	render.MarineTheme:    {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Theme:  render.ClassicTheme,
		Mode:   timezone.FileZone,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, mode, start, end string
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(render.ClassicTheme), "Color theme. [classic, grayscale, thermal, marine]")
	flag.StringVar(&mode, "tz", string(timezone.FileZone), "Timezone display mode for the time scale. [file, local, user]")
	flag.StringVar(&c.UserZone, "zone", "", "IANA zone name for the user display mode")
	flag.StringVar(&start, "start", "", "Range start as canonical UTC 'YYYY-MM-DD HH:MM:SS'")
	flag.StringVar(&end, "end", "", "Range end as canonical UTC time")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TTF font for scale labels; the built-in bitmap face is used otherwise")
	flag.Float64Var(&c.FontSizePt, "font-size", 0, "Font size in points, TTF only")
	flag.Parse()

	c.Files = flag.Args()
	imageFormat = strings.ToLower(imageFormat)
	c.Theme = render.ColorTheme(strings.ToLower(theme))

	var err error
	if len(c.Files) == 0 {
		err = errors.New("no recording files given")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validThemes[c.Theme]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.Mode, err = timezone.ParseMode(strings.ToLower(mode)); err == nil {
		if c.Mode == timezone.UserZone && c.UserZone == "" {
			err = errors.New("user display mode requires -zone")
		}
	}
	if err == nil && start != "" {
		if c.Start, err = parseRangeBound(start); err != nil {
			err = fmt.Errorf("parsing -start: %w", err)
		}
	}
	if err == nil && end != "" {
		if c.End, err = parseRangeBound(end); err != nil {
			err = fmt.Errorf("parsing -end: %w", err)
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", strings.TrimSuffix(c.OutputFile, "."+imageFormat), c.Format)
	return c, nil
}

func parseRangeBound(s string) (*time.Time, error) {
	t, err := time.ParseInLocation(time.DateTime, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
