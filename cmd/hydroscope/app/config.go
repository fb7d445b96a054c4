package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/marine-acoustics/hydroscope/internal/export"
	"github.com/marine-acoustics/hydroscope/internal/logging"
	"github.com/marine-acoustics/hydroscope/internal/timezone"
)

// rangeLayout is the canonical UTC layout accepted by -start and -end.
const rangeLayout = time.DateTime

// EngineConfig is the optional YAML configuration tuning engine behavior.
type EngineConfig struct {
	Logging  logging.Config `yaml:"logging"`
	Assembly AssemblyConfig `yaml:"assembly"`
	Nav      NavConfig      `yaml:"nav"`
}

// AssemblyConfig tunes gap and overlap detection during timeline assembly.
type AssemblyConfig struct {
	ToleranceFactor float64 `yaml:"toleranceFactor"`
	MinGapMinutes   int     `yaml:"minGapMinutes"`
	OverlapFactor   float64 `yaml:"overlapFactor"`
}

// NavConfig tunes the navigation controller.
type NavConfig struct {
	ZoomFactor  float64 `yaml:"zoomFactor"`
	PanFraction float64 `yaml:"panFraction"`
}

// Config is the resolved command-line configuration.
type Config struct {
	Files       []string
	ProjectPath string

	Mode     timezone.Mode
	UserZone string

	// ModeSet records whether -tz was given explicitly; a restored project
	// file supplies the mode otherwise.
	ModeSet bool

	ExportDir string
	Split     export.SplitPolicy
	Prefix    string
	MaxBytes  uint64
	Start     *time.Time
	End       *time.Time

	Engine EngineConfig
}

// NewConfigFromCLI parses flags and the optional engine configuration file.
// Positional arguments are recording files to load.
func NewConfigFromCLI() (*Config, error) {
	c := Config{
		Mode:  timezone.FileZone,
		Split: export.Single,
	}

	var (
		configPath string
		mode       string
		split      string
		maxSize    string
		start, end string
	)
	flag.StringVar(&configPath, "c", "", "Path to the engine configuration file (YAML)")
	flag.StringVar(&c.ProjectPath, "project", "", "Path to the project file; state is restored from and saved to it")
	flag.StringVar(&mode, "tz", string(timezone.FileZone), "Timezone display mode. [file, local, user]")
	flag.StringVar(&c.UserZone, "zone", "", "IANA zone name for the user display mode")
	flag.StringVar(&c.ExportDir, "export", "", "Directory to export the selected range into; empty disables export")
	flag.StringVar(&split, "split", string(export.Single), "Export split policy. [single, by_hour, by_day, by_size, by_original_boundaries]")
	flag.StringVar(&c.Prefix, "prefix", "", "Export artifact file name prefix")
	flag.StringVar(&maxSize, "max-size", "", "Per-artifact size budget for by_size exports, e.g. 25MB")
	flag.StringVar(&start, "start", "", "Range start as canonical UTC 'YYYY-MM-DD HH:MM:SS'; defaults to the timeline start")
	flag.StringVar(&end, "end", "", "Range end as canonical UTC time; defaults to the timeline end")
	flag.Parse()

	c.Files = flag.Args()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "tz" {
			c.ModeSet = true
		}
	})

	var err error
	if len(c.Files) == 0 && c.ProjectPath == "" {
		err = errors.New("no recording files or project file given")
	} else if c.Mode, err = timezone.ParseMode(strings.ToLower(mode)); err == nil {
		if c.Mode == timezone.UserZone && c.UserZone == "" {
			err = errors.New("user display mode requires -zone")
		}
	}
	if err == nil {
		c.Split, err = export.ParseSplitPolicy(strings.ToLower(split))
	}
	if err == nil && maxSize != "" {
		if c.MaxBytes, err = humanize.ParseBytes(maxSize); err != nil {
			err = fmt.Errorf("parsing -max-size: %w", err)
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

	if configPath != "" {
		if err = loadEngineConfig(configPath, &c.Engine); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func parseRangeBound(s string) (*time.Time, error) {
	t, err := time.ParseInLocation(rangeLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func loadEngineConfig(path string, into *EngineConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(into); err != nil {
		return fmt.Errorf("parsing configuration file: %w", err)
	}
	return nil
}
