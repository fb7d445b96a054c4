package hydrofile

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
)

const (
	defaultSampleInterval = time.Second

	// Rows longer than the default scanner limit are common with wide FFTs.
	maxLineBytes = 1024 * 1024
)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// Parser reads tab-separated spectrum recordings into SourceFile models.
// All row instants are converted to canonical UTC time using the zone
// declared in the file header. A Parser is safe for reuse across files but
// not for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. Without options it logs to the default slog
// logger.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile opens and parses a recording at path.
func (p *Parser) ParseFile(path string) (file *spectrum.SourceFile, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer closeWithError(f, &err)

	return p.Parse(f, path)
}

// header accumulates raw field values while scanning the file prologue.
type header struct {
	startDate string
	startTime string
	zoneName  string

	client    string
	job       string
	personnel string

	device   spectrum.DeviceInfo
	setup    spectrum.SetupInfo
	exported bool // Export Metadata section with an Export Version line

	freqs         []float64
	dataPointsIdx int
}

// Parse reads a recording from r. The path is used for diagnostics and
// recorded as the source path of the returned file.
func (p *Parser) Parse(r io.Reader, path string) (*spectrum.SourceFile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	hdr, err := p.parseHeader(sc, path)
	if err != nil {
		return nil, err
	}

	zone := time.UTC
	if hdr.zoneName != "" {
		if loc, zerr := time.LoadLocation(hdr.zoneName); zerr != nil {
			p.logger.Warn("invalid timezone in header, falling back to UTC",
				slog.String("file", path),
				slog.String("zone", hdr.zoneName))
			hdr.zoneName = "UTC"
		} else {
			zone = loc
		}
	} else {
		hdr.zoneName = "UTC"
	}

	file := &spectrum.SourceFile{
		Path:             path,
		Client:           hdr.client,
		Job:              hdr.job,
		Personnel:        hdr.personnel,
		Device:           hdr.device,
		Setup:            hdr.setup,
		Zone:             zone,
		ZoneName:         hdr.zoneName,
		AlreadyCanonical: hdr.exported,
		Freqs:            hdr.freqs,
	}

	if err := p.parseRows(sc, hdr, zone, file); err != nil {
		return nil, err
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading recording %s: %w", path, err)
	}
	if len(file.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	file.SampleInterval = measureInterval(file.Samples)

	if err := p.anchorDeclaredStart(hdr, zone, file); err != nil {
		return nil, err
	}

	p.logger.Info("parsed recording",
		slog.String("file", path),
		slog.Int("samples", len(file.Samples)),
		slog.Int("bins", len(file.Freqs)),
		slog.String("zone", file.ZoneName),
		slog.Bool("exported", file.AlreadyCanonical))

	return file, nil
}

// parseHeader scans until the column header line and returns the collected
// fields. The column header is the line starting with the Time column name
// and carrying the Data Points marker; frequencies follow that marker.
func (p *Parser) parseHeader(sc *bufio.Scanner, path string) (*header, error) {
	hdr := header{dataPointsIdx: -1}
	inExportMeta := false

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, columnTime+"\t") && strings.Contains(line, columnDataPoints) {
			tokens := strings.Split(line, "\t")
			for i, tok := range tokens {
				if tok == columnDataPoints {
					hdr.dataPointsIdx = i
					break
				}
			}
			for _, tok := range tokens[hdr.dataPointsIdx+1:] {
				freq, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
				if err != nil {
					continue
				}
				hdr.freqs = append(hdr.freqs, freq)
			}
			if len(hdr.freqs) == 0 {
				return nil, fmt.Errorf("%w: no frequency bins in column header of %s", ErrMalformedHeader, path)
			}
			return &hdr, nil
		}

		if strings.HasSuffix(line, ":") {
			inExportMeta = line == sectionExportMetadata
			continue
		}

		key, value, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		if inExportMeta {
			if key == fieldExportVersion {
				hdr.exported = true
			}
			continue
		}

		switch key {
		case fieldStartDate:
			hdr.startDate = value
		case fieldStartTime:
			hdr.startTime = value
		case fieldTimeZone:
			hdr.zoneName = value
		case fieldClient:
			hdr.client = value
		case fieldJob:
			hdr.job = value
		case fieldPersonnel:
			hdr.personnel = value
		case fieldDevice:
			hdr.device.Model = value
		case fieldSerial:
			hdr.device.Serial = value
		case fieldFirmware:
			hdr.device.Firmware = value
		case fieldSampleRate:
			hdr.setup.SampleRate, _ = strconv.Atoi(value)
		case fieldFFTSize:
			hdr.setup.FFTSize, _ = strconv.Atoi(value)
		case fieldBinWidth:
			hdr.setup.BinWidth, _ = strconv.ParseFloat(value, 64)
		case fieldDBRefV:
			hdr.setup.DBRefRe1V, _ = strconv.ParseFloat(value, 64)
		case fieldDBRefUPa:
			hdr.setup.DBRefRe1uPa, _ = strconv.ParseFloat(value, 64)
		case fieldWindow:
			hdr.setup.Window = value
		case fieldOverlap:
			hdr.setup.Overlap, _ = strconv.ParseFloat(value, 64)
		case fieldPowerCalc:
			hdr.setup.PowerCalc = value
		case fieldAccum:
			hdr.setup.Accumulations, _ = strconv.Atoi(value)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	return nil, fmt.Errorf("%w: no column header in %s", ErrMalformedHeader, path)
}

// parseRows reads data rows into file.Samples. Rows carry time-of-day only;
// the date comes from the Start Date header field, advanced by one day
// whenever the clock runs backwards across a row boundary.
func (p *Parser) parseRows(sc *bufio.Scanner, hdr *header, zone *time.Location, file *spectrum.SourceFile) error {
	if hdr.startDate == "" {
		return fmt.Errorf("%w: missing %s in %s", ErrMalformedHeader, fieldStartDate, file.Path)
	}
	date, err := time.ParseInLocation(dateLayout, hdr.startDate, zone)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q in %s", ErrMalformedHeader, fieldStartDate, hdr.startDate, file.Path)
	}

	var prevClock time.Duration = -1
	row := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < minRowFields {
			continue
		}
		row++

		clock, err := time.Parse(clockLayout, parts[0])
		if err != nil {
			return fmt.Errorf("%w: invalid time %q at row %d of %s", ErrMalformedHeader, parts[0], row, file.Path)
		}
		tod := time.Duration(clock.Hour())*time.Hour +
			time.Duration(clock.Minute())*time.Minute +
			time.Duration(clock.Second())*time.Second

		if tod < prevClock {
			date = date.AddDate(0, 0, 1)
		}
		prevClock = tod

		amps := parts[hdr.dataPointsIdx+1:]
		if len(amps) != len(hdr.freqs) {
			return fmt.Errorf("%w: row %d of %s has %d bins, header declares %d",
				ErrUnsupportedColumnCount, row, file.Path, len(amps), len(hdr.freqs))
		}

		bins := make([]float64, len(amps))
		for i, tok := range amps {
			if bins[i], err = strconv.ParseFloat(strings.TrimSpace(tok), 64); err != nil {
				return fmt.Errorf("%w: bad amplitude %q at row %d of %s",
					ErrUnsupportedColumnCount, tok, row, file.Path)
			}
		}

		wall := date.Add(tod)
		file.Samples = append(file.Samples, spectrum.Sample{
			Instant: spectrum.ToCanonical(wall, zone),
			Bins:    bins,
			Comment: strings.TrimSpace(parts[1]),
		})
	}
	return nil
}

// anchorDeclaredStart reconciles the header start fields with the first data
// row. Exporter-written files must agree exactly; raw recorder files with a
// disagreeing header are re-anchored to row data, which is the defect this
// engine exists to repair.
func (p *Parser) anchorDeclaredStart(hdr *header, zone *time.Location, file *spectrum.SourceFile) error {
	first := file.Samples[0].Instant
	if hdr.startTime == "" {
		file.DeclaredStart = first
		return nil
	}

	wall, err := time.Parse(clockLayout, hdr.startTime)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q in %s", ErrMalformedHeader, fieldStartTime, hdr.startTime, file.Path)
	}
	date, _ := time.ParseInLocation(dateLayout, hdr.startDate, zone)
	declared := spectrum.ToCanonical(date.Add(
		time.Duration(wall.Hour())*time.Hour+
			time.Duration(wall.Minute())*time.Minute+
			time.Duration(wall.Second())*time.Second), zone)

	if declared.Equal(first) {
		file.DeclaredStart = declared
		return nil
	}

	if file.AlreadyCanonical {
		return fmt.Errorf("%w: exported file %s declares start %s but first row is %s",
			ErrMalformedHeader, file.Path,
			declared.Format(time.RFC3339), first.Format(time.RFC3339))
	}

	p.logger.Warn("header start disagrees with first row, trusting row data",
		slog.String("file", file.Path),
		slog.String("declared", declared.Format(time.RFC3339)),
		slog.String("firstRow", first.Format(time.RFC3339)))
	file.DeclaredStart = first
	return nil
}

// measureInterval derives the nominal sample interval from the first strictly
// positive delta between consecutive rows.
func measureInterval(samples []spectrum.Sample) time.Duration {
	for i := 1; i < len(samples); i++ {
		if d := samples[i].Instant.Sub(samples[i-1].Instant); d > 0 {
			return d
		}
	}
	return defaultSampleInterval
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
