package hydrofile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
)

func recording(zone, startDate, startTime string, rows []string) string {
	var sb strings.Builder
	sb.WriteString("File Details:\n")
	sb.WriteString("File Type\tSpectrum\n")
	sb.WriteString("File Version\t5\n")
	sb.WriteString("Start Date\t" + startDate + "\n")
	if startTime != "" {
		sb.WriteString("Start Time\t" + startTime + "\n")
	}
	if zone != "" {
		sb.WriteString("Time Zone\t" + zone + "\n")
	}
	sb.WriteString("Author\ticListen HF\n")
	sb.WriteString("Client\tAcme Marine\n")
	sb.WriteString("Job\tSite Survey\n")
	sb.WriteString("\nDevice Details:\n")
	sb.WriteString("Device\ticListen HF\n")
	sb.WriteString("S/N\t1234\n")
	sb.WriteString("Firmware\tv2.1\n")
	sb.WriteString("\nSetup:\n")
	sb.WriteString("Sample Rate [S/s]\t64000\n")
	sb.WriteString("FFT Size\t1024\n")
	sb.WriteString("Bin Width [Hz]\t62.5\n")
	sb.WriteString("\nData:\n\n")
	sb.WriteString("Time\tComment\tTemperature\tHumidity\tSequence #\tData Points\t100.0\t200.0\t300.0\n")
	for _, r := range rows {
		sb.WriteString(r + "\n")
	}
	return sb.String()
}

func row(clock, comment string) string {
	return clock + "\t" + comment + "\t22.8\t31.1\t1\tDatapoint\t-80.10\t-75.20\t-90.30"
}

func TestParse(t *testing.T) {
	p := NewParser()

	text := recording("Australia/Sydney", "2025-04-23", "02:12:34", []string{
		row("02:12:34", ""),
		row("02:12:35", "whale call"),
		row("02:12:36", "whale call"),
	})

	file, err := p.Parse(strings.NewReader(text), "wavtS_20250423_021234.txt")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if len(file.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(file.Samples))
	}
	if len(file.Freqs) != 3 {
		t.Fatalf("expected 3 frequency bins, got %d", len(file.Freqs))
	}
	if file.AlreadyCanonical {
		t.Error("raw recorder file must not be marked as exported")
	}
	if file.ZoneName != "Australia/Sydney" {
		t.Errorf("zone = %q, want Australia/Sydney", file.ZoneName)
	}

	// 2025-04-23 is AEST (UTC+10): wall 02:12:34 is 2025-04-22T16:12:34Z.
	want := time.Date(2025, 4, 22, 16, 12, 34, 0, time.UTC)
	if !file.Samples[0].Instant.Equal(want) {
		t.Errorf("first instant = %v, want %v", file.Samples[0].Instant, want)
	}
	if !file.DeclaredStart.Equal(want) {
		t.Errorf("declared start = %v, want %v", file.DeclaredStart, want)
	}
	if file.SampleInterval != time.Second {
		t.Errorf("sample interval = %v, want 1s", file.SampleInterval)
	}
	if file.Samples[1].Comment != "whale call" {
		t.Errorf("comment = %q, want \"whale call\"", file.Samples[1].Comment)
	}
}

func TestParseMissingZoneDefaultsToUTC(t *testing.T) {
	p := NewParser()

	text := recording("", "2025-04-23", "02:12:34", []string{row("02:12:34", "")})
	file, err := p.Parse(strings.NewReader(text), "test.txt")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if file.ZoneName != "UTC" {
		t.Errorf("zone = %q, want UTC", file.ZoneName)
	}
	want := time.Date(2025, 4, 23, 2, 12, 34, 0, time.UTC)
	if !file.Samples[0].Instant.Equal(want) {
		t.Errorf("instant = %v, want %v", file.Samples[0].Instant, want)
	}
}

func TestParseMidnightRollover(t *testing.T) {
	p := NewParser()

	text := recording("UTC", "2025-04-23", "23:59:59", []string{
		row("23:59:59", ""),
		row("00:00:00", ""),
		row("00:00:01", ""),
	})

	file, err := p.Parse(strings.NewReader(text), "test.txt")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := time.Date(2025, 4, 24, 0, 0, 0, 0, time.UTC)
	if !file.Samples[1].Instant.Equal(want) {
		t.Errorf("post-midnight instant = %v, want %v", file.Samples[1].Instant, want)
	}
	if got := file.End().Sub(file.Start()); got != 2*time.Second {
		t.Errorf("file duration = %v, want 2s", got)
	}
}

func TestParseHeaderDisagreesWithRows(t *testing.T) {
	p := NewParser()

	// Header claims 12:00:00 but the rows start at 02:12:34. Raw files are
	// re-anchored to row data.
	text := recording("UTC", "2025-04-23", "12:00:00", []string{row("02:12:34", "")})
	file, err := p.Parse(strings.NewReader(text), "test.txt")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !file.DeclaredStart.Equal(file.Samples[0].Instant) {
		t.Errorf("declared start = %v, want first row %v", file.DeclaredStart, file.Samples[0].Instant)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want error
	}{
		{
			name: "no column header",
			text: "File Details:\nStart Date\t2025-04-23\n",
			want: ErrMalformedHeader,
		},
		{
			name: "missing start date",
			text: strings.Replace(
				recording("UTC", "2025-04-23", "", []string{row("02:12:34", "")}),
				"Start Date\t2025-04-23\n", "", 1),
			want: ErrMalformedHeader,
		},
		{
			name: "no data rows",
			text: recording("UTC", "2025-04-23", "", nil),
			want: ErrEmptyFile,
		},
		{
			name: "short row",
			text: recording("UTC", "2025-04-23", "", []string{
				"02:12:34\t\t22.8\t31.1\t1\tDatapoint\t-80.10\t-75.20",
			}),
			want: ErrUnsupportedColumnCount,
		},
		{
			name: "wide row",
			text: recording("UTC", "2025-04-23", "", []string{
				"02:12:34\t\t22.8\t31.1\t1\tDatapoint\t-80.10\t-75.20\t-90.30\t-91.00",
			}),
			want: ErrUnsupportedColumnCount,
		},
	}

	p := NewParser()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Parse(strings.NewReader(tc.text), "test.txt")
			if !errors.Is(err, tc.want) {
				t.Errorf("Parse() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseDetectsExportedFile(t *testing.T) {
	doc := &Document{
		Client: "Acme Marine",
		Zone:   time.UTC, ZoneName: "UTC",
		Freqs: []float64{100, 200, 300},
		Samples: []spectrum.Sample{
			{Instant: time.Date(2025, 4, 23, 2, 12, 34, 0, time.UTC), Bins: []float64{-80, -75, -90}},
		},
	}

	var sb strings.Builder
	if err := Write(&sb, doc); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	file, err := NewParser().Parse(strings.NewReader(sb.String()), "export.txt")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !file.AlreadyCanonical {
		t.Error("exported artifact must be detected as already canonical")
	}
}
