package spectrum

import (
	"time"
)

// Sample represents a single spectral measurement row: one instant in
// canonical (UTC) time and an amplitude value per frequency bin.
type Sample struct {
	Instant time.Time `json:"instant"`           // Measurement instant, always UTC
	Bins    []float64 `json:"bins"`              // Amplitude per frequency bin in dB
	Comment string    `json:"comment,omitempty"` // Inline comment carried from the recording row
}

// DeviceInfo captures the recorder hardware identity carried in file headers.
type DeviceInfo struct {
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Firmware string `json:"firmware"`
}

// SetupInfo captures the acquisition settings carried in file headers.
// These are round-tripped verbatim so exported artifacts remain usable
// by downstream analysis tools.
type SetupInfo struct {
	SampleRate    int     `json:"sampleRate"` // S/s
	FFTSize       int     `json:"fftSize"`
	BinWidth      float64 `json:"binWidth"` // Hz
	DBRefRe1V     float64 `json:"dbRefRe1V"`
	DBRefRe1uPa   float64 `json:"dbRefRe1uPa"`
	Window        string  `json:"window"`
	Overlap       float64 `json:"overlap"` // percent
	PowerCalc     string  `json:"powerCalc"`
	Accumulations int     `json:"accumulations"`
}

// SourceFile represents one parsed recording: its provenance metadata and
// the ordered samples it contributed. Samples are stored in canonical time;
// the declared zone is retained for presentation and round-tripping only.
type SourceFile struct {
	Path      string `json:"path"`
	Client    string `json:"client,omitempty"`
	Job       string `json:"job,omitempty"`
	Personnel string `json:"personnel,omitempty"`

	Device DeviceInfo `json:"device"`
	Setup  SetupInfo  `json:"setup"`

	DeclaredStart    time.Time      `json:"declaredStart"` // Canonical UTC
	Zone             *time.Location `json:"-"`
	ZoneName         string         `json:"zoneName"`
	SampleInterval   time.Duration  `json:"sampleInterval"`
	AlreadyCanonical bool           `json:"alreadyCanonical"` // File was produced by this engine's exporter

	Freqs   []float64 `json:"freqs"` // Bin center frequencies in Hz
	Samples []Sample  `json:"samples,omitempty"`
}

// Start returns the instant of the first sample, or the zero time for an
// empty file.
func (f *SourceFile) Start() time.Time {
	if len(f.Samples) == 0 {
		return time.Time{}
	}
	return f.Samples[0].Instant
}

// End returns the instant of the last sample, or the zero time for an
// empty file.
func (f *SourceFile) End() time.Time {
	if len(f.Samples) == 0 {
		return time.Time{}
	}
	return f.Samples[len(f.Samples)-1].Instant
}

// Duration returns the time covered by the file's samples.
func (f *SourceFile) Duration() time.Duration {
	return f.End().Sub(f.Start())
}
