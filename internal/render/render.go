// Package render draws spectrogram images from the samples visible in a
// navigation window. It reads the window's sample iterator only; it never
// mutates the timeline or the annotation store.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"iter"
	"math"
	"os"
	"strings"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

// SpectrogramData accumulates the visible samples into a pixel grid: one
// image row per sample, one column per frequency bin.
type SpectrogramData struct {
	Freqs []float64
	Times []time.Time
	Rows  [][]float64

	BoundsTracker *SmoothBounds
}

// NewSpectrogramData creates an empty accumulator over the given bins.
func NewSpectrogramData(freqs []float64, bounds *SmoothBounds) *SpectrogramData {
	return &SpectrogramData{Freqs: freqs, BoundsTracker: bounds}
}

// Update appends one sample row and feeds the bounds tracker.
func (d *SpectrogramData) Update(s spectrum.Sample) {
	d.Times = append(d.Times, s.Instant)
	d.Rows = append(d.Rows, s.Bins)
	for _, a := range s.Bins {
		d.BoundsTracker.Update(a)
	}
}

// Collect drains a visible-sample iterator into a SpectrogramData.
func Collect(samples iter.Seq2[int, spectrum.Sample], freqs []float64) *SpectrogramData {
	d := NewSpectrogramData(freqs, NewSmoothBounds(0.3))
	for _, s := range samples {
		d.Update(s)
	}
	return d
}

// Width returns the image width of the spectrum area in pixels.
func (d *SpectrogramData) Width() int {
	return len(d.Freqs)
}

// Height returns the image height of the spectrum area in pixels.
func (d *SpectrogramData) Height() int {
	return len(d.Rows)
}

// TimestampStart returns the instant of the first visible sample.
func (d *SpectrogramData) TimestampStart() time.Time {
	if len(d.Times) == 0 {
		return time.Time{}
	}
	return d.Times[0]
}

// TimestampEnd returns the instant of the last visible sample.
func (d *SpectrogramData) TimestampEnd() time.Time {
	if len(d.Times) == 0 {
		return time.Time{}
	}
	return d.Times[len(d.Times)-1]
}

// BorderConfig defines the sizes of white space around the spectrogram
type BorderConfig struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// Config holds all configuration options for spectrogram visualization
type Config struct {
	// Time display configuration
	TimeFormat     string         // Format string for time display (e.g. "15:04:05")
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Display timezone for scales and the info bar
	ZoneName       string

	// Visual configuration
	FontPath   string     // Path to a TTF font; empty uses the built-in bitmap face
	FontSizePt float64    // Font size in points, TTF only
	ColorTheme ColorTheme // Color scheme for amplitude values

	// Border configuration
	Borders BorderConfig
}

// Renderer handles the visualization of hydrophone spectrogram data
type Renderer struct {
	config Config
}

// NewRenderer creates a renderer with the given configuration
func NewRenderer(config Config) *Renderer {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.UTC
		config.ZoneName = "UTC"
	}
	if config.FontSizePt == 0 {
		config.FontSizePt = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	return &Renderer{config: config}
}

// Render creates an image of the spectrogram data with scales and an info
// bar.
func (r *Renderer) Render(data *SpectrogramData) (*image.RGBA, error) {
	if data.Height() == 0 {
		return nil, fmt.Errorf("rendering spectrogram: no visible samples")
	}

	fullWidth := data.Width() + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := data.Height() + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Borders.Left+data.Width(),
		r.config.Borders.Top+data.Height(),
	)

	colors := NewColorMapper(r.config.ColorTheme, data.BoundsTracker.Current())

	ann, err := newAnnotator(r.config, img)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, data); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	renderSpectrogram(img, area, data, colors)

	return img, nil
}

func renderSpectrogram(img *image.RGBA, area image.Rectangle, data *SpectrogramData, colors *ColorMapper) {
	for y, row := range data.Rows {
		imgY := area.Min.Y + y
		for x, amplitude := range row {
			img.Set(area.Min.X+x, imgY, colors.GetColor(amplitude))
		}
	}
}

// textFace abstracts the two label backends: a TTF face via freetype when a
// font file is configured, and the built-in bitmap face otherwise.
type textFace interface {
	drawString(label string, x, y int) error
	measure(label string) int
	lineHeight() int
	descent() int
	Close() error
}

type annotator struct {
	face   textFace
	config Config
}

func newAnnotator(config Config, dst *image.RGBA) (*annotator, error) {
	var face textFace
	if config.FontPath != "" {
		f, err := newTruetypeFace(config.FontPath, config.FontSizePt, dst)
		if err != nil {
			return nil, err
		}
		face = f
	} else {
		face = newBitmapFace(dst)
	}
	return &annotator{face: face, config: config}, nil
}

func (a *annotator) Close() error {
	return a.face.Close()
}

func (a *annotator) annotate(img *image.RGBA, data *SpectrogramData) error {
	if err := a.drawFrequencyScale(img, data); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawTimeScale(img, data); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, data); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, data *SpectrogramData) error {
	freqMin := data.Freqs[0]
	freqMax := data.Freqs[len(data.Freqs)-1]
	if freqMax <= freqMin {
		return nil
	}

	freqStep := calculateNiceFrequencyStep(freqMax-freqMin, data.Width())
	startFreq := math.Floor(freqMin/freqStep) * freqStep

	textY := a.config.Borders.Top - a.face.lineHeight()/2

	for freq := startFreq; freq <= freqMax; freq += freqStep {
		if freq < freqMin {
			continue
		}
		xRatio := (freq - freqMin) / (freqMax - freqMin)
		x := a.config.Borders.Left + int(xRatio*float64(data.Width()))

		for y := a.config.Borders.Top - tickMarkHeight; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		if err := a.face.drawString(label, x-a.face.measure(label)/2, textY); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, data *SpectrogramData) error {
	duration := data.TimestampEnd().Sub(data.TimestampStart())
	timeStep := calculateNiceTimeStep(duration)

	// Rows map 1:1 to samples, so step through rows by instant rather than
	// assuming a uniform interval; gaps compress naturally.
	nextLabel := data.TimestampStart()
	for y, instant := range data.Times {
		if instant.Before(nextLabel) {
			continue
		}
		nextLabel = instant.Add(timeStep)

		imgY := y + a.config.Borders.Top
		for x := a.config.Borders.Left - tickMarkHeight; x < a.config.Borders.Left; x++ {
			img.Set(x, imgY, color.Black)
		}

		label := instant.In(a.config.Location).Format(a.config.TimeFormat)
		textY := imgY + a.face.lineHeight()/2 - a.face.descent()
		if err := a.face.drawString(label, 10, textY); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, data *SpectrogramData) error {
	var sb strings.Builder

	freqMin := data.Freqs[0]
	freqMax := data.Freqs[len(data.Freqs)-1]

	sb.WriteString(fmt.Sprintf("Freq: %s - %s", formatFrequency(freqMin), formatFrequency(freqMax)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Time (%s): %s - %s",
		a.config.ZoneName,
		data.TimestampStart().In(a.config.Location).Format(a.config.DatetimeFormat),
		data.TimestampEnd().In(a.config.Location).Format(a.config.DatetimeFormat)))

	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.face.lineHeight())/2 - a.face.descent()

	if err := a.face.drawString(sb.String(), a.config.Borders.Left, textY); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// truetypeFace draws labels with a parsed TTF font through freetype.
type truetypeFace struct {
	context  *freetype.Context
	fontFace font.Face
}

func newTruetypeFace(path string, sizePt float64, dst *image.RGBA) (*truetypeFace, error) {
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(sizePt)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)

	return &truetypeFace{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    sizePt,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (f *truetypeFace) drawString(label string, x, y int) error {
	_, err := f.context.DrawString(label, freetype.Pt(x, y))
	return err
}

func (f *truetypeFace) measure(label string) int {
	return font.MeasureString(f.fontFace, label).Round()
}

func (f *truetypeFace) lineHeight() int {
	m := f.fontFace.Metrics()
	return (m.Ascent + m.Descent).Round()
}

func (f *truetypeFace) descent() int {
	return f.fontFace.Metrics().Descent.Round()
}

func (f *truetypeFace) Close() error {
	return f.fontFace.Close()
}

// bitmapFace draws labels with the built-in fixed-size face, used when no
// font file is configured.
type bitmapFace struct {
	dst *image.RGBA
}

func newBitmapFace(dst *image.RGBA) *bitmapFace {
	return &bitmapFace{dst: dst}
}

func (f *bitmapFace) drawString(label string, x, y int) error {
	d := font.Drawer{
		Dst:  f.dst,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
	return nil
}

func (f *bitmapFace) measure(label string) int {
	d := font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(label).Round()
}

func (f *bitmapFace) lineHeight() int {
	return basicfont.Face7x13.Height
}

func (f *bitmapFace) descent() int {
	return basicfont.Face7x13.Descent
}

func (f *bitmapFace) Close() error {
	return nil
}

// Helper functions

func calculateNiceFrequencyStep(range_ float64, width int) float64 {
	// Standard step sizes in Hz
	steps := []float64{
		1,       // 1 Hz
		10,      // 10 Hz
		100,     // 100 Hz
		1_000,   // 1 kHz
		10_000,  // 10 kHz
		100_000, // 100 kHz
	}

	desiredSteps := float64(width) / pixelsPerLabel
	targetStep := range_ / desiredSteps

	for _, step := range steps {
		if step >= targetStep {
			if range_/step >= 2 {
				return step
			}
			break
		}
	}

	// If we can't find a suitable step or would get too few points,
	// return half the range to show at least the band center
	return range_ / 2
}

func formatFrequency(freq float64) string {
	switch {
	case freq >= 1e6:
		return fmt.Sprintf("%.1f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%.1f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", freq)
	}
}

func calculateNiceTimeStep(duration time.Duration) time.Duration {
	seconds := duration.Seconds()
	roughStep := seconds / 8 // Aim for about 8 time labels

	// Nice time intervals in seconds
	niceIntervals := []float64{
		1,     // 1 second
		5,     // 5 seconds
		15,    // 15 seconds
		60,    // 1 minute
		300,   // 5 minutes
		600,   // 10 minutes
		900,   // 15 minutes
		1800,  // 30 minutes
		3600,  // 1 hour
		7200,  // 2 hours
		14400, // 4 hours
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}

	return time.Hour * 6 // Default for very long durations
}
