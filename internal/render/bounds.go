package render

import "math"

const (
	defaultMinAmplitude = -120.0 // dB
	defaultMaxAmplitude = -20.0  // dB

	// Histogram coverage in 1 dB bins. Hydrophone spectral levels fall well
	// inside this range whatever the calibration reference; readings outside
	// it are counted in the edge bins.
	histFloor = -200
	histCeil  = 200

	// Below this many readings the percentile estimate is noise.
	minimumSampleCount = 20

	// Narrow-band recordings still get at least this much color range.
	minRangeDB = 30
)

// AmplitudeBounds represents the calculated amplitude boundaries used to
// normalize colors.
type AmplitudeBounds struct {
	Min  float64 // 5th percentile amplitude in dB
	Max  float64 // 95th percentile amplitude in dB
	Mean float64 // Mean amplitude in dB
}

func defaultAmplitudeBounds() AmplitudeBounds {
	return AmplitudeBounds{
		Min:  defaultMinAmplitude,
		Max:  defaultMaxAmplitude,
		Mean: (defaultMinAmplitude + defaultMaxAmplitude) / 2,
	}
}

// amplitudeHistogram counts readings in 1 dB bins over a fixed dB range.
type amplitudeHistogram struct {
	counts [histCeil - histFloor]uint64
	total  uint64
	sum    float64
}

func (h *amplitudeHistogram) observe(amplitude float64) {
	if math.IsNaN(amplitude) || math.IsInf(amplitude, 0) {
		return
	}

	bin := int(math.Floor(amplitude)) - histFloor
	if bin < 0 {
		bin = 0
	}
	if bin >= len(h.counts) {
		bin = len(h.counts) - 1
	}

	h.counts[bin]++
	h.total++
	h.sum += amplitude
}

// percentileBounds estimates the 5th and 95th percentile amplitudes,
// widened to the minimum range plus a 10% margin.
func (h *amplitudeHistogram) percentileBounds() AmplitudeBounds {
	if h.total < minimumSampleCount {
		return defaultAmplitudeBounds()
	}

	target := h.total * 5 / 100
	if target == 0 {
		target = 1
	}

	var count uint64
	min5th := histFloor
	for i, c := range h.counts {
		count += c
		if count >= target {
			min5th = i + histFloor
			break
		}
	}

	count = 0
	max95th := histCeil - 1
	for i := len(h.counts) - 1; i >= 0; i-- {
		count += h.counts[i]
		if count >= target {
			max95th = i + histFloor
			break
		}
	}

	if max95th-min5th < minRangeDB {
		center := (max95th + min5th) / 2
		min5th = center - minRangeDB/2
		max95th = center + minRangeDB/2
	}

	margin := (max95th - min5th) / 10
	return AmplitudeBounds{
		Min:  float64(min5th - margin),
		Max:  float64(max95th + margin),
		Mean: h.sum / float64(h.total),
	}
}

// SmoothBounds tracks amplitude bounds as readings arrive, smoothing the
// percentile estimate exponentially so a single loud sample cannot snap the
// color range.
type SmoothBounds struct {
	hist    amplitudeHistogram
	alpha   float64
	current AmplitudeBounds
}

// NewSmoothBounds creates a bounds tracker with smoothing factor alpha
// in (0, 1].
func NewSmoothBounds(alpha float64) *SmoothBounds {
	return &SmoothBounds{
		alpha:   alpha,
		current: defaultAmplitudeBounds(),
	}
}

// Update adds a new amplitude reading and returns the smoothed bounds.
func (s *SmoothBounds) Update(amplitude float64) AmplitudeBounds {
	s.hist.observe(amplitude)

	next := s.hist.percentileBounds()
	s.current.Min = s.current.Min*(1-s.alpha) + next.Min*s.alpha
	s.current.Max = s.current.Max*(1-s.alpha) + next.Max*s.alpha
	s.current.Mean = next.Mean

	return s.current
}

// Current returns the current smoothed amplitude bounds.
func (s *SmoothBounds) Current() AmplitudeBounds {
	return s.current
}

// Clear resets the histogram and bounds.
func (s *SmoothBounds) Clear() {
	s.hist = amplitudeHistogram{}
	s.current = defaultAmplitudeBounds()
}
