package audio

import "math"

// VADResult is the outcome of gating one completed window.
type VADResult struct {
	Speech      bool
	Score       float64
	RMS         float64
	NoiseFloor  float64
	ZCR         float64
}

// VADGate decides whether a completed window contains speech (C3),
// using an adaptive noise floor plus zero-crossing rate per spec.md
// §4.3. It holds per-track rolling state and must be fed windows in
// capture order.
type VADGate struct {
	staticRMSThreshold float64
	sensitivity        float64

	noiseFloor float64

	zcrWindow []float64
	zcrCap    int
	zcrPos    int
	zcrFull   bool
}

// NewVADGate constructs a gate. windowMs and vadWindowMs determine the
// size of the rolling ZCR average per the formula in spec.md §4.3 (kept
// as-is; see the open question in DESIGN.md about this formula).
func NewVADGate(windowMs, vadWindowMs int, sensitivity, staticRMSThreshold float64) *VADGate {
	capacity := int(math.Round(float64(vadWindowMs) / float64(windowMs) * 4))
	if capacity < 1 {
		capacity = 1
	}
	return &VADGate{
		staticRMSThreshold: staticRMSThreshold,
		sensitivity:        sensitivity,
		zcrWindow:          make([]float64, capacity),
		zcrCap:             capacity,
	}
}

// Evaluate scores one completed window and advances the gate's rolling
// state regardless of the outcome.
func (g *VADGate) Evaluate(window []int16) VADResult {
	r := rms(window)
	g.noiseFloor = 0.95*g.noiseFloor + 0.05*r
	threshold := math.Max(g.staticRMSThreshold, 1.6*g.noiseFloor)

	zcr := zeroCrossingRate(window)
	g.pushZCR(zcr)
	avgZCR := g.averageZCR()

	score := 0.7*(r/threshold) + 0.3*avgZCR

	return VADResult{
		Speech:     score >= g.sensitivity,
		Score:      score,
		RMS:        r,
		NoiseFloor: g.noiseFloor,
		ZCR:        avgZCR,
	}
}

func (g *VADGate) pushZCR(z float64) {
	g.zcrWindow[g.zcrPos] = z
	g.zcrPos++
	if g.zcrPos >= g.zcrCap {
		g.zcrPos = 0
		g.zcrFull = true
	}
}

func (g *VADGate) averageZCR() float64 {
	n := g.zcrPos
	if g.zcrFull {
		n = g.zcrCap
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += g.zcrWindow[i]
	}
	return sum / float64(n)
}

func zeroCrossingRate(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var crossings int
	for i := 1; i < len(samples); i++ {
		if signOf(samples[i-1]) != signOf(samples[i]) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples))
}

func signOf(v int16) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
