// Package audio implements the sample-rate/channel normalization, AGC,
// VAD and sliding-window chunker that turn a raw PCM track into a
// stream of fixed-length analysis windows (spec.md §4.1-§4.4).
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrUnsupportedChannelLayout is returned by SampleBuffer.Process for any
// channel conversion other than the identity (ch=ch') or stereo-to-mono
// (ch=2, out=1) layouts.
var ErrUnsupportedChannelLayout = errors.New("audio: unsupported channel layout")

// Frame is the input carried by an audio callback: raw PCM interleaved
// s16le samples, declared at the track's native rate/channel count.
// Its lifetime is the length of one callback; SampleBuffer copies
// whatever it needs out of Data before returning.
type Frame struct {
	SampleRate        uint32
	Channels          uint16
	SamplesPerChannel uint32
	Data              []byte
}

// SampleBuffer converts raw frames into s16le mono samples at the
// canonical target rate (C1). It is per-track state: it remembers
// whether it has already warned about a rate or channel mismatch.
type SampleBuffer struct {
	targetRate     int
	warnedRate     bool
	warnedChannels bool
	trackID        string
}

// NewSampleBuffer constructs a SampleBuffer that normalizes onto
// targetRate mono. trackID is only used to scope warn-once log lines.
func NewSampleBuffer(targetRate int, trackID string) *SampleBuffer {
	return &SampleBuffer{targetRate: targetRate, trackID: trackID}
}

// Process normalizes one frame into mono int16 samples at the target
// rate, applying channel mixdown before resampling.
func (b *SampleBuffer) Process(f Frame) ([]int16, error) {
	samples, err := decodeS16LE(f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	ch := int(f.Channels)
	if ch != 1 {
		if !b.warnedChannels {
			slog.Warn("channel mismatch, converting to mono",
				slog.String("trackID", b.trackID), slog.Int("channels", ch))
			b.warnedChannels = true
		}
		if ch != 2 {
			return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedChannelLayout, ch)
		}
		samples = StereoToMono(samples)
	}

	rate := int(f.SampleRate)
	if rate != b.targetRate {
		if !b.warnedRate {
			slog.Warn("sample rate mismatch, resampling",
				slog.String("trackID", b.trackID), slog.Int("rate", rate), slog.Int("target", b.targetRate))
			b.warnedRate = true
		}
		samples = Resample(samples, rate, b.targetRate)
	}

	return samples, nil
}

// StereoToMono averages interleaved left/right channels, matching
// spec.md §4.1's round((L+R)/2) exactly. stereoToMono([a,a,b,b,c,c]) ==
// [a,b,c] (the round-trip/idempotence law of spec.md §8).
func StereoToMono(samples []int16) []int16 {
	out := make([]int16, len(samples)/2)
	for i := range out {
		l := int(samples[2*i])
		r := int(samples[2*i+1])
		out[i] = clampS16(roundDiv2(l + r))
	}
	return out
}

func roundDiv2(sum int) int {
	if sum >= 0 {
		return (sum + 1) / 2
	}
	return -((-sum + 1) / 2)
}

// Resample performs the crude but adequate two-stage resampling of
// spec.md §4.1: first-order exponential smoothing as a pre-filter
// (alpha = min(1, 1.5*to/from)), then linear interpolation onto a
// buffer of length round(len*to/from). Resample(x, r, r) returns a
// copy of x unchanged (the identity law of spec.md §8).
func Resample(x []int16, from, to int) []int16 {
	if from == to || len(x) == 0 {
		out := make([]int16, len(x))
		copy(out, x)
		return out
	}

	alpha := 1.5 * float64(to) / float64(from)
	if alpha > 1 {
		alpha = 1
	}

	filtered := make([]float64, len(x))
	smoothed := float64(x[0])
	for i, s := range x {
		smoothed = (1-alpha)*smoothed + alpha*float64(s)
		filtered[i] = smoothed
	}

	outLen := int(math.Round(float64(len(x)) * float64(to) / float64(from)))
	if outLen <= 0 {
		return nil
	}

	out := make([]int16, outLen)
	step := float64(len(filtered)-1) / float64(maxInt(outLen-1, 1))
	for i := 0; i < outLen; i++ {
		pos := step * float64(i)
		i0 := int(math.Floor(pos))
		if i0 >= len(filtered)-1 {
			out[i] = clampS16(int(math.Round(filtered[len(filtered)-1])))
			continue
		}
		frac := pos - float64(i0)
		v := filtered[i0]*(1-frac) + filtered[i0+1]*frac
		out[i] = clampS16(int(math.Round(v)))
	}

	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampS16(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func decodeS16LE(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd byte length %d is not valid s16le", len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out, nil
}

// EncodeS16LE is the inverse of decodeS16LE, used by the windowing
// layer to turn a completed window back into a byte payload for the
// WAV encoder (C5).
func EncodeS16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
