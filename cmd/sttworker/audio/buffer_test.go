package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStereoToMono(t *testing.T) {
	in := []int16{10, 10, 20, 20, -30, -30}
	require.Equal(t, []int16{10, 20, -30}, StereoToMono(in))
}

func TestStereoToMonoRounding(t *testing.T) {
	in := []int16{1, 2}
	require.Equal(t, []int16{2}, StereoToMono(in))
}

func TestResampleIdentity(t *testing.T) {
	in := []int16{1, -2, 3, -4, 5}
	out := Resample(in, 16000, 16000)
	require.Equal(t, in, out)
}

func TestResampleDownsamplesLength(t *testing.T) {
	in := make([]int16, 4800)
	for i := range in {
		in[i] = int16((i % 100) - 50)
	}
	out := Resample(in, 48000, 16000)
	require.InDelta(t, 1600, len(out), 1)
}

func TestSampleBufferMonoIdentity(t *testing.T) {
	b := NewSampleBuffer(16000, "track1")
	samples := []int16{100, -200, 300}
	out, err := b.Process(Frame{
		SampleRate:        16000,
		Channels:          1,
		SamplesPerChannel: uint32(len(samples)),
		Data:              EncodeS16LE(samples),
	})
	require.NoError(t, err)
	require.Equal(t, samples, out)
}

func TestSampleBufferUnsupportedChannelLayout(t *testing.T) {
	b := NewSampleBuffer(16000, "track1")
	_, err := b.Process(Frame{
		SampleRate: 16000,
		Channels:   3,
		Data:       EncodeS16LE([]int16{1, 2, 3}),
	})
	require.ErrorIs(t, err, ErrUnsupportedChannelLayout)
}

func TestSampleBufferResampleAndMono(t *testing.T) {
	b := NewSampleBuffer(16000, "track1")
	samples := make([]int16, 4800*2)
	for i := 0; i < 4800; i++ {
		v := int16((i % 50) - 25)
		samples[2*i] = v
		samples[2*i+1] = v
	}
	out, err := b.Process(Frame{
		SampleRate:        48000,
		Channels:          2,
		SamplesPerChannel: 4800,
		Data:              EncodeS16LE(samples),
	})
	require.NoError(t, err)
	require.InDelta(t, 1600, len(out), 1)
}
