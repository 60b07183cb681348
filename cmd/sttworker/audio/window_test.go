package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlidingWindowInvalidConfig(t *testing.T) {
	_, err := NewSlidingWindow(44100, 33, 1000, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSlidingWindow(44100, 3000, 33, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSlidingWindowExactlyFullRing(t *testing.T) {
	w, err := NewSlidingWindow(16000, 3000, 1000, 0)
	require.NoError(t, err)

	capacity := 16000 * 3000 / 1000
	samples := make([]int16, capacity)

	windows, err := w.Append(samples)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, capacity-16000*1000/1000, w.cursor)
	require.Equal(t, int64(0), windows[0].StartMs)
	require.Equal(t, int64(3000), windows[0].EndMs)
}

func TestSlidingWindowStrideEqualsWindowResetsCursor(t *testing.T) {
	w, err := NewSlidingWindow(16000, 3000, 3000, 0)
	require.NoError(t, err)

	capacity := 16000 * 3000 / 1000
	samples := make([]int16, capacity)

	windows, err := w.Append(samples)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, 0, w.cursor)
}

func TestSlidingWindowMultipleWindowsFromLargeAppend(t *testing.T) {
	w, err := NewSlidingWindow(16000, 3000, 1000, 0)
	require.NoError(t, err)

	capacity := 16000 * 3000 / 1000
	stride := 16000 * 1000 / 1000
	samples := make([]int16, capacity+2*stride)

	windows, err := w.Append(samples)
	require.NoError(t, err)
	require.Len(t, windows, 3)
	require.Equal(t, int64(0), windows[0].StartMs)
	require.Equal(t, int64(1000), windows[1].StartMs)
	require.Equal(t, int64(2000), windows[2].StartMs)
}

func TestSlidingWindowDetachedCopy(t *testing.T) {
	w, err := NewSlidingWindow(16000, 3000, 1000, 0)
	require.NoError(t, err)

	capacity := 16000 * 3000 / 1000
	samples := make([]int16, capacity)
	samples[0] = 42

	windows, err := w.Append(samples)
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w.ring[0] = 99
	require.Equal(t, int16(42), windows[0].Samples[0])
}

func TestSlidingWindowHasWindow(t *testing.T) {
	w, err := NewSlidingWindow(16000, 3000, 1000, 0)
	require.NoError(t, err)
	require.False(t, w.HasWindow())

	capacity := 16000 * 3000 / 1000
	_, err = w.Append(make([]int16, capacity-1))
	require.NoError(t, err)
	require.False(t, w.HasWindow())
}
