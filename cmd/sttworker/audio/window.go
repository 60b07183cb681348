package audio

import (
	"errors"
	"fmt"
)

// ErrWindowOverflow is the internal invariant violation of spec.md §7:
// an append was asked to place more samples than the ring has room for
// in one call, after closing every window that append should close.
var ErrWindowOverflow = errors.New("audio: window overflow")

// ErrInvalidConfig flags a window/ring capacity mismatch at construction.
var ErrInvalidConfig = errors.New("audio: invalid window configuration")

// Window is a completed, detached copy of the ring's samples plus the
// timing metadata assigned at emission (C4). Samples never alias the
// ring: the ring mutates immediately after emission.
type Window struct {
	Samples []int16
	StartMs int64
	EndMs   int64
}

// SlidingWindow is a fixed-capacity ring over samples with strict
// stride/window invariants (spec.md §4.4). One SlidingWindow belongs to
// exactly one TrackContext.
type SlidingWindow struct {
	ring          []int16
	cursor        int
	capacity      int
	strideSamples int
	windowMs      int64
	strideMs      int64
	nextStartMs   int64
}

// NewSlidingWindow constructs a ring of capacity sampleRate*windowMs/1000
// with a stride of sampleRate*strideMs/1000, per spec.md §3 invariant 3.
// startMs seeds the first window's start timestamp.
func NewSlidingWindow(sampleRate, windowMs, strideMs int, startMs int64) (*SlidingWindow, error) {
	if sampleRate <= 0 || windowMs <= 0 || strideMs <= 0 {
		return nil, fmt.Errorf("%w: sampleRate/windowMs/strideMs must be positive", ErrInvalidConfig)
	}
	if (sampleRate*windowMs)%1000 != 0 {
		return nil, fmt.Errorf("%w: sampleRate*windowMs must be a multiple of 1000", ErrInvalidConfig)
	}
	if (sampleRate*strideMs)%1000 != 0 {
		return nil, fmt.Errorf("%w: sampleRate*strideMs must be a multiple of 1000", ErrInvalidConfig)
	}

	capacity := sampleRate * windowMs / 1000
	stride := sampleRate * strideMs / 1000

	return &SlidingWindow{
		ring:          make([]int16, capacity),
		capacity:      capacity,
		strideSamples: stride,
		windowMs:      int64(windowMs),
		strideMs:      int64(strideMs),
		nextStartMs:   startMs,
	}, nil
}

// Append adds samples to the ring, emitting and sliding for every
// window the append closes, in order. A single call may close more
// than one window when len(samples) is large relative to the stride.
func (w *SlidingWindow) Append(samples []int16) ([]Window, error) {
	var windows []Window

	for len(samples) > 0 {
		room := w.capacity - w.cursor
		n := len(samples)
		if n > room {
			n = room
		}
		copy(w.ring[w.cursor:w.cursor+n], samples[:n])
		w.cursor += n
		samples = samples[n:]

		if w.cursor == w.capacity {
			windows = append(windows, w.emit())
		} else if w.cursor > w.capacity {
			return windows, fmt.Errorf("%w: cursor %d exceeds capacity %d", ErrWindowOverflow, w.cursor, w.capacity)
		}
	}

	return windows, nil
}

// HasWindow reports whether the ring currently holds a full window.
func (w *SlidingWindow) HasWindow() bool {
	return w.cursor == w.capacity
}

func (w *SlidingWindow) emit() Window {
	out := make([]int16, w.capacity)
	copy(out, w.ring)

	win := Window{
		Samples: out,
		StartMs: w.nextStartMs,
		EndMs:   w.nextStartMs + w.windowMs,
	}

	if w.strideSamples >= w.capacity {
		w.cursor = 0
	} else {
		copy(w.ring, w.ring[w.strideSamples:])
		w.cursor = w.capacity - w.strideSamples
	}
	w.nextStartMs += w.strideMs

	return win
}
