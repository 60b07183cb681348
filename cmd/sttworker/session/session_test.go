package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
)

func confPtr(v float64) *float64 { return &v }

func TestSessionNoTerminatorHeldInBuffer(t *testing.T) {
	s := New(0.3)
	defer s.Close()

	res := s.Submit(ChunkResult{
		ChunkID: "c1",
		Text:    "the quick brown fox jumps over",
		Segments: []pipeline.STTSegment{
			{Text: "the quick brown fox jumps over", Confidence: confPtr(0.9)},
		},
		StartMs: 0, EndMs: 3000,
	})
	require.False(t, res.Released)
}

func TestSessionReleasesOnTerminator(t *testing.T) {
	s := New(0.3)
	defer s.Close()

	res := s.Submit(ChunkResult{
		ChunkID: "c1",
		Text:    "hello there, how are you.",
		Segments: []pipeline.STTSegment{
			{Text: "hello there, how are you.", Confidence: confPtr(0.9)},
		},
		StartMs: 0, EndMs: 3000,
	})

	require.True(t, res.Released)
	require.Equal(t, "hello there, how are you.", res.CleanText)
	require.Equal(t, int64(0), res.Segment.StartMs)
	require.Equal(t, int64(3000), res.Segment.EndMs)
	require.True(t, res.Segment.IsFinal)
	require.Equal(t, "stt", res.Segment.Source)
}

func TestSessionSecondWindowExtractsOnlyNewSuffix(t *testing.T) {
	s := New(0.3)
	defer s.Close()

	s.Submit(ChunkResult{
		ChunkID:  "c1",
		Text:     "the weather today is",
		Segments: []pipeline.STTSegment{{Text: "the weather today is", Confidence: confPtr(0.9)}},
		StartMs:  0, EndMs: 3000,
	})

	res := s.Submit(ChunkResult{
		ChunkID: "c2",
		Text:    "the weather today is quite nice.",
		Segments: []pipeline.STTSegment{
			{Text: "quite nice.", Confidence: confPtr(0.9)},
		},
		StartMs: 1000, EndMs: 4000,
	})

	require.True(t, res.Released)
	require.Equal(t, "the weather today is quite nice.", res.CleanText)
}

func TestSessionEmptyTextSkipsAndCounts(t *testing.T) {
	s := New(0.45)
	defer s.Close()

	res := s.Submit(ChunkResult{ChunkID: "c1", Text: "", StartMs: 0, EndMs: 3000})
	require.False(t, res.Released)

	stats := s.Stats()
	require.Equal(t, 1, stats.ChunksSkipped)
	require.Equal(t, 0, stats.ChunksProcessed)
}

func TestSessionLowConfidenceWithheld(t *testing.T) {
	s := New(0.95)
	defer s.Close()

	res := s.Submit(ChunkResult{
		ChunkID: "c1",
		Text:    "hello there.",
		Segments: []pipeline.STTSegment{
			{Text: "hello there.", Confidence: confPtr(0.5)},
		},
		StartMs: 0, EndMs: 3000,
	})

	require.False(t, res.Released)
}

func TestSessionResetClearsHistory(t *testing.T) {
	s := New(0.3)
	defer s.Close()

	s.Submit(ChunkResult{
		ChunkID:  "c1",
		Text:     "hello world.",
		Segments: []pipeline.STTSegment{{Text: "hello world.", Confidence: confPtr(0.9)}},
		StartMs:  0, EndMs: 3000,
	})

	s.Reset()

	res := s.Submit(ChunkResult{
		ChunkID:  "c2",
		Text:     "hello world.",
		Segments: []pipeline.STTSegment{{Text: "hello world.", Confidence: confPtr(0.9)}},
		StartMs:  0, EndMs: 3000,
	})
	require.True(t, res.Released)
	require.Equal(t, "hello world.", res.CleanText)
}

func TestSessionRepeatedWindowFullyAbsorbed(t *testing.T) {
	s := New(0.3)
	defer s.Close()

	frame := ChunkResult{
		ChunkID:  "c1",
		Text:     "the quick brown fox jumps",
		Segments: []pipeline.STTSegment{{Text: "the quick brown fox jumps", Confidence: confPtr(0.9)}},
		StartMs:  0, EndMs: 3000,
	}

	res1 := s.Submit(frame)
	require.False(t, res1.Released)

	frame.ChunkID = "c2"
	res2 := s.Submit(frame)
	require.False(t, res2.Released)
}
