// Package pipeline implements the per-track transcription pipeline:
// the transcriber adapter, incremental extractor, sentence buffer,
// cleanup pass and emitter (spec.md §4.5-§4.9, components C5-C9).
package pipeline

import "github.com/mattermost/mattermost/server/public/model"

// AudioChunk is a completed window handed from the audio package to
// the pipeline: metadata plus an immutable copy of the window's
// samples. Never aliases the ring it was copied from.
type AudioChunk struct {
	ID             string
	StartMs        int64
	EndMs          int64
	SampleRate     int
	Channels       int
	Format         string
	CaptureStartAt int64
	CaptureEndAt   int64
	Samples        []int16
}

// NewAudioChunk stamps an id and the s16le format tag onto a completed
// window.
func NewAudioChunk(startMs, endMs int64, sampleRate, channels int, samples []int16, captureStartAt, captureEndAt int64) AudioChunk {
	return AudioChunk{
		ID:             model.NewId(),
		StartMs:        startMs,
		EndMs:          endMs,
		SampleRate:     sampleRate,
		Channels:       channels,
		Format:         "s16le",
		CaptureStartAt: captureStartAt,
		CaptureEndAt:   captureEndAt,
		Samples:        samples,
	}
}

// STTSegment is one segment of an STT response (spec.md §6.2).
type STTSegment struct {
	Text       string
	Confidence *float64
	Start      *float64
	End        *float64
}

// STTResult is the normalized response of the transcriber adapter
// (C5), identical in shape regardless of backend.
type STTResult struct {
	Text     string
	Segments []STTSegment
}

// TranscriptSegment is the output unit of the pipeline (spec.md §3).
// Segments emitted by this core always carry IsFinal=true, Revision=0,
// Source="stt".
type TranscriptSegment struct {
	ID         string
	Text       string
	StartMs    int64
	EndMs      int64
	IsFinal    bool
	Revision   int
	Source     string
	Confidence *float64
	CreatedAt  int64
}

// TranscriptBatch envelopes one or more segments for delivery.
type TranscriptBatch struct {
	ID         string
	Segments   []TranscriptSegment
	ReceivedAt int64
}

// NewTranscriptBatch stamps a batch id onto a set of segments.
func NewTranscriptBatch(segments []TranscriptSegment, receivedAt int64) TranscriptBatch {
	return TranscriptBatch{
		ID:         model.NewId(),
		Segments:   segments,
		ReceivedAt: receivedAt,
	}
}

// ParticipantOptions carries the per-track attributes threaded through
// TrackContext (spec.md §3): language code, domain hint, terminology,
// prompt.
type ParticipantOptions struct {
	Language    string
	DomainHint  string
	Terminology []string
	Prompt      string
}

// Metrics is the payload of a "metrics" envelope (spec.md §6.4).
type Metrics struct {
	ChunkID    string
	LatencyMs  int64
	Confidence float64
	WERProxy   float64
	Timestamp  int64
}

// StatusLevel is the severity of a status envelope.
type StatusLevel string

const (
	StatusInfo  StatusLevel = "info"
	StatusWarn  StatusLevel = "warn"
	StatusError StatusLevel = "error"
)

// Status is the payload of a "status" envelope (spec.md §6.4).
type Status struct {
	Level     StatusLevel
	Message   string
	Timestamp int64
}
