package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/audio"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/session"
)

// Config holds the tunables a Pipeline needs once per track, read from
// the process-wide config and layered with per-participant overrides
// (spec.md §9's "global configuration" design note).
type Config struct {
	SampleRate int
	WindowMs   int
	StrideMs   int

	AGCTargetRMS float64
	AGCMin       float64
	AGCMax       float64
	AGCSmoothing float64

	VADWindowMs         int
	VADSensitivity      float64
	SilenceRMSThreshold float64

	STTModel       string
	STTTemperature float64

	Options ParticipantOptions
}

// Pipeline drives one subscribed audio track through C1-C9. It owns
// no cross-track state: everything shared across tracks lives in the
// Session it's handed.
type Pipeline struct {
	trackID string
	cfg     Config

	sampleBuffer *audio.SampleBuffer
	agc          *audio.AGC
	vad          *audio.VADGate
	window       *audio.SlidingWindow

	transcriber Transcriber
	correction  CorrectionClient
	broadcaster Broadcaster
	session     *session.Session

	roomName string
}

// New constructs a Pipeline for one track. startMs seeds the first
// window's timestamp (spec.md §4.4).
func New(trackID, roomName string, cfg Config, startMs int64, transcriber Transcriber, correction CorrectionClient, broadcaster Broadcaster, sess *session.Session) (*Pipeline, error) {
	win, err := audio.NewSlidingWindow(cfg.SampleRate, cfg.WindowMs, cfg.StrideMs, startMs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Pipeline{
		trackID:      trackID,
		roomName:     roomName,
		cfg:          cfg,
		sampleBuffer: audio.NewSampleBuffer(cfg.SampleRate, trackID),
		agc:          audio.NewAGC(cfg.AGCTargetRMS, cfg.AGCMin, cfg.AGCMax, cfg.AGCSmoothing),
		vad:          audio.NewVADGate(cfg.WindowMs, cfg.VADWindowMs, cfg.VADSensitivity, cfg.SilenceRMSThreshold),
		window:       win,
		transcriber:  transcriber,
		correction:   correction,
		broadcaster:  broadcaster,
		session:      sess,
	}, nil
}

// Feed processes one raw frame: C1 normalization, C2 gain, C4
// windowing, and for every window that closes, the full C3-C9 chain.
// Processing is strictly sequential, matching spec.md §5: a new frame
// is never processed while a chunk from the same track is still being
// transcribed.
func (p *Pipeline) Feed(ctx context.Context, frame audio.Frame) error {
	samples, err := p.sampleBuffer.Process(frame)
	if err != nil {
		slog.Warn("dropping frame with unsupported sample format",
			slog.String("trackID", p.trackID), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %w", ErrUnsupportedSampleFormat, err)
	}

	samples = p.agc.Apply(samples)

	windows, err := p.window.Append(samples)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWindowOverflow, err)
	}

	for _, w := range windows {
		now := time.Now().UnixMilli()
		chunk := NewAudioChunk(w.StartMs, w.EndMs, p.cfg.SampleRate, 1, w.Samples, now, now)
		p.processChunk(ctx, chunk)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

// processChunk runs C3-C9 for one completed window. Failures never
// propagate past this boundary: they are logged and turned into
// status envelopes, per spec.md §7's single-catch propagation rule.
func (p *Pipeline) processChunk(ctx context.Context, chunk AudioChunk) {
	vadResult := p.vad.Evaluate(chunk.Samples)
	if !vadResult.Speech {
		p.emitStatus(StatusInfo, fmt.Sprintf("chunk %s discarded: no speech detected (score=%.3f)", chunk.ID, vadResult.Score))
		p.session.Submit(session.ChunkResult{ChunkID: chunk.ID, Text: "", StartMs: chunk.StartMs, EndMs: chunk.EndMs})
		return
	}

	start := time.Now()
	result, err := p.transcriber.Transcribe(ctx, chunk, p.cfg.Options)
	if err != nil {
		p.emitStatus(StatusError, fmt.Sprintf("transcription failed for chunk %s: %s", chunk.ID, err.Error()))
		slog.Error("transcription failed", slog.String("trackID", p.trackID), slog.String("chunkID", chunk.ID), slog.String("err", err.Error()))
		p.session.Submit(session.ChunkResult{ChunkID: chunk.ID, Text: "", StartMs: chunk.StartMs, EndMs: chunk.EndMs})
		return
	}
	latency := time.Since(start)

	if result.Text == "" {
		p.session.Submit(session.ChunkResult{ChunkID: chunk.ID, Text: "", StartMs: chunk.StartMs, EndMs: chunk.EndMs})
		return
	}

	segments := make([]STTSegment, len(result.Segments))
	copy(segments, result.Segments)

	emit := p.session.Submit(session.ChunkResult{
		ChunkID:  chunk.ID,
		Text:     result.Text,
		Segments: segments,
		StartMs:  chunk.StartMs,
		EndMs:    chunk.EndMs,
	})
	if !emit.Released {
		return
	}

	p.emit(ctx, chunk, emit, latency)
}

func (p *Pipeline) emit(ctx context.Context, chunk AudioChunk, emit session.EmitResult, latency time.Duration) {
	batch := NewTranscriptBatch([]TranscriptSegment{emit.Segment}, time.Now().UnixMilli())

	if err := p.broadcaster.BroadcastTranscript("stt", batch); err != nil {
		slog.Error("failed to broadcast transcript", slog.String("trackID", p.trackID), slog.String("err", err.Error()))
	}

	werProxy := WERProxy(emit.RawText, emit.CleanText)
	confidence := 0.0
	if emit.Segment.Confidence != nil {
		confidence = *emit.Segment.Confidence
	}
	metrics := Metrics{
		ChunkID:    chunk.ID,
		LatencyMs:  latency.Milliseconds(),
		Confidence: confidence,
		WERProxy:   werProxy,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := p.broadcaster.BroadcastMetrics(metrics); err != nil {
		slog.Error("failed to broadcast metrics", slog.String("trackID", p.trackID), slog.String("err", err.Error()))
	}

	if p.correction == nil {
		return
	}

	req := CorrectionRequest{
		RequestID:   chunk.ID,
		RoomName:    p.roomName,
		Batch:       batch,
		Context:     emit.Context,
		Language:    p.cfg.Options.Language,
		DomainHint:  p.cfg.Options.DomainHint,
		Terminology: p.cfg.Options.Terminology,
	}
	if err := p.correction.Forward(ctx, req); err != nil {
		p.emitStatus(StatusError, fmt.Sprintf("correction request failed for chunk %s: %s", chunk.ID, err.Error()))
		slog.Error("correction forward failed", slog.String("trackID", p.trackID), slog.String("err", err.Error()))
	}
}

func (p *Pipeline) emitStatus(level StatusLevel, message string) {
	if err := p.broadcaster.BroadcastStatus(Status{Level: level, Message: message, Timestamp: time.Now().UnixMilli()}); err != nil {
		slog.Error("failed to broadcast status", slog.String("trackID", p.trackID), slog.String("err", err.Error()))
	}
}
