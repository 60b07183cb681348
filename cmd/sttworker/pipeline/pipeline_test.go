package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/audio"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/session"
)

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, chunk AudioChunk, opts ParticipantOptions) (STTResult, error) {
	return STTResult{Text: f.text, Segments: []STTSegment{{Text: f.text, Confidence: conf(0.9)}}}, nil
}

type fakeBroadcaster struct {
	transcripts []TranscriptBatch
	statuses    []Status
	metrics     []Metrics
}

func (f *fakeBroadcaster) BroadcastTranscript(source string, batch TranscriptBatch) error {
	f.transcripts = append(f.transcripts, batch)
	return nil
}

func (f *fakeBroadcaster) BroadcastStatus(status Status) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeBroadcaster) BroadcastMetrics(metrics Metrics) error {
	f.metrics = append(f.metrics, metrics)
	return nil
}

type fakeCorrection struct {
	requests []CorrectionRequest
}

func (f *fakeCorrection) Forward(ctx context.Context, req CorrectionRequest) error {
	f.requests = append(f.requests, req)
	return nil
}

func newTestPipeline(t *testing.T, text string) (*Pipeline, *fakeBroadcaster, *fakeCorrection, *session.Session) {
	t.Helper()

	cfg := Config{
		SampleRate:          16000,
		WindowMs:            3000,
		StrideMs:            1000,
		AGCTargetRMS:        1500,
		AGCMin:              0.5,
		AGCMax:              3,
		AGCSmoothing:        0.2,
		VADWindowMs:         600,
		VADSensitivity:      0.01,
		SilenceRMSThreshold: 1,
	}

	broadcaster := &fakeBroadcaster{}
	correction := &fakeCorrection{}
	sess := session.New(0.3)

	p, err := New("track1", "room1", cfg, 0, &fakeTranscriber{text: text}, correction, broadcaster, sess)
	require.NoError(t, err)

	return p, broadcaster, correction, sess
}

func loudFrame(n int) audio.Frame {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 5000
		} else {
			samples[i] = -5000
		}
	}
	return audio.Frame{
		SampleRate:        16000,
		Channels:          1,
		SamplesPerChannel: uint32(n),
		Data:              audio.EncodeS16LE(samples),
	}
}

func TestPipelineEmitsOnFullWindow(t *testing.T) {
	p, broadcaster, correction, sess := newTestPipeline(t, "hello there.")
	defer sess.Close()

	err := p.Feed(context.Background(), loudFrame(16000*3))
	require.NoError(t, err)

	require.Len(t, broadcaster.transcripts, 1)
	require.Equal(t, "hello there.", broadcaster.transcripts[0].Segments[0].Text)
	require.Len(t, broadcaster.metrics, 1)
	require.Len(t, correction.requests, 1)
}

func TestPipelineSilentWindowEmitsNoTranscript(t *testing.T) {
	p, broadcaster, correction, sess := newTestPipeline(t, "hello there.")
	defer sess.Close()

	silence := audio.Frame{
		SampleRate:        16000,
		Channels:          1,
		SamplesPerChannel: 16000 * 3,
		Data:              audio.EncodeS16LE(make([]int16, 16000*3)),
	}

	err := p.Feed(context.Background(), silence)
	require.NoError(t, err)

	require.Empty(t, broadcaster.transcripts)
	require.Empty(t, correction.requests)
	require.NotEmpty(t, broadcaster.statuses)
}

func TestPipelineUnsupportedChannelLayout(t *testing.T) {
	p, _, _, sess := newTestPipeline(t, "hello there.")
	defer sess.Close()

	frame := audio.Frame{
		SampleRate:        16000,
		Channels:          3,
		SamplesPerChannel: 100,
		Data:              audio.EncodeS16LE(make([]int16, 300)),
	}

	err := p.Feed(context.Background(), frame)
	require.ErrorIs(t, err, ErrUnsupportedSampleFormat)
}
