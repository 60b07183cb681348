package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
)

// AzureBackend adapts the Azure Cognitive Services speech SDK to the
// pipeline.Transcriber boundary: each chunk is submitted as its own
// short-lived continuous-recognition session, and every recognized
// result is normalized into an STTSegment, with the concatenation of
// their text as STTResult.Text.
type AzureBackend struct {
	cfg          AzureConfig
	speechConfig *speech.SpeechConfig
}

// AzureConfig configures the Azure backend, grounded on the teacher's
// SpeechRecognizerConfig.
type AzureConfig struct {
	SpeechKey    string
	SpeechRegion string
	DataDir      string
}

// IsValid mirrors the teacher's SpeechRecognizerConfig.IsValid.
func (c AzureConfig) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("invalid SpeechKey: should not be empty")
	}
	if c.SpeechRegion == "" {
		return fmt.Errorf("invalid SpeechRegion: should not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("invalid DataDir: should not be empty")
	}
	return nil
}

// NewAzureBackend constructs the shared speech.SpeechConfig once; each
// Transcribe call spins up its own recognizer against it, the same way
// the teacher's Transcribe method re-initializes per batch.
func NewAzureBackend(cfg AzureConfig) (*AzureBackend, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	speechConfig, err := speech.NewSpeechConfigFromSubscription(cfg.SpeechKey, cfg.SpeechRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech config: %w", err)
	}
	if err := speechConfig.SetProperty(common.SpeechLogFilename, filepath.Join(cfg.DataDir, "azure.log")); err != nil {
		return nil, fmt.Errorf("failed to set log property: %w", err)
	}

	return &AzureBackend{cfg: cfg, speechConfig: speechConfig}, nil
}

// Transcribe implements pipeline.Transcriber.
func (b *AzureBackend) Transcribe(ctx context.Context, chunk pipeline.AudioChunk, opts pipeline.ParticipantOptions) (pipeline.STTResult, error) {
	audioStream, err := audio.CreatePushAudioInputStream()
	if err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: create audio stream: %w", pipeline.ErrTranscriptionFailure, err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(audioStream)
	if err != nil {
		audioStream.CloseStream()
		return pipeline.STTResult{}, fmt.Errorf("%w: create audio config: %w", pipeline.ErrTranscriptionFailure, err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(b.speechConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		audioStream.CloseStream()
		return pipeline.STTResult{}, fmt.Errorf("%w: create recognizer: %w", pipeline.ErrTranscriptionFailure, err)
	}
	defer func() {
		audioStream.CloseStream()
		audioConfig.Close()
		recognizer.Close()
	}()

	resultsCh := make(chan speech.SpeechRecognitionResult, 4)
	errCh := make(chan error, 1)
	eosCh := make(chan struct{})

	recognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		if event.Result.Reason == common.NoMatch || len(event.Result.Text) == 0 {
			return
		}
		resultsCh <- event.Result
	})
	recognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		if event.Reason == common.EndOfStream {
			close(eosCh)
		} else if event.Reason == common.Error {
			errCh <- errors.New(event.ErrorDetails)
		}
	})

	if err := <-recognizer.StartContinuousRecognitionAsync(); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: start recognizer: %w", pipeline.ErrTranscriptionFailure, err)
	}
	defer func() {
		if err := <-recognizer.StopContinuousRecognitionAsync(); err != nil {
			slog.Error("failed to stop azure recognizer", slog.String("err", err.Error()))
		}
	}()

	wav := EncodeWAV(chunk.Samples, chunk.SampleRate, chunk.Channels)
	if err := audioStream.Write(wav); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: write audio data: %w", pipeline.ErrTranscriptionFailure, err)
	}
	audioStream.CloseStream()

	windowDuration := time.Duration(chunk.EndMs-chunk.StartMs) * time.Millisecond
	timeoutCh := time.After(maxDuration(windowDuration*2, 10*time.Second))

	var segments []pipeline.STTSegment
	for {
		select {
		case <-ctx.Done():
			return pipeline.STTResult{}, fmt.Errorf("%w: %w", pipeline.ErrTranscriptionFailure, ctx.Err())
		case result := <-resultsCh:
			start := result.Offset.Seconds() * 1000
			end := start + result.Duration.Seconds()*1000
			segments = append(segments, pipeline.STTSegment{Text: result.Text, Start: &start, End: &end})
		case <-timeoutCh:
			return pipeline.STTResult{}, fmt.Errorf("%w: timed out waiting for azure transcription", pipeline.ErrTranscriptionFailure)
		case err := <-errCh:
			return pipeline.STTResult{}, fmt.Errorf("%w: %w", pipeline.ErrTranscriptionFailure, err)
		case <-eosCh:
			return pipeline.STTResult{Text: joinSegmentText(segments), Segments: segments}, nil
		}
	}
}

func joinSegmentText(segments []pipeline.STTSegment) string {
	var out string
	for i, s := range segments {
		if i > 0 {
			out += " "
		}
		out += s.Text
	}
	return out
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// Destroy releases the shared speech config.
func (b *AzureBackend) Destroy() {
	if b.speechConfig != nil {
		b.speechConfig.Close()
	}
}
