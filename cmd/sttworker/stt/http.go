package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
)

// HTTPBackend is the default STT collaborator (C5): a multipart POST
// of the WAV-encoded window, matching the wire contract of spec.md
// §6.2 exactly (model, response_format=verbose_json, temperature,
// optional language/prompt).
type HTTPBackend struct {
	endpoint    string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewHTTPBackend constructs a backend against endpoint (e.g.
// "http://localhost:9000/v1/audio/transcriptions").
func NewHTTPBackend(endpoint, model string, temperature float64, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type verboseJSONSegment struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
}

type verboseJSONResponse struct {
	Text     string               `json:"text"`
	Segments []verboseJSONSegment `json:"segments"`
}

// Transcribe implements pipeline.Transcriber.
func (b *HTTPBackend) Transcribe(ctx context.Context, chunk pipeline.AudioChunk, opts pipeline.ParticipantOptions) (pipeline.STTResult, error) {
	wav := EncodeWAV(chunk.Samples, chunk.SampleRate, chunk.Channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", chunk.ID+".wav")
	if err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: create form file: %w", pipeline.ErrTranscriptionFailure, err)
	}
	if _, err := fw.Write(wav); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: write wav payload: %w", pipeline.ErrTranscriptionFailure, err)
	}

	if err := mw.WriteField("model", b.model); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: write model field: %w", pipeline.ErrTranscriptionFailure, err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: write response_format field: %w", pipeline.ErrTranscriptionFailure, err)
	}
	if err := mw.WriteField("temperature", fmt.Sprintf("%v", b.temperature)); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: write temperature field: %w", pipeline.ErrTranscriptionFailure, err)
	}
	if opts.Language != "" {
		if err := mw.WriteField("language", opts.Language); err != nil {
			return pipeline.STTResult{}, fmt.Errorf("%w: write language field: %w", pipeline.ErrTranscriptionFailure, err)
		}
	}
	if opts.Prompt != "" {
		if err := mw.WriteField("prompt", opts.Prompt); err != nil {
			return pipeline.STTResult{}, fmt.Errorf("%w: write prompt field: %w", pipeline.ErrTranscriptionFailure, err)
		}
	}
	if err := mw.Close(); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: close multipart writer: %w", pipeline.ErrTranscriptionFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, &body)
	if err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: create request: %w", pipeline.ErrTranscriptionFailure, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: %w", pipeline.ErrTranscriptionFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: read response body: %w", pipeline.ErrTranscriptionFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return pipeline.STTResult{}, fmt.Errorf("%w: status %d: %s", pipeline.ErrTranscriptionFailure, resp.StatusCode, string(data))
	}

	var parsed verboseJSONResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return pipeline.STTResult{}, fmt.Errorf("%w: parse json response: %w", pipeline.ErrTranscriptionFailure, err)
	}

	segments := make([]pipeline.STTSegment, len(parsed.Segments))
	for i, s := range parsed.Segments {
		segments[i] = pipeline.STTSegment{Text: s.Text, Confidence: s.Confidence, Start: s.Start, End: s.End}
	}

	return pipeline.STTResult{Text: parsed.Text, Segments: segments}, nil
}
