// Package correction implements the narrow boundary to the external
// correction LLM collaborator (spec.md §6.3): it POSTs the released
// batch plus recent context and drains the service's text/event-stream
// response to completion without interpreting deltas. The correction
// service is responsible for forwarding its own deltas to the data
// channel; this client only waits for the request to finish, the same
// "fire a request, wait for it to complete" shape as the teacher's
// postToAI.
package correction

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
)

// Client POSTs to a correction service endpoint and drains its SSE
// response, implementing pipeline.CorrectionClient.
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// New constructs a correction Client against endpoint.
func New(endpoint, authToken string, timeout time.Duration) *Client {
	return &Client{
		endpoint:  endpoint,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type requestPayload struct {
	RequestID        string                       `json:"requestId"`
	RoomName         string                       `json:"roomName"`
	TargetIdentities []string                     `json:"targetIdentities,omitempty"`
	Batch            pipeline.TranscriptBatch     `json:"batch"`
	Context          []pipeline.TranscriptSegment `json:"context"`
	Language         string                       `json:"language,omitempty"`
	DomainHint       string                       `json:"domainHint,omitempty"`
	Terminology      []string                     `json:"terminology,omitempty"`
}

// Forward implements pipeline.CorrectionClient. It blocks until the
// response body — a text/event-stream — is read to completion, per
// spec.md §5's suspension point; it never interprets the deltas it
// reads, and a failed request never blocks the transcript path because
// the caller treats its error as non-fatal.
func (c *Client) Forward(ctx context.Context, req pipeline.CorrectionRequest) error {
	payload := requestPayload{
		RequestID:        req.RequestID,
		RoomName:         req.RoomName,
		TargetIdentities: req.TargetIdentities,
		Batch:            req.Batch,
		Context:          req.Context,
		Language:         req.Language,
		DomainHint:       req.DomainHint,
		Terminology:      req.Terminology,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %w", pipeline.ErrCorrectionFailure, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", pipeline.ErrCorrectionFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrCorrectionFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", pipeline.ErrCorrectionFailure, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		// Deltas are intentionally not parsed; the correction service
		// broadcasts them on its own. Draining the stream releases the
		// connection once the service is done.
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading event stream: %w", pipeline.ErrCorrectionFailure, err)
	}

	return nil
}
