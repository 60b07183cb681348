package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mattermost/mattermost-plugin-calls/server/public"
)

const httpRequestTimeout = 10 * time.Second

func (r *Room) postJobStatus(status public.JobStatus) error {
	apiURL := fmt.Sprintf("%s/plugins/%s/bot/calls/%s/jobs/%s/status",
		r.apiURL, pluginID, r.cfg.CallID, r.cfg.TranscriptionID)

	payload, err := json.Marshal(&status)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), httpRequestTimeout)
	defer cancel()

	resp, err := r.apiClient.DoAPIRequestBytes(ctx, http.MethodPost, apiURL, payload, "")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return nil
}

// ReportJobFailure reports the transcription job as failed.
func (r *Room) ReportJobFailure(errMsg string) error {
	return r.postJobStatus(public.JobStatus{
		JobType: public.JobTypeTranscribing,
		Status:  public.JobStatusTypeFailed,
		Error:   errMsg,
	})
}

// ReportJobStarted reports the transcription job as started.
func (r *Room) ReportJobStarted() error {
	return r.postJobStatus(public.JobStatus{
		JobType: public.JobTypeTranscribing,
		Status:  public.JobStatusTypeStarted,
	})
}
