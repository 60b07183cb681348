package room

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mattermost/mattermost-plugin-calls/server/public"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/config"
)

type middleware func(w http.ResponseWriter, r *http.Request) bool

func newTestRoom(t *testing.T, siteURL string) *Room {
	t.Helper()
	apiClient := model.NewAPIv4Client(siteURL)
	return &Room{
		cfg: config.Config{
			SiteURL:         siteURL,
			CallID:          "8w8jorhr7j83uqr6y1st894hqe",
			TranscriptionID: "67t5u6cmtfbb7jug739d43xa9e",
		},
		apiClient: apiClient,
		apiURL:    siteURL,
	}
}

func TestReportJobFailure(t *testing.T) {
	var middlewares []middleware

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, mw := range middlewares {
			if mw(w, r) {
				return
			}
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	r := newTestRoom(t, ts.URL)

	t.Run("request failure", func(t *testing.T) {
		middlewares = []middleware{
			func(w http.ResponseWriter, r *http.Request) bool {
				if r.URL.Path != "/plugins/com.mattermost.calls/bot/calls/8w8jorhr7j83uqr6y1st894hqe/jobs/67t5u6cmtfbb7jug739d43xa9e/status" {
					w.WriteHeader(404)
					return true
				}
				w.WriteHeader(400)
				fmt.Fprintln(w, `{"message": "server error"}`)
				return true
			},
		}
		err := r.ReportJobFailure("")
		require.Error(t, err)
	})

	t.Run("success", func(t *testing.T) {
		var errMsg string
		middlewares = []middleware{
			func(w http.ResponseWriter, r *http.Request) bool {
				if r.URL.Path != "/plugins/com.mattermost.calls/bot/calls/8w8jorhr7j83uqr6y1st894hqe/jobs/67t5u6cmtfbb7jug739d43xa9e/status" {
					w.WriteHeader(404)
					return true
				}

				var status public.JobStatus
				if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
					w.WriteHeader(400)
					return true
				}

				require.Equal(t, public.JobTypeTranscribing, status.JobType)
				require.Equal(t, public.JobStatusTypeFailed, status.Status)
				errMsg = status.Error

				w.WriteHeader(200)
				return true
			},
		}
		err := r.ReportJobFailure("some error")
		require.NoError(t, err)
		require.Equal(t, "some error", errMsg)
	})
}

func TestReportJobStarted(t *testing.T) {
	var gotStatus public.JobStatusType

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var status public.JobStatus
		require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
		gotStatus = status.Status
		w.WriteHeader(200)
	}))
	defer ts.Close()

	r := newTestRoom(t, ts.URL)
	require.NoError(t, r.ReportJobStarted())
	require.Equal(t, public.JobStatusTypeStarted, gotStatus)
}
