// Package room wires the pipeline to the call: an rtcd client carries
// voice tracks in and transcript/status/metrics envelopes out over a
// single websocket event, mirroring the teacher's call package but
// generalized from baked-in caption/metric message types to the
// envelope shape of spec.md §6.4.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/rtcd/client"
	"github.com/pion/webrtc/v4"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/config"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
)

const (
	pluginID = "com.mattermost.calls"
	wsEvCore = "custom_" + pluginID + "_live_transcript"
)

// APIClient is the narrow slice of the Mattermost API client the room
// needs, so job status reporting can be unit tested against a fake.
type APIClient interface {
	DoAPIRequestBytes(ctx context.Context, method, url string, data []byte, etag string) (*http.Response, error)
}

// envelope is the single outbound wire shape of spec.md §6.4: every
// message on wsEvCore carries a type discriminator and its payload.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type transcriptPayload struct {
	Type  string                   `json:"type"`
	Batch pipeline.TranscriptBatch `json:"batch"`
}

// TrackHandler is invoked once per new voice track; it owns the
// lifetime of that track's pipeline.
type TrackHandler func(track Track, sessionID string, user *model.User)

// Room owns the rtcd client connection for one call and fans incoming
// voice tracks out to a TrackHandler, while exposing pipeline.Broadcaster
// over the call's data channel.
type Room struct {
	cfg       config.Config
	client    *client.Client
	apiClient APIClient
	apiURL    string

	onTrack TrackHandler

	doneCh   chan struct{}
	doneOnce sync.Once
	errCh    chan error

	tracksWg sync.WaitGroup
}

// New constructs a Room and its rtcd client, without connecting.
func New(cfg config.Config, apiClient APIClient, onTrack TrackHandler) (*Room, error) {
	rtcdClient, err := client.New(client.Config{
		SiteURL:   cfg.SiteURL,
		AuthToken: cfg.AuthToken,
		ChannelID: cfg.CallID,
		JobID:     cfg.TranscriptionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rtcd client: %w", err)
	}

	return &Room{
		cfg:       cfg,
		client:    rtcdClient,
		apiClient: apiClient,
		apiURL:    cfg.SiteURL,
		onTrack:   onTrack,
		doneCh:    make(chan struct{}),
		errCh:     make(chan error, 1),
	}, nil
}

// Connect registers the handlers the pipeline depends on and blocks
// until the RTC connection is established or ctx is cancelled.
func (r *Room) Connect(ctx context.Context) error {
	var connectOnce sync.Once
	connectedCh := make(chan struct{})

	if err := r.client.On(client.RTCConnectEvent, func(_ any) error {
		connectOnce.Do(func() { close(connectedCh) })
		return nil
	}); err != nil {
		return fmt.Errorf("failed to register RTCConnectEvent: %w", err)
	}

	if err := r.client.On(client.RTCTrackEvent, r.handleTrack); err != nil {
		return fmt.Errorf("failed to register RTCTrackEvent: %w", err)
	}

	if err := r.client.On(client.CloseEvent, func(_ any) error {
		go r.shutdown()
		return nil
	}); err != nil {
		return fmt.Errorf("failed to register CloseEvent: %w", err)
	}

	if err := r.client.On(client.WSJobStopEvent, func(ctx any) error {
		jobID, _ := ctx.(string)
		if jobID == r.cfg.TranscriptionID {
			slog.Info("received job stop event, exiting")
			go r.client.Close()
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to register WSJobStopEvent: %w", err)
	}

	if err := r.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	select {
	case <-connectedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) handleTrack(ctx any) error {
	m, ok := ctx.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected context type")
	}

	wt, ok := m["track"].(webrtcTrackRemote)
	if !ok {
		return fmt.Errorf("unexpected track type")
	}

	trackID := wt.ID()
	trackType, sessionID, err := client.ParseTrackID(trackID)
	if err != nil {
		return fmt.Errorf("failed to parse track ID: %w", err)
	}
	if trackType != client.TrackTypeVoice {
		slog.Debug("ignoring non voice track", slog.String("trackID", trackID))
		return nil
	}
	if mt := wt.Codec().MimeType; mt != webrtc.MimeTypeOpus {
		slog.Warn("ignoring unsupported mimetype for track", slog.String("mimeType", mt), slog.String("trackID", trackID))
		return nil
	}

	user, err := r.getUserForSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get user for session: %w", err)
	}

	receiver, _ := m["receiver"].(rtpReceiver)

	r.tracksWg.Add(1)
	go func() {
		defer r.tracksWg.Done()
		defer func() {
			if receiver != nil {
				if err := receiver.Stop(); err != nil {
					slog.Error("failed to stop receiver for track",
						slog.String("trackID", trackID), slog.String("err", err.Error()))
				}
			}
		}()
		r.onTrack(NewRTPTrack(wt), sessionID, user)
	}()

	return nil
}

func (r *Room) getUserForSession(sessionID string) (*model.User, error) {
	// No lookup is made: the returned user carries only the session ID
	// as its Id, with no locale or display name, so per-participant
	// options resolve to the session defaults.
	return &model.User{Id: sessionID}, nil
}

// Close tears down the rtcd connection and waits for every track
// goroutine this Room spawned to finish.
func (r *Room) Close(ctx context.Context) error {
	if err := r.client.Close(); err != nil {
		slog.Error("failed to close client", slog.String("err", err.Error()))
	}

	select {
	case <-r.doneCh:
		return <-r.errCh
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed once the room has fully shut
// down, mirroring the teacher's Transcriber.Done.
func (r *Room) Done() <-chan struct{} {
	return r.doneCh
}

// Err returns the error recorded by shutdown, if any, without
// blocking, mirroring the teacher's Transcriber.Err.
func (r *Room) Err() error {
	select {
	case err := <-r.errCh:
		return err
	default:
		return nil
	}
}

func (r *Room) shutdown() {
	r.doneOnce.Do(func() {
		r.tracksWg.Wait()
		r.errCh <- nil
		close(r.doneCh)
	})
}

// BroadcastTranscript implements pipeline.Broadcaster.
func (r *Room) BroadcastTranscript(source string, batch pipeline.TranscriptBatch) error {
	return r.send(envelope{
		Type: "transcript",
		Payload: transcriptPayload{
			Type:  source,
			Batch: batch,
		},
	}, true)
}

// BroadcastStatus implements pipeline.Broadcaster.
func (r *Room) BroadcastStatus(status pipeline.Status) error {
	return r.send(envelope{Type: "status", Payload: status}, false)
}

// BroadcastMetrics implements pipeline.Broadcaster.
func (r *Room) BroadcastMetrics(metrics pipeline.Metrics) error {
	return r.send(envelope{Type: "metrics", Payload: metrics}, false)
}

func (r *Room) send(env envelope, reliable bool) error {
	if err := r.client.SendWs(wsEvCore, env, reliable); err != nil {
		return fmt.Errorf("failed to send %s envelope: %w", env.Type, err)
	}
	return nil
}

// rtpReceiver is the narrow slice of *webrtc.RTPReceiver handleTrack
// needs, matching the teacher's approach of decoding the generic event
// context through small local interfaces.
type rtpReceiver interface {
	Stop() error
}
