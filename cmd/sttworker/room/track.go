package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/audio"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/opus"
)

const (
	trackSampleRate = 48000 // Opus's fixed decode rate for WebRTC voice tracks.
	trackChannels   = 1
	trackFrameMs    = 20
	trackFrameSize  = trackFrameMs * trackSampleRate / 1000
)

// webrtcTrackRemote is the narrow slice of *webrtc.TrackRemote the room
// package needs, mirroring the teacher's local trackRemote interface
// in call/interfaces.go.
type webrtcTrackRemote interface {
	ID() string
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Track is the boundary between a subscribed voice track and the
// ingestion pipeline: a stream of normalized-format audio.Frame
// values, one per received RTP packet.
type Track interface {
	ID() string
	Frames(ctx context.Context, out chan<- audio.Frame) error
}

// RTPTrack decodes a remote Opus voice track into PCM frames, adapted
// from the teacher's processLiveTrack RTP read loop: it trades the
// record-to-OGG path for direct per-packet decode, since live
// transcription has no use for the archival file.
type RTPTrack struct {
	track webrtcTrackRemote
	dec   *opus.Decoder
}

// NewRTPTrack constructs a Track from a received remote track. The
// caller is responsible for verifying the track carries Opus audio
// before calling this (see Room.handleTrack).
func NewRTPTrack(track webrtcTrackRemote) *RTPTrack {
	return &RTPTrack{track: track}
}

// ID returns the underlying track ID (rtcd's "<type>_<sessionID>").
func (t *RTPTrack) ID() string {
	return t.track.ID()
}

// Frames reads RTP packets until the track ends or ctx is cancelled,
// decoding each Opus packet and pushing a Frame. It never blocks
// indefinitely on out: a cancelled ctx ends the wait for a send.
func (t *RTPTrack) Frames(ctx context.Context, out chan<- audio.Frame) error {
	dec, err := opus.NewDecoder(trackSampleRate, trackChannels)
	if err != nil {
		return fmt.Errorf("failed to create opus decoder: %w", err)
	}
	t.dec = dec
	defer func() {
		if err := t.dec.Destroy(); err != nil {
			slog.Error("failed to destroy opus decoder",
				slog.String("trackID", t.ID()), slog.String("err", err.Error()))
		}
	}()

	for {
		pkt, _, readErr := t.track.ReadRTP()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read RTP packet: %w", readErr)
		}

		if len(pkt.Payload) == 0 {
			continue
		}

		pcm, err := t.dec.Decode(pkt.Payload, trackFrameSize)
		if err != nil {
			slog.Error("failed to decode opus packet",
				slog.String("trackID", t.ID()), slog.String("err", err.Error()))
			continue
		}

		frame := audio.Frame{
			SampleRate:        trackSampleRate,
			Channels:          trackChannels,
			SamplesPerChannel: uint32(len(pcm) / 2),
			Data:              pcm,
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
