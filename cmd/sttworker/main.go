// Command sttworker is the entry point of the real-time transcription
// job: it joins a call as an rtcd client, subscribes every voice track
// to its own ingestion pipeline (spec.md §4-§5), and relays transcripts,
// status and metrics back over the call's data channel.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/audio"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/config"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/correction"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/room"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/session"
	"github.com/mattermost/calls-live-transcript/cmd/sttworker/stt"
)

const (
	startTimeout  = 30 * time.Second
	stopTimeout   = 10 * time.Second
	frameChBuffer = 64
	logFileName   = "sttworker.log"
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		if source.File == "" {
			if pc, file, line, ok := runtime.Caller(7); ok {
				if f := runtime.FuncForPC(pc); f != nil {
					source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
					source.Line = line
				}
			}
		} else {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func dataDir() string {
	if d := os.Getenv("DATA_DIR"); d != "" {
		return d
	}
	return "/data"
}

func main() {
	trID := os.Getenv("TRANSCRIPTION_ID")

	logFile, err := os.Create(filepath.Join(dataDir(), logFileName))
	if err != nil {
		slog.Error("failed to create log file", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: slogReplaceAttr,
	})).With("trID", trID)
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()

	if err := cfg.IsValid(); err != nil {
		slog.Error("invalid config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	transcriber, destroy, err := newTranscriber(cfg)
	if err != nil {
		slog.Error("failed to create stt backend", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer destroy()

	var correctionClient pipeline.CorrectionClient
	if endpoint := os.Getenv("CORRECTION_ENDPOINT"); endpoint != "" {
		correctionClient = correction.New(endpoint, os.Getenv("CORRECTION_AUTH_TOKEN"), 30*time.Second)
	}

	sess := session.New(cfg.ConfidenceThreshold)

	apiClient := model.NewAPIv4Client(cfg.SiteURL)
	apiClient.SetToken(cfg.AuthToken)

	w := &worker{
		cfg:         cfg,
		transcriber: transcriber,
		correction:  correctionClient,
		session:     sess,
	}

	r, err := room.New(cfg, apiClient, w.onTrack)
	if err != nil {
		slog.Error("failed to create room", slog.String("err", err.Error()))
		os.Exit(1)
	}
	w.room = r

	slog.Info("starting sttworker")

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := r.Connect(ctx); err != nil {
		if jerr := r.ReportJobFailure(err.Error()); jerr != nil {
			slog.Error("failed to report job failure", slog.String("err", jerr.Error()))
		}
		slog.Error("failed to connect to room", slog.String("err", err.Error()))
		os.Exit(0)
	}

	if err := r.ReportJobStarted(); err != nil {
		slog.Error("failed to report job started", slog.String("err", err.Error()))
	}

	slog.Info("sttworker has started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("received signal, stopping sttworker")
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := r.Close(stopCtx); err != nil {
		slog.Error("failed to close room", slog.String("err", err.Error()))
		os.Exit(1)
	}

	slog.Info("sttworker has finished, exiting")
}

func newTranscriber(cfg config.Config) (pipeline.Transcriber, func(), error) {
	switch cfg.STTBackend {
	case config.STTBackendAzure:
		speechKey, _ := cfg.STTOptions["AZURE_SPEECH_KEY"].(string)
		speechRegion, _ := cfg.STTOptions["AZURE_SPEECH_REGION"].(string)
		backend, err := stt.NewAzureBackend(stt.AzureConfig{
			SpeechKey:    speechKey,
			SpeechRegion: speechRegion,
			DataDir:      dataDir(),
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to create azure backend: %w", err)
		}
		return backend, backend.Destroy, nil
	case config.STTBackendHTTP:
		endpoint, _ := cfg.STTOptions["ENDPOINT"].(string)
		return stt.NewHTTPBackend(endpoint, cfg.STTModel, cfg.STTTemperature, 30*time.Second), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("stt backend %q not implemented", cfg.STTBackend)
	}
}

// worker holds the process-global collaborators every per-track
// pipeline shares: the STT and correction clients, the owned Session
// and the room's broadcaster.
type worker struct {
	cfg         config.Config
	transcriber pipeline.Transcriber
	correction  pipeline.CorrectionClient
	session     *session.Session
	room        *room.Room
}

func (w *worker) onTrack(track room.Track, sessionID string, user *model.User) {
	log := slog.With(slog.String("trackID", track.ID()), slog.String("sessionID", sessionID))
	log.Debug("subscribing voice track")

	pl, err := pipeline.New(track.ID(), w.cfg.CallID, pipeline.Config{
		SampleRate:          w.cfg.SampleRate,
		WindowMs:            w.cfg.WindowMs,
		StrideMs:            w.cfg.StrideMs,
		AGCTargetRMS:        w.cfg.AGCTargetRMS,
		AGCMin:              w.cfg.AGCMin,
		AGCMax:              w.cfg.AGCMax,
		AGCSmoothing:        w.cfg.AGCSmoothing,
		VADWindowMs:         w.cfg.VADWindowMs,
		VADSensitivity:      w.cfg.VADSensitivity,
		SilenceRMSThreshold: w.cfg.SilenceRMSThreshold,
		STTModel:            w.cfg.STTModel,
		STTTemperature:      w.cfg.STTTemperature,
		Options:             w.resolveOptions(user),
	}, time.Now().UnixMilli(), w.transcriber, w.correction, w.room, w.session)
	if err != nil {
		log.Error("failed to create pipeline", slog.String("err", err.Error()))
		return
	}

	ctx := context.Background()
	frames := make(chan audio.Frame, frameChBuffer)

	go func() {
		if err := track.Frames(ctx, frames); err != nil {
			log.Debug("track reading loop exited", slog.String("err", err.Error()))
		}
		close(frames)
	}()

	for frame := range frames {
		if err := pl.Feed(ctx, frame); err != nil {
			log.Error("pipeline feed failed", slog.String("err", err.Error()))
		}
	}

	log.Debug("track processing finished")
}

func (w *worker) resolveOptions(user *model.User) pipeline.ParticipantOptions {
	resolved := w.cfg.Resolve(config.ParticipantOptions{Locale: user.Locale})
	return pipeline.ParticipantOptions{
		Language:    resolved.Language,
		DomainHint:  resolved.DomainHint,
		Terminology: resolved.Terminology,
		Prompt:      resolved.Prompt,
	}
}
