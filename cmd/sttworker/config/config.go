package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// defaults, one per tunable in the external interface.
const (
	SampleRateDefault           = 16000
	ChannelsDefault             = 1
	WindowMsDefault             = 3000
	StrideMsDefault             = 1000
	STTTemperatureDefault       = 0
	AGCTargetRMSDefault         = 1500
	AGCMinDefault               = 0.5
	AGCMaxDefault               = 3
	AGCSmoothingDefault         = 0.2
	VADWindowMsDefault          = 600
	VADSensitivityDefault       = 0.5
	SilenceRMSThresholdDefault  = 600
	ConfidenceThresholdDefault  = 0.45
)

// STTBackend selects which external speech-to-text collaborator the
// Transcriber Adapter (C5) talks to.
type STTBackend string

const (
	STTBackendHTTP  STTBackend = "http"
	STTBackendAzure STTBackend = "azure"
)

func (b STTBackend) IsValid() bool {
	switch b {
	case STTBackendHTTP, STTBackendAzure:
		return true
	default:
		return false
	}
}

// Config holds every process-global tunable, read once at startup and
// held immutable by the pipeline for the lifetime of the session. Per
// participant overrides are layered on top of this base when a track is
// subscribed (see ParticipantOptions).
type Config struct {
	// wiring, needed to reach the room/STT/correction collaborators.
	SiteURL         string
	CallID          string
	SessionID       string
	TranscriptionID string
	AuthToken       string

	SampleRate int
	Channels   int
	WindowMs   int
	StrideMs   int

	STTBackend      STTBackend
	STTOptions      map[string]any
	STTModel        string
	STTTemperature  float64
	STTLanguage     string

	AGCTargetRMS  float64
	AGCMin        float64
	AGCMax        float64
	AGCSmoothing  float64

	VADWindowMs         int
	VADSensitivity      float64
	SilenceRMSThreshold float64

	ConfidenceThreshold float64

	DefaultDomainHint   string
	DefaultTerminology  []string
	DefaultPrompt       string
}

// ParticipantOptions are the per-track overrides named by spec.md's
// TrackContext: language code, domain hint, terminology list and
// prompt string. Zero values mean "use the session default".
type ParticipantOptions struct {
	Locale       string
	DomainHint   string
	Terminology  []string
	Prompt       string
}

// Resolve merges participant-level overrides onto the session config,
// normalizing the locale to the supported STT language set (§6.2).
func (cfg Config) Resolve(opts ParticipantOptions) ResolvedOptions {
	r := ResolvedOptions{
		Language:    NormalizeLanguage(opts.Locale),
		DomainHint:  cfg.DefaultDomainHint,
		Terminology: cfg.DefaultTerminology,
		Prompt:      cfg.DefaultPrompt,
	}
	if r.Language == "" {
		r.Language = NormalizeLanguage(cfg.STTLanguage)
	}
	if opts.DomainHint != "" {
		r.DomainHint = opts.DomainHint
	}
	if len(opts.Terminology) > 0 {
		r.Terminology = opts.Terminology
	}
	if opts.Prompt != "" {
		r.Prompt = opts.Prompt
	}
	return r
}

// ResolvedOptions is the fully merged, per-track view handed to the
// Transcriber Adapter for every window.
type ResolvedOptions struct {
	Language    string
	DomainHint  string
	Terminology []string
	Prompt      string
}

func (cfg Config) IsValidURL() error {
	if cfg.SiteURL == "" {
		return fmt.Errorf("SiteURL cannot be empty")
	}
	u, err := url.Parse(cfg.SiteURL)
	if err != nil {
		return fmt.Errorf("SiteURL parsing failed: %w", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SiteURL parsing failed: invalid scheme %q", u.Scheme)
	}
	return nil
}

func (cfg Config) IsValid() error {
	if err := cfg.IsValidURL(); err != nil {
		return err
	}

	if cfg.CallID == "" {
		return fmt.Errorf("CallID cannot be empty")
	}
	if cfg.TranscriptionID == "" {
		return fmt.Errorf("TranscriptionID cannot be empty")
	}

	if !cfg.STTBackend.IsValid() {
		return fmt.Errorf("STTBackend value is not valid")
	}

	if cfg.SampleRate <= 0 {
		return fmt.Errorf("SampleRate should be a positive number")
	}
	if cfg.Channels != 1 {
		return fmt.Errorf("Channels should be 1 (canonical mono)")
	}
	if cfg.WindowMs <= 0 {
		return fmt.Errorf("WindowMs should be a positive number")
	}
	if cfg.StrideMs <= 0 {
		return fmt.Errorf("StrideMs should be a positive number")
	}

	if cfg.AGCMin <= 0 || cfg.AGCMax < cfg.AGCMin {
		return fmt.Errorf("AGCMin/AGCMax are invalid")
	}
	if cfg.AGCSmoothing < 0 || cfg.AGCSmoothing > 1 {
		return fmt.Errorf("AGCSmoothing should be in the range [0, 1]")
	}

	if cfg.VADWindowMs <= 0 {
		return fmt.Errorf("VADWindowMs should be a positive number")
	}
	if cfg.VADSensitivity < 0 || cfg.VADSensitivity > 1 {
		return fmt.Errorf("VADSensitivity should be in the range [0, 1]")
	}

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return fmt.Errorf("ConfidenceThreshold should be in the range [0, 1]")
	}

	// capacity/stride consistency, per spec.md invariant 3: both are
	// computed once at construction and must divide the millisecond
	// tunables exactly onto a whole sample count.
	if (cfg.SampleRate*cfg.WindowMs)%1000 != 0 {
		return fmt.Errorf("SampleRate * WindowMs must be a multiple of 1000")
	}
	if (cfg.SampleRate*cfg.StrideMs)%1000 != 0 {
		return fmt.Errorf("SampleRate * StrideMs must be a multiple of 1000")
	}

	return nil
}

func (cfg *Config) SetDefaults() {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRateDefault
	}
	if cfg.Channels == 0 {
		cfg.Channels = ChannelsDefault
	}
	if cfg.WindowMs == 0 {
		cfg.WindowMs = WindowMsDefault
	}
	if cfg.StrideMs == 0 {
		cfg.StrideMs = StrideMsDefault
	}
	if cfg.STTBackend == "" {
		cfg.STTBackend = STTBackendHTTP
	}
	if cfg.AGCTargetRMS == 0 {
		cfg.AGCTargetRMS = AGCTargetRMSDefault
	}
	if cfg.AGCMin == 0 {
		cfg.AGCMin = AGCMinDefault
	}
	if cfg.AGCMax == 0 {
		cfg.AGCMax = AGCMaxDefault
	}
	if cfg.AGCSmoothing == 0 {
		cfg.AGCSmoothing = AGCSmoothingDefault
	}
	if cfg.VADWindowMs == 0 {
		cfg.VADWindowMs = VADWindowMsDefault
	}
	if cfg.VADSensitivity == 0 {
		cfg.VADSensitivity = VADSensitivityDefault
	}
	if cfg.SilenceRMSThreshold == 0 {
		cfg.SilenceRMSThreshold = SilenceRMSThresholdDefault
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = ConfidenceThresholdDefault
	}
}

func (cfg Config) ToEnv() []string {
	vars := []string{
		fmt.Sprintf("SITE_URL=%s", cfg.SiteURL),
		fmt.Sprintf("CALL_ID=%s", cfg.CallID),
		fmt.Sprintf("TRANSCRIPTION_ID=%s", cfg.TranscriptionID),
		fmt.Sprintf("AUTH_TOKEN=%s", cfg.AuthToken),
		fmt.Sprintf("SAMPLE_RATE=%d", cfg.SampleRate),
		fmt.Sprintf("CHANNELS=%d", cfg.Channels),
		fmt.Sprintf("WINDOW_MS=%d", cfg.WindowMs),
		fmt.Sprintf("STRIDE_MS=%d", cfg.StrideMs),
		fmt.Sprintf("STT_BACKEND=%s", cfg.STTBackend),
		fmt.Sprintf("STT_MODEL=%s", cfg.STTModel),
		fmt.Sprintf("STT_TEMPERATURE=%f", cfg.STTTemperature),
		fmt.Sprintf("STT_LANGUAGE=%s", cfg.STTLanguage),
		fmt.Sprintf("AGC_TARGET_RMS=%f", cfg.AGCTargetRMS),
		fmt.Sprintf("AGC_MIN=%f", cfg.AGCMin),
		fmt.Sprintf("AGC_MAX=%f", cfg.AGCMax),
		fmt.Sprintf("AGC_SMOOTHING=%f", cfg.AGCSmoothing),
		fmt.Sprintf("VAD_WINDOW_MS=%d", cfg.VADWindowMs),
		fmt.Sprintf("VAD_SENSITIVITY=%f", cfg.VADSensitivity),
		fmt.Sprintf("SILENCE_RMS_THRESHOLD=%f", cfg.SilenceRMSThreshold),
		fmt.Sprintf("CONFIDENCE_THRESHOLD=%f", cfg.ConfidenceThreshold),
		fmt.Sprintf("DEFAULT_DOMAIN_HINT=%s", cfg.DefaultDomainHint),
		fmt.Sprintf("DEFAULT_PROMPT=%s", cfg.DefaultPrompt),
		fmt.Sprintf("DEFAULT_TERMINOLOGY=%s", strings.Join(cfg.DefaultTerminology, ",")),
	}

	if cfg.STTOptions != nil {
		if data, err := json.Marshal(cfg.STTOptions); err == nil {
			vars = append(vars, fmt.Sprintf("STT_OPTIONS=%s", string(data)))
		} else {
			slog.Error("failed to marshal STTOptions", slog.String("err", err.Error()))
		}
	}

	return vars
}

// supportedLanguages is the closed set of STT language codes from
// spec.md's glossary. Codes outside this set are dropped.
var supportedLanguages = map[string]bool{}

func init() {
	for _, l := range strings.Fields(
		"af am ar as az ba be bg bn bo br bs ca cs cy da de el en es et eu fa fi fo fr gl gu ha haw he hi hr ht hu hy id is it ja jv ka kk km kn ko la lb ln lo lt lv mg mi mk ml mn mr ms mt my ne nl nn no oc pa pl ps pt ro ru sa sd si sk sl sn so sq sr su sv sw ta te tg th tk tl tr tt uk ur uz vi yue yo yi zh") {
		supportedLanguages[l] = true
	}
}

// NormalizeLanguage maps a locale hint to the STT's supported language
// set (§6.2): "xx-YY" collapses to "xx", and codes outside the closed
// set are dropped (returned empty).
func NormalizeLanguage(locale string) string {
	locale = strings.TrimSpace(strings.ToLower(locale))
	if locale == "" {
		return ""
	}
	if idx := strings.IndexAny(locale, "-_"); idx >= 0 {
		locale = locale[:idx]
	}
	if supportedLanguages[locale] {
		return locale
	}
	return ""
}

func FromEnv() (Config, error) {
	var cfg Config
	cfg.SiteURL = strings.TrimSuffix(os.Getenv("SITE_URL"), "/")
	cfg.CallID = os.Getenv("CALL_ID")
	cfg.TranscriptionID = os.Getenv("TRANSCRIPTION_ID")
	cfg.AuthToken = os.Getenv("AUTH_TOKEN")

	cfg.SampleRate, _ = strconv.Atoi(os.Getenv("SAMPLE_RATE"))
	cfg.Channels, _ = strconv.Atoi(os.Getenv("CHANNELS"))
	cfg.WindowMs, _ = strconv.Atoi(os.Getenv("WINDOW_MS"))
	cfg.StrideMs, _ = strconv.Atoi(os.Getenv("STRIDE_MS"))

	if val := os.Getenv("STT_BACKEND"); val != "" {
		cfg.STTBackend = STTBackend(val)
	}
	cfg.STTModel = os.Getenv("STT_MODEL")
	cfg.STTTemperature, _ = strconv.ParseFloat(os.Getenv("STT_TEMPERATURE"), 64)
	cfg.STTLanguage = os.Getenv("STT_LANGUAGE")

	if val := os.Getenv("STT_OPTIONS"); val != "" {
		if err := json.Unmarshal([]byte(val), &cfg.STTOptions); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal STTOptions: %w", err)
		}
	}

	cfg.AGCTargetRMS, _ = strconv.ParseFloat(os.Getenv("AGC_TARGET_RMS"), 64)
	cfg.AGCMin, _ = strconv.ParseFloat(os.Getenv("AGC_MIN"), 64)
	cfg.AGCMax, _ = strconv.ParseFloat(os.Getenv("AGC_MAX"), 64)
	cfg.AGCSmoothing, _ = strconv.ParseFloat(os.Getenv("AGC_SMOOTHING"), 64)

	cfg.VADWindowMs, _ = strconv.Atoi(os.Getenv("VAD_WINDOW_MS"))
	cfg.VADSensitivity, _ = strconv.ParseFloat(os.Getenv("VAD_SENSITIVITY"), 64)
	cfg.SilenceRMSThreshold, _ = strconv.ParseFloat(os.Getenv("SILENCE_RMS_THRESHOLD"), 64)

	cfg.ConfidenceThreshold, _ = strconv.ParseFloat(os.Getenv("CONFIDENCE_THRESHOLD"), 64)

	cfg.DefaultDomainHint = os.Getenv("DEFAULT_DOMAIN_HINT")
	cfg.DefaultPrompt = os.Getenv("DEFAULT_PROMPT")
	if val := os.Getenv("DEFAULT_TERMINOLOGY"); val != "" {
		cfg.DefaultTerminology = strings.Split(val, ",")
	}

	return cfg, nil
}
