package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Config{
		SiteURL:         "http://localhost:8065",
		CallID:          "8w8jorhr7j83uqr6y1st894hqe",
		TranscriptionID: "udzdsg7dwidbzcidx5khrf8nee",
		AuthToken:       "qj75unbsef83ik9p7ueypb6iyw",
	}
	cfg.SetDefaults()
	return cfg
}

func TestConfigIsValid(t *testing.T) {
	tcs := []struct {
		name          string
		mutate        func(*Config)
		expectedError string
	}{
		{
			name:          "empty config",
			mutate:        func(cfg *Config) { *cfg = Config{} },
			expectedError: "SiteURL cannot be empty",
		},
		{
			name: "invalid SiteURL scheme",
			mutate: func(cfg *Config) {
				*cfg = Config{}
				cfg.SiteURL = "invalid://localhost"
			},
			expectedError: "SiteURL parsing failed: invalid scheme \"invalid\"",
		},
		{
			name:          "missing CallID",
			mutate:        func(cfg *Config) { cfg.CallID = "" },
			expectedError: "CallID cannot be empty",
		},
		{
			name:          "missing TranscriptionID",
			mutate:        func(cfg *Config) { cfg.TranscriptionID = "" },
			expectedError: "TranscriptionID cannot be empty",
		},
		{
			name:          "invalid STTBackend",
			mutate:        func(cfg *Config) { cfg.STTBackend = "bogus" },
			expectedError: "STTBackend value is not valid",
		},
		{
			name:          "non-mono channels",
			mutate:        func(cfg *Config) { cfg.Channels = 2 },
			expectedError: "Channels should be 1 (canonical mono)",
		},
		{
			name: "window/sample rate not a multiple of 1000",
			mutate: func(cfg *Config) {
				cfg.SampleRate = 44100
				cfg.WindowMs = 33
			},
			expectedError: "SampleRate * WindowMs must be a multiple of 1000",
		},
		{
			name: "stride/sample rate not a multiple of 1000",
			mutate: func(cfg *Config) {
				cfg.SampleRate = 44100
				cfg.StrideMs = 33
			},
			expectedError: "SampleRate * StrideMs must be a multiple of 1000",
		},
		{
			name:          "invalid AGC range",
			mutate:        func(cfg *Config) { cfg.AGCMax = 0.1 },
			expectedError: "AGCMin/AGCMax are invalid",
		},
		{
			name:          "invalid confidence threshold",
			mutate:        func(cfg *Config) { cfg.ConfidenceThreshold = 1.5 },
			expectedError: "ConfidenceThreshold should be in the range [0, 1]",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.IsValid()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expectedError)
		})
	}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, validConfig().IsValid())
	})
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	require.Equal(t, SampleRateDefault, cfg.SampleRate)
	require.Equal(t, ChannelsDefault, cfg.Channels)
	require.Equal(t, WindowMsDefault, cfg.WindowMs)
	require.Equal(t, StrideMsDefault, cfg.StrideMs)
	require.Equal(t, STTBackendHTTP, cfg.STTBackend)
	require.InDelta(t, ConfidenceThresholdDefault, cfg.ConfidenceThreshold, 1e-9)
}

func TestNormalizeLanguage(t *testing.T) {
	tcs := []struct {
		in       string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"en-US", "en"},
		{"zh-CN", "zh"},
		{"", ""},
		{"xx", ""},
		{"  fr  ", "fr"},
	}

	for _, tc := range tcs {
		require.Equal(t, tc.expected, NormalizeLanguage(tc.in), "input %q", tc.in)
	}
}

func TestResolve(t *testing.T) {
	cfg := validConfig()
	cfg.STTLanguage = "en"
	cfg.DefaultDomainHint = "medical"
	cfg.DefaultPrompt = "patient intake"
	cfg.DefaultTerminology = []string{"stat", "npo"}

	t.Run("all defaults", func(t *testing.T) {
		r := cfg.Resolve(ParticipantOptions{})
		require.Equal(t, "en", r.Language)
		require.Equal(t, "medical", r.DomainHint)
		require.Equal(t, "patient intake", r.Prompt)
		require.Equal(t, []string{"stat", "npo"}, r.Terminology)
	})

	t.Run("participant overrides", func(t *testing.T) {
		r := cfg.Resolve(ParticipantOptions{
			Locale:      "fr-CA",
			DomainHint:  "legal",
			Terminology: []string{"tort"},
			Prompt:      "deposition",
		})
		require.Equal(t, "fr", r.Language)
		require.Equal(t, "legal", r.DomainHint)
		require.Equal(t, "deposition", r.Prompt)
		require.Equal(t, []string{"tort"}, r.Terminology)
	})

	t.Run("unsupported locale falls back to session language", func(t *testing.T) {
		r := cfg.Resolve(ParticipantOptions{Locale: "xx-ZZ"})
		require.Equal(t, "en", r.Language)
	})
}
