package pipeline

import "errors"

// Error kinds named in spec.md §7. Names are intentionally abstract;
// wrap with fmt.Errorf("...: %w", ...) and compare with errors.Is.
var (
	// ErrUnsupportedSampleFormat: channel conversion other than identity
	// or 2->1. Fatal to the frame; logged and dropped. No counter
	// records these frames.
	ErrUnsupportedSampleFormat = errors.New("pipeline: unsupported sample format")

	// ErrTranscriptionFailure: STT returned non-OK or a network error.
	// The window is dropped, not retried; timestamps advance.
	ErrTranscriptionFailure = errors.New("pipeline: transcription failure")

	// ErrCorrectionFailure: correction service returned non-OK. Logged,
	// does not block the transcript path.
	ErrCorrectionFailure = errors.New("pipeline: correction failure")

	// ErrTransportDisconnected: media room disconnect or participant
	// gone. Nothing in this module returns it, and a disconnect does
	// not reset session state; only an explicit Session.Reset does.
	ErrTransportDisconnected = errors.New("pipeline: transport disconnected")

	// ErrInvalidConfig: window/ring capacity mismatch. Fatal at startup.
	ErrInvalidConfig = errors.New("pipeline: invalid config")

	// ErrWindowOverflow: an append exceeded ring capacity in one call.
	// Internal invariant violation.
	ErrWindowOverflow = errors.New("pipeline: window overflow")
)
