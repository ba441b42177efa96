package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrNoNotes          = errors.New("no notes to export")
	ErrSessionActive    = errors.New("another session is already active")
	ErrNoSession        = errors.New("no active session")
	ErrAudioUnavailable = errors.New("audio input unavailable")
	ErrNoMIDIOutput     = errors.New("no MIDI output port available")
	ErrToolNotInstalled = errors.New("required tool not installed")
)

// DetectorError represents a failure in the external pitch detector process
type DetectorError struct {
	Detector string // "aubio", "crepe"
	Stage    string // "start", "stream", "shutdown"
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *DetectorError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed at %s (exit %d): %s", e.Detector, e.Stage, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed at %s (exit %d)", e.Detector, e.Stage, e.ExitCode)
}

func (e *DetectorError) Unwrap() error {
	return e.Cause
}

// NewDetectorError creates a DetectorError
func NewDetectorError(detector, stage string, exitCode int, stderr string, cause error) *DetectorError {
	return &DetectorError{
		Detector: detector,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}
