package pitch

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/ajithraghavan/Voice-To-MIDI/internal/errors"
	appexec "github.com/ajithraghavan/Voice-To-MIDI/internal/exec"
)

// DefaultScript is the bundled detector entry point. It opens the default
// audio input and prints one JSON frame per analysis hop.
const DefaultScript = "pitch_stream.py"

// detectorPackage is the Python package the detector script imports for
// pitch analysis.
const detectorPackage = "aubio"

// Detector launches the external pitch detection process and exposes its
// frame stream as an Oracle.
type Detector struct {
	runner *appexec.Runner
	script string
	logger *slog.Logger

	proc   *appexec.Process
	oracle *StreamOracle
}

// NewDetector creates a detector using the given runner. An empty script
// selects DefaultScript.
func NewDetector(runner *appexec.Runner, script string, logger *slog.Logger) *Detector {
	if script == "" {
		script = DefaultScript
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{runner: runner, script: script, logger: logger}
}

// Check verifies the detector can run before a session starts: the analysis
// package must be importable and the script's self-test must open the audio
// input. Failures unwrap to ErrToolNotInstalled or ErrAudioUnavailable.
func (d *Detector) Check(ctx context.Context) error {
	if err := d.runner.CheckPythonDependency(ctx, detectorPackage); err != nil {
		return apperrors.NewDetectorError(d.script, "check", -1, "",
			fmt.Errorf("%w: %v", apperrors.ErrToolNotInstalled, err))
	}
	result, err := d.runner.RunScript(ctx, d.script, "--check")
	if err != nil {
		return apperrors.NewDetectorError(d.script, "check", result.ExitCode, result.Stderr,
			fmt.Errorf("%w: %v", apperrors.ErrAudioUnavailable, err))
	}
	return nil
}

// Start launches the detector process and returns the oracle over its
// output. The context bounds the process lifetime.
func (d *Detector) Start(ctx context.Context, args ...string) (Oracle, error) {
	proc, err := d.runner.StartScript(ctx, d.script, args...)
	if err != nil {
		return nil, apperrors.NewDetectorError(d.script, "start", -1, "",
			fmt.Errorf("%w: %v", apperrors.ErrAudioUnavailable, err))
	}
	d.proc = proc
	d.oracle = NewStreamOracle(proc.Stdout)
	d.logger.Info("pitch detector started", "script", d.script)
	return d.oracle, nil
}

// Stop terminates the detector process. Idempotent.
func (d *Detector) Stop() error {
	if d.proc == nil {
		return nil
	}
	proc := d.proc
	d.proc = nil

	if d.oracle != nil {
		_ = d.oracle.Close()
		d.oracle = nil
	}
	if err := proc.Stop(); err != nil {
		return apperrors.NewDetectorError(d.script, "shutdown", proc.ExitCode(), proc.Stderr(), err)
	}
	d.logger.Info("pitch detector stopped", "script", d.script)
	return nil
}
