// Package pipeline coordinates a complete recording run: launch the pitch
// detector, feed the transcription session, and export the result as a
// standard MIDI file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	appexec "github.com/ajithraghavan/Voice-To-MIDI/internal/exec"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/pitch"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/playback"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/progress"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/transcribe"
)

// Config holds pipeline configuration
type Config struct {
	DetectorScript string
	OutputPath     string
	Tempo          float64
	Duration       time.Duration // 0 records until the context ends
	Interval       time.Duration
	Segmenter      transcribe.Config
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Tempo:     store.DefaultTempo,
		Interval:  transcribe.DefaultInterval,
		Segmenter: transcribe.DefaultConfig(),
	}
}

// Result summarizes a recording run
type Result struct {
	NotesCommitted int
	OutputPath     string
}

// Orchestrator coordinates the recording pipeline
type Orchestrator struct {
	runner   *appexec.Runner
	store    *store.Store
	progress *progress.Reporter
	logger   *slog.Logger
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(scriptsDir string, out io.Writer, verbose bool, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner:   appexec.NewRunner("", scriptsDir),
		store:    store.New(),
		progress: progress.NewReporter(out, verbose),
		logger:   logger,
	}
}

// Store exposes the note collection for further editing or playback.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// Record runs the full recording pipeline. It returns normally when the
// context is cancelled (e.g. by Ctrl-C) or the configured duration elapses.
func (o *Orchestrator) Record(ctx context.Context, cfg Config) (*Result, error) {
	o.progress.StartStage(progress.StageDetector)
	detector := pitch.NewDetector(o.runner, cfg.DetectorScript, o.logger)
	if err := detector.Check(ctx); err != nil {
		return nil, fmt.Errorf("detector unavailable: %w", err)
	}
	oracle, err := detector.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start detector: %w", err)
	}
	defer func() {
		if err := detector.Stop(); err != nil {
			o.progress.Warning("detector shutdown: %v", err)
		}
	}()

	o.progress.StartStage(progress.StageRecord)
	if cfg.Tempo > 0 {
		o.store.SetTempo(cfg.Tempo)
	}
	runCtx := ctx
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	sess := transcribe.NewSession(o.store, oracle, cfg.Segmenter,
		transcribe.WithLogger(o.logger))
	if err := sess.Run(runCtx, cfg.Interval); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("recording: %w", err)
	}

	o.progress.StartStage(progress.StageFinalize)
	notes := o.store.Notes()
	midi.SortNotes(notes)
	o.progress.StageComplete("%d notes transcribed", len(notes))

	result := &Result{NotesCommitted: len(notes)}
	if cfg.OutputPath == "" {
		return result, nil
	}

	o.progress.StartStage(progress.StageExport)
	if len(notes) == 0 {
		o.progress.Warning("no notes detected, skipping export")
		return result, nil
	}
	if err := midi.ExportFile(cfg.OutputPath, notes, o.store.Tempo()); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	result.OutputPath = cfg.OutputPath
	return result, nil
}

// Load reads a standard MIDI file into the store, replacing its contents.
func (o *Orchestrator) Load(path string) error {
	notes, tempo, err := midi.ReadFile(path)
	if err != nil {
		return err
	}
	o.store.Clear()
	o.store.SetTempo(tempo)
	for _, n := range notes {
		o.store.Add(store.Template{
			Pitch:    n.Pitch,
			Start:    n.Start,
			Duration: n.Duration,
			Velocity: n.Velocity,
		})
	}
	return nil
}

// Play sends the store's notes to the given MIDI output port and blocks
// until playback finishes or the context ends.
func (o *Orchestrator) Play(ctx context.Context, port int) error {
	sink, err := playback.NewMIDISink(port)
	if err != nil {
		return err
	}
	defer sink.Close()

	sess, err := playback.NewSession(o.store, sink, playback.WithLogger(o.logger))
	if err != nil {
		return err
	}
	err = sess.Run(ctx, playback.DefaultInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Export writes the store's notes to path.
func (o *Orchestrator) Export(path string) error {
	notes := o.store.Notes()
	midi.SortNotes(notes)
	return midi.ExportFile(path, notes, o.store.Tempo())
}
