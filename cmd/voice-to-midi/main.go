package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/pipeline"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/server"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voice-to-midi",
	Short: "Turn sung or hummed melodies into editable MIDI",
	Long: `Voice-to-MIDI records a melody from the microphone, transcribes the
detected pitch into discrete notes, and writes standard MIDI files.

Pipeline: microphone → pitch detection → note segmentation → MIDI`,
	Version: version,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone and transcribe to MIDI",
	Long: `Record sung or hummed input and transcribe it into notes.

Examples:
  voice-to-midi record -o melody.mid
  voice-to-midi record -o take.mid --tempo 90 --duration 30s`,
	RunE: runRecord,
}

var playCmd = &cobra.Command{
	Use:   "play <file.mid>",
	Short: "Play a MIDI file through a system MIDI output",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var exportCmd = &cobra.Command{
	Use:   "export <in.mid> <out.mid>",
	Short: "Re-export a MIDI file through the note model",
	Long: `Read a MIDI file into the note model and write it back out,
normalizing resolution to 128 ticks per beat.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editing API server",
	Long: `Start the JSON API that a piano-roll frontend connects to for
recording, editing, and playback.

Example:
  voice-to-midi serve --port 8080`,
	RunE: runServe,
}

var (
	flagOutput     string
	flagTempo      float64
	flagDuration   time.Duration
	flagScriptsDir string
	flagVerbose    bool
	flagPort       int
	flagMIDIPort   int
)

func init() {
	recordCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output MIDI file path")
	recordCmd.Flags().Float64Var(&flagTempo, "tempo", 120, "tempo in BPM")
	recordCmd.Flags().DurationVar(&flagDuration, "duration", 0, "recording length (0 = until Ctrl-C)")
	recordCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "scripts", "directory with the pitch detector script")
	recordCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose progress output")

	playCmd.Flags().IntVar(&flagMIDIPort, "midi-port", 0, "system MIDI output port index")

	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 8080, "HTTP port")
	serveCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "scripts", "directory with the pitch detector script")

	rootCmd.AddCommand(recordCmd, playCmd, exportCmd, serveCmd)
}

// interruptContext returns a context cancelled by Ctrl-C or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptContext()
	defer cancel()

	o := pipeline.NewOrchestrator(flagScriptsDir, os.Stdout, flagVerbose, nil)
	cfg := pipeline.DefaultConfig()
	cfg.OutputPath = flagOutput
	cfg.Tempo = flagTempo
	cfg.Duration = flagDuration

	result, err := o.Record(ctx, cfg)
	if err != nil {
		return err
	}
	if result.OutputPath != "" {
		fmt.Printf("Wrote %d notes to %s\n", result.NotesCommitted, result.OutputPath)
	} else {
		fmt.Printf("Transcribed %d notes\n", result.NotesCommitted)
	}
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptContext()
	defer cancel()

	o := pipeline.NewOrchestrator(flagScriptsDir, os.Stdout, false, nil)
	if err := o.Load(args[0]); err != nil {
		return err
	}
	return o.Play(ctx, flagMIDIPort)
}

func runExport(cmd *cobra.Command, args []string) error {
	o := pipeline.NewOrchestrator(flagScriptsDir, os.Stdout, false, nil)
	if err := o.Load(args[0]); err != nil {
		return err
	}
	if err := o.Export(args[1]); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", args[1])
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	srv := server.New(server.Config{
		Port:       flagPort,
		ScriptsDir: flagScriptsDir,
	})
	return srv.Run()
}
