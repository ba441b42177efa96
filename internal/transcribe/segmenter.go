// Package transcribe turns the pitch oracle's noisy frame stream into
// discrete notes. The Segmenter is a pure hysteresis state machine fed
// (frame, beat) pairs; the Session wraps it with wall-clock scheduling and
// writes committed notes into the store.
package transcribe

import (
	"github.com/ajithraghavan/Voice-To-MIDI/internal/grid"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/pitch"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
)

// Config holds the segmentation thresholds.
type Config struct {
	// ClarityThreshold gates frames: only estimates with clarity strictly
	// above it count as voiced.
	ClarityThreshold float64
	// MinFrequency and MaxFrequency bound the admissible band; estimates
	// outside it are treated as detector noise.
	MinFrequency float64
	MaxFrequency float64
	// StabilityFrames is how many consecutive frames a new pitch must hold
	// before the engine switches to it.
	StabilityFrames int
	// MinNoteDuration is the floor, in beats, below which a closed span is
	// discarded as a glitch.
	MinNoteDuration float64
	// Velocity is assigned to every committed note; loudness is not derived
	// from the signal.
	Velocity int
}

// DefaultConfig returns the tuned thresholds for sung or hummed input.
func DefaultConfig() Config {
	return Config{
		ClarityThreshold: 0.93,
		MinFrequency:     80,
		MaxFrequency:     1100,
		StabilityFrames:  3,
		MinNoteDuration:  0.2,
		Velocity:         midi.DefaultVelocity,
	}
}

type openNote struct {
	pitch int
	start float64
}

type candidate struct {
	pitch      int
	framesHeld int
}

// Segmenter converts a frame sequence into note templates. Zero or one
// note is committed per Feed call. It has no notion of wall-clock time;
// callers supply the beat position of each frame.
type Segmenter struct {
	cfg     Config
	current *openNote
	pending *candidate
}

// NewSegmenter creates a segmenter with the given thresholds.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// voiced reports whether the frame carries a usable pitch estimate.
func (s *Segmenter) voiced(f pitch.Frame) bool {
	return f.Clarity > s.cfg.ClarityThreshold &&
		f.Frequency > s.cfg.MinFrequency &&
		f.Frequency < s.cfg.MaxFrequency
}

// close finalizes the open note at the given beat. Spans at or below the
// duration floor are dropped. Frequencies near the band edges can round
// one semitone past the key range, so the committed pitch is clamped.
func (s *Segmenter) close(beat float64) (store.Template, bool) {
	n := s.current
	s.current = nil
	dur := beat - n.start
	if dur <= s.cfg.MinNoteDuration {
		return store.Template{}, false
	}
	return store.Template{
		Pitch:    grid.ClampPitch(n.pitch),
		Start:    n.start,
		Duration: dur,
		Velocity: s.cfg.Velocity,
	}, true
}

// Feed processes one frame observed at the given beat and returns a
// committed note, if this frame closed one.
func (s *Segmenter) Feed(f pitch.Frame, beat float64) (store.Template, bool) {
	if !s.voiced(f) {
		// Silence ends the open note and resets the hysteresis.
		s.pending = nil
		if s.current != nil {
			return s.close(beat)
		}
		return store.Template{}, false
	}

	p := grid.FrequencyToPitch(f.Frequency)

	if s.current != nil && s.current.pitch == p {
		// The open note reaffirmed; momentary fluctuation was noise.
		s.pending = nil
		return store.Template{}, false
	}

	if s.pending != nil && s.pending.pitch == p {
		s.pending.framesHeld++
		if s.pending.framesHeld >= s.cfg.StabilityFrames {
			// Confirmed transition: close the old note, open the new one
			// at the confirmation beat.
			s.pending = nil
			var out store.Template
			var ok bool
			if s.current != nil {
				out, ok = s.close(beat)
			}
			s.current = &openNote{pitch: p, start: beat}
			return out, ok
		}
		return store.Template{}, false
	}

	// A different pitch replaces any previous candidate outright.
	s.pending = &candidate{pitch: p, framesHeld: 1}
	return store.Template{}, false
}

// Finish closes any still-open note at the given beat, as when recording
// stops mid-note.
func (s *Segmenter) Finish(beat float64) (store.Template, bool) {
	s.pending = nil
	if s.current == nil {
		return store.Template{}, false
	}
	return s.close(beat)
}
