package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerBeat is the metric resolution of exported files.
const TicksPerBeat = 128

const exportChannel = 0

// WriteSMF serializes notes to a single-track standard MIDI file at the
// given tempo. Notes are written in start order; a note shorter than one
// tick still gets a one-tick duration so no note-on is left hanging.
func WriteSMF(w io.Writer, notes []Note, tempo float64) error {
	if tempo <= 0 {
		return fmt.Errorf("invalid tempo: %v", tempo)
	}

	type event struct {
		tick    uint32
		noteOff bool
		pitch   uint8
		vel     uint8
	}

	var events []event
	for _, n := range notes {
		start := uint32(n.Start*TicksPerBeat + 0.5)
		dur := uint32(n.Duration*TicksPerBeat + 0.5)
		if dur == 0 {
			dur = 1
		}
		vel := n.Velocity
		if vel < 0 {
			vel = 0
		}
		if vel > 127 {
			vel = 127
		}
		events = append(events,
			event{tick: start, pitch: uint8(n.Pitch), vel: uint8(vel)},
			event{tick: start + dur, noteOff: true, pitch: uint8(n.Pitch)},
		)
	}

	// Note-offs before note-ons at the same tick, so repeated pitches
	// re-trigger instead of cancelling.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].noteOff && !events[j].noteOff
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(tempo))

	var prev uint32
	for _, ev := range events {
		delta := ev.tick - prev
		prev = ev.tick
		if ev.noteOff {
			tr.Add(delta, gomidi.NoteOff(exportChannel, ev.pitch))
		} else {
			tr.Add(delta, gomidi.NoteOn(exportChannel, ev.pitch, ev.vel))
		}
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

// ExportFile writes notes to path as a standard MIDI file.
func ExportFile(path string, notes []Note, tempo float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteSMF(f, notes, tempo)
}

// ReadSMF parses a standard MIDI file into notes and the file's tempo
// (120 when no tempo event is present). Note ids are assigned in event
// order starting at 1.
func ReadSMF(r io.Reader) ([]Note, float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read smf: %w", err)
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("parse smf: %w", err)
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, 0, errors.New("unsupported time format (SMPTE)")
	}
	resolution := float64(ticks.Resolution())

	tempo := 120.0
	var notes []Note
	var nextID int64 = 1

	for _, track := range s.Tracks {
		var absTicks int64
		open := map[uint8]Note{}
		for _, event := range track {
			absTicks += int64(event.Delta)
			beat := float64(absTicks) / resolution

			var bpm float64
			var channel, key, velocity uint8
			switch {
			case event.Message.GetMetaTempo(&bpm):
				tempo = bpm
			case event.Message.GetNoteStart(&channel, &key, &velocity):
				open[key] = Note{
					ID:       nextID,
					Pitch:    int(key),
					Start:    beat,
					Velocity: int(velocity),
				}
				nextID++
			case event.Message.GetNoteEnd(&channel, &key):
				if n, ok := open[key]; ok {
					n.Duration = beat - n.Start
					notes = append(notes, n)
					delete(open, key)
				}
			}
		}
	}

	SortNotes(notes)
	return notes, tempo, nil
}

// ReadFile parses the standard MIDI file at path.
func ReadFile(path string) ([]Note, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadSMF(f)
}
