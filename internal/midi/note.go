package midi

import "sort"

// DefaultVelocity is the loudness assigned to notes whose source carries no
// amplitude information (transcribed or clicked-in notes).
const DefaultVelocity = 100

// Note represents a single MIDI note on the roll. Start and Duration are in
// beats; the tempo converts them to wall-clock time at export/playback time.
type Note struct {
	ID       int64   `json:"id"`
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

// End returns the beat at which the note stops sounding.
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// SortNotes orders notes by start time, then pitch. Sorting is stable so
// equal notes keep their insertion order.
func SortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}

// CloneNotes returns an independent copy of the slice.
func CloneNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	copy(out, notes)
	return out
}
