// Package grid holds the pure conversions shared by the transcription
// engine and the editor: musical time (beats) to wall-clock seconds at a
// tempo, pitch numbers to frequencies and names, and beat/pitch positions
// to the pixel coordinates of the piano roll canvas.
package grid

import (
	"fmt"
	"math"
)

// Piano roll pitch range: C2..C6, four octaves.
const (
	MinPitch  = 36
	MaxPitch  = 84
	TotalKeys = MaxPitch - MinPitch + 1
)

// Visual density of the roll. Pointer input arrives in canvas pixels;
// these constants fix how pixels map to beats and keys.
const (
	PixelsPerBeat = 80.0
	KeyHeight     = 16.0
)

// Subdivision is the minor grid: sixteenth notes.
const Subdivision = 4

// Unit is the smallest snappable beat interval.
const Unit = 1.0 / Subdivision

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// BeatsToSeconds converts beats to wall-clock seconds at the given tempo.
func BeatsToSeconds(beats, tempo float64) float64 {
	return beats * 60 / tempo
}

// SecondsToBeats converts elapsed seconds to beats at the given tempo.
func SecondsToBeats(seconds, tempo float64) float64 {
	return seconds * tempo / 60
}

// FrequencyToPitch maps a frequency in Hz to the nearest MIDI pitch number
// (A4 = 440 Hz = 69).
func FrequencyToPitch(freq float64) int {
	return int(math.Round(12*math.Log2(freq/440) + 69))
}

// PitchToFrequency returns the frequency in Hz of a MIDI pitch number.
func PitchToFrequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// PitchName returns the scientific name of a pitch, e.g. 60 -> "C4".
func PitchName(pitch int) string {
	return fmt.Sprintf("%s%d", noteNames[((pitch%12)+12)%12], pitch/12-1)
}

// IsBlackKey reports whether the pitch is a black key on a piano.
func IsBlackKey(pitch int) bool {
	switch ((pitch % 12) + 12) % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// Snap rounds a beat position to the nearest minor grid line.
func Snap(beat float64) float64 {
	return math.Round(beat*Subdivision) / Subdivision
}

// SnapDown floors a beat position to the minor grid line at or before it.
func SnapDown(beat float64) float64 {
	return math.Floor(beat*Subdivision) / Subdivision
}

// ClampPitch confines a pitch to the roll's range.
func ClampPitch(pitch int) int {
	if pitch < MinPitch {
		return MinPitch
	}
	if pitch > MaxPitch {
		return MaxPitch
	}
	return pitch
}

// ClampStart confines a start time to non-negative beats.
func ClampStart(beat float64) float64 {
	if beat < 0 {
		return 0
	}
	return beat
}

// BeatAtX converts a canvas x coordinate to a beat position.
func BeatAtX(x float64) float64 {
	return x / PixelsPerBeat
}

// PitchAtY converts a canvas y coordinate to a pitch number. The top row of
// the canvas is MaxPitch. The result may lie outside [MinPitch, MaxPitch]
// when y is off the roll; callers decide whether to reject or clamp.
func PitchAtY(y float64) int {
	return MaxPitch - int(math.Floor(y/KeyHeight))
}

// XAtBeat converts a beat position to a canvas x coordinate.
func XAtBeat(beat float64) float64 {
	return beat * PixelsPerBeat
}

// YAtPitch converts a pitch number to the canvas y coordinate of its row top.
func YAtPitch(pitch int) float64 {
	return float64(MaxPitch-pitch) * KeyHeight
}
