// Package playback schedules the note collection against a tempo-driven
// transport and sends it to a MIDI output. Like recording, a playback run
// is an explicitly owned session value, never shared process state.
package playback

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters the driver

	apperrors "github.com/ajithraghavan/Voice-To-MIDI/internal/errors"
)

const playbackChannel = 0

// Sink receives live note events. Implementations must tolerate NoteOff
// without a matching NoteOn.
type Sink interface {
	NoteOn(pitch, velocity int) error
	NoteOff(pitch int) error
	Close() error
}

// MIDISink plays through a system MIDI output port.
type MIDISink struct {
	send func(gomidi.Message) error
}

// NewMIDISink opens the MIDI output port with the given index.
func NewMIDISink(port int) (*MIDISink, error) {
	out, err := gomidi.OutPort(port)
	if err != nil {
		return nil, fmt.Errorf("%w: port %d: %v", apperrors.ErrNoMIDIOutput, port, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open midi output: %w", err)
	}
	return &MIDISink{send: send}, nil
}

func (s *MIDISink) NoteOn(pitch, velocity int) error {
	if velocity < 0 {
		velocity = 0
	}
	if velocity > 127 {
		velocity = 127
	}
	return s.send(gomidi.NoteOn(playbackChannel, uint8(pitch), uint8(velocity)))
}

func (s *MIDISink) NoteOff(pitch int) error {
	return s.send(gomidi.NoteOff(playbackChannel, uint8(pitch)))
}

// Close releases the MIDI driver.
func (s *MIDISink) Close() error {
	gomidi.CloseDriver()
	return nil
}
