// Package pitch defines the pitch oracle: a pull-based source of
// (frequency, clarity) estimates sampled once per transcription tick. The
// estimates come from an external detector process; the transcription
// engine only sees the Oracle interface, so tests substitute a slice.
package pitch

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// Frame is one pitch estimate. Frequency is 0 when the detector reported no
// fundamental; Clarity is the detector's confidence in [0,1].
type Frame struct {
	Frequency float64 `json:"frequency"`
	Clarity   float64 `json:"clarity"`
}

// Oracle yields the latest pitch estimate on demand. Sample returns false
// once the source is exhausted or closed; until then it returns the most
// recent frame, which may repeat between detector updates.
type Oracle interface {
	Sample() (Frame, bool)
}

// SliceOracle replays a fixed sequence of frames, one per Sample call.
type SliceOracle struct {
	frames []Frame
	pos    int
}

// NewSliceOracle creates an oracle over the given frames.
func NewSliceOracle(frames []Frame) *SliceOracle {
	return &SliceOracle{frames: frames}
}

// Sample returns the next frame, or false when the sequence is spent.
func (o *SliceOracle) Sample() (Frame, bool) {
	if o.pos >= len(o.frames) {
		return Frame{}, false
	}
	f := o.frames[o.pos]
	o.pos++
	return f, true
}

// StreamOracle consumes JSON-lines frames from a reader on a background
// goroutine and hands out the latest one. The sampling loop polls at its
// own cadence, so frames arriving faster than the tick are dropped and a
// slow detector repeats its last estimate.
type StreamOracle struct {
	mu     sync.Mutex
	latest Frame
	seen   bool
	closed bool
	src    io.ReadCloser
}

// NewStreamOracle starts reading frames from r. Close the oracle to release
// the reader.
func NewStreamOracle(r io.ReadCloser) *StreamOracle {
	o := &StreamOracle{src: r}
	go o.consume(r)
	return o
}

func (o *StreamOracle) consume(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var f Frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			// Detectors interleave diagnostics on stdout sometimes; skip
			// anything that is not a frame.
			continue
		}
		o.mu.Lock()
		o.latest = f
		o.seen = true
		o.mu.Unlock()
	}
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Sample returns the most recent frame. Before the first frame arrives it
// returns an unvoiced zero frame; after the stream ends it returns false.
func (o *StreamOracle) Sample() (Frame, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return Frame{}, false
	}
	if !o.seen {
		return Frame{}, true
	}
	return o.latest, true
}

// Close stops the oracle and releases the underlying reader.
func (o *StreamOracle) Close() error {
	return o.src.Close()
}
