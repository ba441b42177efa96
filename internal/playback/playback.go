package playback

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ajithraghavan/Voice-To-MIDI/internal/errors"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/grid"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
)

// DefaultInterval is the transport tick cadence.
const DefaultInterval = 4 * time.Millisecond

// tailBeats is how far past the last note end the cursor runs before the
// session stops on its own.
const tailBeats = 1.0

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// event is one scheduled sink call, offset from transport start.
type event struct {
	offset   time.Duration
	noteOff  bool
	pitch    int
	velocity int
}

// Session plays the store's notes from the current playback position. The
// tempo and the note list are frozen when the session is created; edits
// made while playing do not reschedule events.
type Session struct {
	ID string

	store  *store.Store
	sink   Sink
	clock  Clock
	logger *slog.Logger

	tempo     float64
	startBeat float64
	endBeat   float64
	events    []event
	started   time.Time

	mu       sync.Mutex
	running  bool
	sounding map[int]int
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a session.
type Option func(*Session)

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession schedules every note ending after the store's playback
// position. Returns ErrNoNotes when nothing is scheduled.
func NewSession(st *store.Store, sink Sink, opts ...Option) (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		store:    st,
		sink:     sink,
		clock:    systemClock{},
		logger:   slog.Default(),
		sounding: make(map[int]int),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tempo = st.Tempo()
	s.startBeat = st.Position()

	for _, n := range st.Notes() {
		if n.End() <= s.startBeat {
			continue
		}
		// A note already sounding at the start position begins immediately.
		onBeat := n.Start
		if onBeat < s.startBeat {
			onBeat = s.startBeat
		}
		s.events = append(s.events,
			event{offset: s.offsetOf(onBeat), pitch: n.Pitch, velocity: n.Velocity},
			event{offset: s.offsetOf(n.End()), noteOff: true, pitch: n.Pitch},
		)
		if n.End() > s.endBeat {
			s.endBeat = n.End()
		}
	}
	if len(s.events) == 0 {
		return nil, apperrors.ErrNoNotes
	}

	// Offs before ons at the same instant, so repeated pitches re-trigger.
	sort.SliceStable(s.events, func(i, j int) bool {
		if s.events[i].offset != s.events[j].offset {
			return s.events[i].offset < s.events[j].offset
		}
		return s.events[i].noteOff && !s.events[j].noteOff
	})
	return s, nil
}

func (s *Session) offsetOf(beat float64) time.Duration {
	sec := grid.BeatsToSeconds(beat-s.startBeat, s.tempo)
	return time.Duration(sec * float64(time.Second))
}

// Run drives the transport until every event has fired and the cursor has
// passed the end, or until the context is cancelled or Stop is called.
// On exit all sounding notes are silenced and the cursor rewinds to 0.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer close(s.done)

	s.logger.Info("playback started",
		"session", s.ID, "tempo", s.tempo, "start_beat", s.startBeat, "events", len(s.events))

	s.started = s.clock.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.finalize()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
			elapsed := s.clock.Now().Sub(s.started)
			for next < len(s.events) && s.events[next].offset <= elapsed {
				s.fire(s.events[next])
				next++
			}
			beat := s.startBeat + grid.SecondsToBeats(elapsed.Seconds(), s.tempo)
			if next >= len(s.events) && beat > s.endBeat+tailBeats {
				return nil
			}
			s.store.SetPosition(beat)
		}
	}
}

func (s *Session) fire(ev event) {
	s.mu.Lock()
	if ev.noteOff {
		if s.sounding[ev.pitch] > 0 {
			s.sounding[ev.pitch]--
		}
	} else {
		s.sounding[ev.pitch]++
	}
	s.mu.Unlock()

	var err error
	if ev.noteOff {
		err = s.sink.NoteOff(ev.pitch)
	} else {
		err = s.sink.NoteOn(ev.pitch, ev.velocity)
	}
	if err != nil {
		s.logger.Warn("sink error", "session", s.ID, "pitch", ev.pitch, "error", err)
	}
}

// finalize silences anything still sounding and rewinds the cursor.
func (s *Session) finalize() {
	s.mu.Lock()
	pitches := make([]int, 0, len(s.sounding))
	for p, count := range s.sounding {
		if count > 0 {
			pitches = append(pitches, p)
		}
	}
	s.sounding = make(map[int]int)
	s.mu.Unlock()

	for _, p := range pitches {
		_ = s.sink.NoteOff(p)
	}
	s.store.SetPosition(0)
	s.logger.Info("playback stopped", "session", s.ID)
}

// Stop ends the session and, if Run is active, waits for it to silence the
// output. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		<-s.done
	}
}
