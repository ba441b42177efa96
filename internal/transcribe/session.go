package transcribe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/grid"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/pitch"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
)

// DefaultInterval is the sampling cadence of the recording loop, roughly
// matching a display refresh tick.
const DefaultInterval = 16 * time.Millisecond

// Clock abstracts wall-clock time so tests can drive the session
// deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Session is one recording run. It owns its oracle and segmenter and
// freezes the tempo and start beat at creation, so tempo edits during
// recording do not shift notes already committed.
type Session struct {
	ID string

	store  *store.Store
	oracle pitch.Oracle
	seg    *Segmenter
	clock  Clock
	logger *slog.Logger

	tempo     float64
	startBeat float64
	started   time.Time

	mu       sync.Mutex
	running  bool
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

// NewSession creates a recording session over the given store and oracle.
// The store's tempo and playback position are captured now and stay fixed
// for the session's lifetime.
func NewSession(st *store.Store, oracle pitch.Oracle, cfg Config, opts ...Option) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		store:  st,
		oracle: oracle,
		seg:    NewSegmenter(cfg),
		clock:  systemClock{},
		logger: slog.Default(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tempo = st.Tempo()
	s.startBeat = st.Position()
	s.started = s.clock.Now()
	return s
}

// beatNow converts elapsed wall-clock time to the current beat position.
func (s *Session) beatNow() float64 {
	elapsed := s.clock.Now().Sub(s.started).Seconds()
	return s.startBeat + grid.SecondsToBeats(elapsed, s.tempo)
}

// Run samples the oracle at the given cadence until the context is
// cancelled, Stop is called, or the oracle is exhausted. An in-progress
// note is finalized at the instant the loop ends, never discarded.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer close(s.done)

	s.logger.Info("recording started",
		"session", s.ID, "tempo", s.tempo, "start_beat", s.startBeat)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.finalize()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
			frame, ok := s.oracle.Sample()
			if !ok {
				return nil
			}
			if t, committed := s.seg.Feed(frame, s.beatNow()); committed {
				s.commit(t)
			}
		}
	}
}

func (s *Session) commit(t store.Template) {
	n := s.store.Add(t)
	s.logger.Debug("note committed",
		"session", s.ID, "pitch", n.Pitch, "start", n.Start, "duration", n.Duration)
}

func (s *Session) finalize() {
	if t, ok := s.seg.Finish(s.beatNow()); ok {
		s.commit(t)
	}
	s.logger.Info("recording stopped", "session", s.ID, "notes", s.store.Len())
}

// Stop ends the session and, if Run is active, waits for it to finalize.
// Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		<-s.done
	}
}
