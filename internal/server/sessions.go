package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/editor"
	apperrors "github.com/ajithraghavan/Voice-To-MIDI/internal/errors"
	appexec "github.com/ajithraghavan/Voice-To-MIDI/internal/exec"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/pitch"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/playback"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/transcribe"
)

// notifyDebounce coalesces bursts of store mutations (drag frames, a paste
// of many notes) into one SSE event.
const notifyDebounce = 50 * time.Millisecond

// SessionManager owns the note store and at most one recording or playback
// session at a time. Starting one kind of session stops the other first, so
// the store always has a single writer.
type SessionManager struct {
	store  *store.Store
	editor *editor.Editor
	logger *slog.Logger

	// Factories, overridable in tests.
	startOracle func(ctx context.Context) (pitch.Oracle, func() error, error)
	newSink     func() (playback.Sink, error)

	mu           sync.Mutex
	recording    *transcribe.Session
	recordCancel context.CancelFunc
	stopDetector func() error
	playing      *playback.Session
	playCancel   context.CancelFunc

	subsMu    sync.Mutex
	subs      map[chan struct{}]struct{}
	debounced func(func())
}

// NewSessionManager creates a manager whose recording sessions use the
// external pitch detector under scriptsDir and whose playback uses the
// first system MIDI output.
func NewSessionManager(scriptsDir string, logger *slog.Logger) *SessionManager {
	runner := appexec.NewRunner("", scriptsDir)
	st := store.New()
	m := &SessionManager{
		store:     st,
		editor:    editor.New(st),
		logger:    logger,
		subs:      make(map[chan struct{}]struct{}),
		debounced: debounce.New(notifyDebounce),
	}
	m.startOracle = func(ctx context.Context) (pitch.Oracle, func() error, error) {
		d := pitch.NewDetector(runner, "", logger)
		if err := d.Check(ctx); err != nil {
			return nil, nil, err
		}
		oracle, err := d.Start(ctx)
		if err != nil {
			return nil, nil, err
		}
		return oracle, d.Stop, nil
	}
	m.newSink = func() (playback.Sink, error) {
		return playback.NewMIDISink(0)
	}

	st.OnChange(func() {
		m.debounced(m.broadcast)
	})
	return m
}

// Store returns the shared note store.
func (m *SessionManager) Store() *store.Store { return m.store }

// Editor returns the interaction state machine over the store.
func (m *SessionManager) Editor() *editor.Editor { return m.editor }

// Subscribe registers a change listener. The returned cancel func must be
// called when the listener goes away.
func (m *SessionManager) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()
	return ch, func() {
		m.subsMu.Lock()
		delete(m.subs, ch)
		m.subsMu.Unlock()
	}
}

func (m *SessionManager) broadcast() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default: // listener is behind; it will catch up on the next event
		}
	}
}

// StartRecording begins a recording session, stopping any active playback
// first. Returns ErrSessionActive if already recording.
func (m *SessionManager) StartRecording() error {
	m.stopPlaybackIfActive()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording != nil {
		return apperrors.ErrSessionActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	oracle, stopDetector, err := m.startOracle(ctx)
	if err != nil {
		cancel()
		return err
	}

	sess := transcribe.NewSession(m.store, oracle, transcribe.DefaultConfig(),
		transcribe.WithLogger(m.logger))
	m.recording = sess
	m.recordCancel = cancel
	m.stopDetector = stopDetector

	go func() {
		if err := sess.Run(ctx, transcribe.DefaultInterval); err != nil && err != context.Canceled {
			m.logger.Error("recording session failed", "session", sess.ID, "error", err)
		}
	}()
	return nil
}

// StopRecording ends the active recording session. Returns ErrNoSession if
// none is active.
func (m *SessionManager) StopRecording() error {
	m.mu.Lock()
	sess := m.recording
	cancel := m.recordCancel
	stopDetector := m.stopDetector
	m.recording = nil
	m.recordCancel = nil
	m.stopDetector = nil
	m.mu.Unlock()

	if sess == nil {
		return apperrors.ErrNoSession
	}
	sess.Stop()
	cancel()
	if stopDetector != nil {
		if err := stopDetector(); err != nil {
			m.logger.Warn("detector shutdown", "error", err)
		}
	}
	return nil
}

// StartPlayback begins a playback session, stopping any active recording
// first. Returns ErrSessionActive if already playing.
func (m *SessionManager) StartPlayback() error {
	m.stopRecordingIfActive()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing != nil {
		return apperrors.ErrSessionActive
	}

	sink, err := m.newSink()
	if err != nil {
		return err
	}
	sess, err := playback.NewSession(m.store, sink, playback.WithLogger(m.logger))
	if err != nil {
		sink.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.playing = sess
	m.playCancel = cancel

	go func() {
		defer sink.Close()
		if err := sess.Run(ctx, playback.DefaultInterval); err != nil && err != context.Canceled {
			m.logger.Error("playback session failed", "session", sess.ID, "error", err)
		}
		// Self-clearing when the transport reaches the end on its own.
		m.mu.Lock()
		if m.playing == sess {
			m.playing = nil
			m.playCancel = nil
		}
		m.mu.Unlock()
	}()
	return nil
}

// StopPlayback ends the active playback session. Returns ErrNoSession if
// none is active.
func (m *SessionManager) StopPlayback() error {
	m.mu.Lock()
	sess := m.playing
	cancel := m.playCancel
	m.playing = nil
	m.playCancel = nil
	m.mu.Unlock()

	if sess == nil {
		return apperrors.ErrNoSession
	}
	sess.Stop()
	cancel()
	return nil
}

func (m *SessionManager) stopPlaybackIfActive() {
	if err := m.StopPlayback(); err != nil && err != apperrors.ErrNoSession {
		m.logger.Warn("stopping playback before recording", "error", err)
	}
}

func (m *SessionManager) stopRecordingIfActive() {
	if err := m.StopRecording(); err != nil && err != apperrors.ErrNoSession {
		m.logger.Warn("stopping recording before playback", "error", err)
	}
}

// Recording reports whether a recording session is active.
func (m *SessionManager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording != nil
}

// Playing reports whether a playback session is active.
func (m *SessionManager) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing != nil
}

// Shutdown stops any active sessions.
func (m *SessionManager) Shutdown() {
	_ = m.StopRecording()
	_ = m.StopPlayback()
}
