// Package store is the single source of truth for the note collection and
// its editing state: selection, clipboard, and a bounded undo/redo history.
// The transcription engine writes committed notes here; the editor reads
// and mutates the same records.
package store

import (
	"sort"
	"sync"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
)

// maxHistory bounds the undo log; pushing past it discards the oldest
// snapshot, so deep history is lossy on purpose.
const maxHistory = 50

// DefaultTempo is the tempo a fresh store starts with, in BPM.
const DefaultTempo = 120

// Template describes a note without an identity. Ids are assigned by the
// store when the note enters the collection.
type Template struct {
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

// Update carries a partial replacement of a note's fields; nil fields are
// left untouched. Used for continuous drag feedback, so it never pushes
// history — callers push once at gesture start.
type Update struct {
	Pitch    *int     `json:"pitch,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Velocity *int     `json:"velocity,omitempty"`
}

// Position is an absolute (start, pitch) pair used by atomic group moves.
type Position struct {
	Start float64
	Pitch int
}

// snapshot captures the collection and the id counter immediately before a
// mutation, so undo can replay the exact pre-mutation state.
type snapshot struct {
	notes  []midi.Note
	nextID int64
}

// Store holds the mutable note collection. All methods are safe for use
// from the transcription loop, pointer handlers, and keyboard handlers;
// the surrounding application keeps those mutually exclusive, the mutex
// only enforces the at-most-one-writer assumption on a threaded host.
type Store struct {
	mu        sync.Mutex
	notes     []midi.Note
	selected  map[int64]struct{}
	clipboard []Template
	history   []snapshot
	cursor    int
	nextID    int64

	tempo    float64
	position float64

	onChange func()
}

// New creates an empty store.
func New() *Store {
	return &Store{
		selected: make(map[int64]struct{}),
		cursor:   -1,
		nextID:   1,
		tempo:    DefaultTempo,
	}
}

// OnChange registers a callback invoked after every mutation. At most one
// callback is supported; it runs outside the store's lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PushHistory captures the current state as an undo point. It truncates
// any redo branch beyond the cursor and caps the log at maxHistory,
// discarding oldest-first.
func (s *Store) PushHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushHistoryLocked()
}

func (s *Store) pushHistoryLocked() {
	snap := snapshot{notes: midi.CloneNotes(s.notes), nextID: s.nextID}
	s.history = append(s.history[:s.cursor+1], snap)
	if len(s.history) > maxHistory {
		s.history = s.history[1:]
	}
	s.cursor = len(s.history) - 1
}

// Undo restores the most recent snapshot. The current live state is saved
// as the forward entry so a following Redo restores it exactly, including
// the id counter.
func (s *Store) Undo() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor < 0 {
		return
	}
	snap := s.history[s.cursor]
	forward := snapshot{notes: midi.CloneNotes(s.notes), nextID: s.nextID}
	if s.cursor+1 < len(s.history) {
		s.history[s.cursor+1] = forward
	} else {
		s.history = append(s.history, forward)
	}
	s.notes = midi.CloneNotes(snap.notes)
	s.nextID = snap.nextID
	s.cursor--
	s.pruneSelectionLocked()
}

// Redo reapplies the snapshot ahead of the cursor, if any.
func (s *Store) Redo() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor+1 >= len(s.history) {
		return
	}
	snap := s.history[s.cursor+1]
	s.notes = midi.CloneNotes(snap.notes)
	s.nextID = snap.nextID
	s.cursor++
	s.pruneSelectionLocked()
}

// Add assigns a fresh id to the template and appends it. Always pushes a
// history snapshot first.
func (s *Store) Add(t Template) midi.Note {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushHistoryLocked()
	n := midi.Note{
		ID:       s.nextID,
		Pitch:    t.Pitch,
		Start:    t.Start,
		Duration: t.Duration,
		Velocity: t.Velocity,
	}
	s.nextID++
	s.notes = append(s.notes, n)
	return n
}

// UpdateNote replaces the given fields on the matching note. Absent ids are
// ignored. No history is pushed.
func (s *Store) UpdateNote(id int64, u Update) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notes {
		if s.notes[i].ID != id {
			continue
		}
		if u.Pitch != nil {
			s.notes[i].Pitch = *u.Pitch
		}
		if u.Start != nil {
			s.notes[i].Start = *u.Start
		}
		if u.Duration != nil {
			s.notes[i].Duration = *u.Duration
		}
		if u.Velocity != nil {
			s.notes[i].Velocity = *u.Velocity
		}
		return
	}
}

// UpdateMany applies relative deltas to start time and pitch for every note
// whose id is in ids. No bounds clamping happens here; callers validate
// ranges first. No history is pushed.
func (s *Store) UpdateMany(ids []int64, deltaStart float64, deltaPitch int) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	for i := range s.notes {
		if _, ok := idSet[s.notes[i].ID]; ok {
			s.notes[i].Start += deltaStart
			s.notes[i].Pitch += deltaPitch
		}
	}
}

// ApplyPositions writes absolute positions onto the matching notes in one
// step, so a group move lands atomically. No history is pushed.
func (s *Store) ApplyPositions(positions map[int64]Position) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notes {
		if p, ok := positions[s.notes[i].ID]; ok {
			s.notes[i].Start = p.Start
			s.notes[i].Pitch = p.Pitch
		}
	}
}

// Delete removes the note with the given id and prunes it from the
// selection. A no-op when the id is absent.
func (s *Store) Delete(id int64) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.notes {
		if s.notes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.pushHistoryLocked()
	s.notes = append(s.notes[:idx], s.notes[idx+1:]...)
	delete(s.selected, id)
}

// DeleteSelected removes every selected note. A no-op when the selection is
// empty.
func (s *Store) DeleteSelected() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteSelectedLocked()
}

func (s *Store) deleteSelectedLocked() {
	if len(s.selected) == 0 {
		return
	}
	s.pushHistoryLocked()
	kept := s.notes[:0]
	for _, n := range s.notes {
		if _, ok := s.selected[n.ID]; !ok {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	s.selected = make(map[int64]struct{})
}

// Clear removes every note. A no-op on an empty collection.
func (s *Store) Clear() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.notes) == 0 {
		return
	}
	s.pushHistoryLocked()
	s.notes = nil
	s.selected = make(map[int64]struct{})
}

// Select replaces the selection with ids. Ids not present in the collection
// are dropped, keeping the selection a subset of live notes.
func (s *Store) Select(ids []int64) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[int64]struct{}, len(s.notes))
	for _, n := range s.notes {
		live[n.ID] = struct{}{}
	}
	s.selected = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := live[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
}

// ToggleSelect flips one note's membership in the selection.
func (s *Store) ToggleSelect(id int64) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return
	}
	for _, n := range s.notes {
		if n.ID == id {
			s.selected[id] = struct{}{}
			return
		}
	}
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[int64]struct{})
}

// SelectAll selects every note in the collection.
func (s *Store) SelectAll() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = make(map[int64]struct{}, len(s.notes))
	for _, n := range s.notes {
		s.selected[n.ID] = struct{}{}
	}
}

// CopySelected snapshots the selected notes into the clipboard with start
// times normalized so the earliest copied note sits at 0. A no-op when the
// selection is empty.
func (s *Store) CopySelected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copySelectedLocked()
}

func (s *Store) copySelectedLocked() {
	if len(s.selected) == 0 {
		return
	}
	var picked []midi.Note
	minStart := 0.0
	for _, n := range s.notes {
		if _, ok := s.selected[n.ID]; !ok {
			continue
		}
		if len(picked) == 0 || n.Start < minStart {
			minStart = n.Start
		}
		picked = append(picked, n)
	}
	s.clipboard = make([]Template, len(picked))
	for i, n := range picked {
		s.clipboard[i] = Template{
			Pitch:    n.Pitch,
			Start:    n.Start - minStart,
			Duration: n.Duration,
			Velocity: n.Velocity,
		}
	}
}

// CutSelected copies the selection to the clipboard, then deletes it.
func (s *Store) CutSelected() {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.copySelectedLocked()
	s.deleteSelectedLocked()
}

// PasteClipboard appends the clipboard contents offset by atBeat, assigning
// fresh ids, and selects the pasted notes. A no-op when the clipboard is
// empty.
func (s *Store) PasteClipboard(atBeat float64) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clipboard) == 0 {
		return
	}
	s.pushHistoryLocked()
	s.selected = make(map[int64]struct{}, len(s.clipboard))
	for _, t := range s.clipboard {
		n := midi.Note{
			ID:       s.nextID,
			Pitch:    t.Pitch,
			Start:    t.Start + atBeat,
			Duration: t.Duration,
			Velocity: t.Velocity,
		}
		s.nextID++
		s.notes = append(s.notes, n)
		s.selected[n.ID] = struct{}{}
	}
}

// pruneSelectionLocked drops selected ids that no longer exist, keeping the
// subset invariant after undo/redo swaps the collection.
func (s *Store) pruneSelectionLocked() {
	live := make(map[int64]struct{}, len(s.notes))
	for _, n := range s.notes {
		live[n.ID] = struct{}{}
	}
	for id := range s.selected {
		if _, ok := live[id]; !ok {
			delete(s.selected, id)
		}
	}
}

// Notes returns an independent copy of the collection.
func (s *Store) Notes() []midi.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return midi.CloneNotes(s.notes)
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// Selection returns the selected ids in ascending order.
func (s *Store) Selection() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsSelected reports whether the note id is in the selection.
func (s *Store) IsSelected(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[id]
	return ok
}

// SelectedNotes returns copies of the selected notes in collection order.
func (s *Store) SelectedNotes() []midi.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []midi.Note
	for _, n := range s.notes {
		if _, ok := s.selected[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// ClipboardLen returns the number of templates on the clipboard.
func (s *Store) ClipboardLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clipboard)
}

// HistoryLen returns the number of snapshots in the undo log.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// NextID returns the id the next created note will receive.
func (s *Store) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// Tempo returns the current tempo in BPM.
func (s *Store) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetTempo sets the tempo. Non-positive values are ignored. Active
// recording and playback sessions freeze the tempo at their start, so a
// change here applies from the next session on.
func (s *Store) SetTempo(tempo float64) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()
	if tempo > 0 {
		s.tempo = tempo
	}
}

// Position returns the playback position in beats.
func (s *Store) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetPosition moves the playback position. Negative values clamp to 0.
func (s *Store) SetPosition(beat float64) {
	defer s.notify()
	s.mu.Lock()
	defer s.mu.Unlock()
	if beat < 0 {
		beat = 0
	}
	s.position = beat
}
