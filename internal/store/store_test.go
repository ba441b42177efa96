package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
)

func addNote(s *Store, pitch int, start, dur float64) midi.Note {
	return s.Add(Template{Pitch: pitch, Start: start, Duration: dur, Velocity: 100})
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	b := addNote(s, 62, 1, 1)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, int64(3), s.NextID())
}

func TestUndoRedoRestoresExactState(t *testing.T) {
	s := New()
	addNote(s, 60, 0, 1)
	addNote(s, 64, 1, 0.5)

	before := s.Notes()
	beforeNext := s.NextID()

	addNote(s, 67, 2, 1)
	after := s.Notes()
	afterNext := s.NextID()

	s.Undo()
	assert.Equal(t, before, s.Notes())
	assert.Equal(t, beforeNext, s.NextID())

	s.Redo()
	assert.Equal(t, after, s.Notes())
	assert.Equal(t, afterNext, s.NextID())
}

func TestUndoRedoReplaysIDCounter(t *testing.T) {
	// Undo must roll the id counter back so redo and a fresh add never
	// collide with ids restored later.
	s := New()
	addNote(s, 60, 0, 1)
	s.Undo()
	assert.Equal(t, int64(1), s.NextID())

	n := addNote(s, 61, 0, 1)
	assert.Equal(t, int64(1), n.ID)
}

func TestUndoOnEmptyHistoryIsNoOp(t *testing.T) {
	s := New()
	s.Undo()
	s.Redo()
	assert.Equal(t, 0, s.Len())
}

func TestNewEditTruncatesRedoBranch(t *testing.T) {
	s := New()
	addNote(s, 60, 0, 1)
	addNote(s, 62, 1, 1)
	s.Undo() // back to one note

	addNote(s, 64, 1, 1) // diverge
	s.Redo()             // nothing ahead now

	notes := s.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, 64, notes[1].Pitch)
}

func TestHistoryIsBounded(t *testing.T) {
	s := New()
	for i := 0; i < maxHistory+10; i++ {
		addNote(s, 60, float64(i), 1)
	}
	assert.Equal(t, maxHistory, s.HistoryLen())

	// Oldest snapshots were discarded; undoing all the way back still
	// leaves the earliest notes in place.
	for i := 0; i < maxHistory+10; i++ {
		s.Undo()
	}
	assert.Equal(t, 10, s.Len())
}

func TestUpdateNotePartialFields(t *testing.T) {
	s := New()
	n := addNote(s, 60, 0, 1)

	pitch := 72
	s.UpdateNote(n.ID, Update{Pitch: &pitch})

	got := s.Notes()[0]
	assert.Equal(t, 72, got.Pitch)
	assert.Equal(t, 1.0, got.Duration)

	// Unknown id is ignored.
	s.UpdateNote(999, Update{Pitch: &pitch})
	assert.Equal(t, 1, s.Len())
}

func TestUpdateManyAppliesDeltas(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	b := addNote(s, 64, 1, 1)
	addNote(s, 67, 2, 1)

	s.UpdateMany([]int64{a.ID, b.ID}, 0.25, 2)

	notes := s.Notes()
	assert.Equal(t, 0.25, notes[0].Start)
	assert.Equal(t, 62, notes[0].Pitch)
	assert.Equal(t, 1.25, notes[1].Start)
	assert.Equal(t, 66, notes[1].Pitch)
	assert.Equal(t, 2.0, notes[2].Start)
	assert.Equal(t, 67, notes[2].Pitch)
}

func TestApplyPositionsIsAtomicReplace(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	b := addNote(s, 64, 1, 1)

	s.ApplyPositions(map[int64]Position{
		a.ID: {Start: 2, Pitch: 50},
		b.ID: {Start: 3, Pitch: 51},
	})

	notes := s.Notes()
	assert.Equal(t, 2.0, notes[0].Start)
	assert.Equal(t, 50, notes[0].Pitch)
	assert.Equal(t, 3.0, notes[1].Start)
	assert.Equal(t, 51, notes[1].Pitch)
}

func TestDeleteRemovesAndPrunesSelection(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	b := addNote(s, 64, 1, 1)
	s.Select([]int64{a.ID, b.ID})

	s.Delete(a.ID)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []int64{b.ID}, s.Selection())

	// Deleting a missing id changes nothing, including history.
	h := s.HistoryLen()
	s.Delete(999)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, h, s.HistoryLen())
}

func TestDeleteSelected(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	addNote(s, 64, 1, 1)
	s.Select([]int64{a.ID})

	s.DeleteSelected()
	require.Equal(t, 1, s.Len())
	assert.Equal(t, 64, s.Notes()[0].Pitch)
	assert.Empty(t, s.Selection())

	// Empty selection is a silent no-op.
	h := s.HistoryLen()
	s.DeleteSelected()
	assert.Equal(t, h, s.HistoryLen())
}

func TestClearIsUndoable(t *testing.T) {
	s := New()
	addNote(s, 60, 0, 1)
	addNote(s, 64, 1, 1)

	s.Clear()
	assert.Equal(t, 0, s.Len())

	s.Undo()
	assert.Equal(t, 2, s.Len())
}

func TestSelectionDropsUnknownIDs(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	s.Select([]int64{a.ID, 999})
	assert.Equal(t, []int64{a.ID}, s.Selection())
}

func TestToggleSelect(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)

	s.ToggleSelect(a.ID)
	assert.True(t, s.IsSelected(a.ID))
	s.ToggleSelect(a.ID)
	assert.False(t, s.IsSelected(a.ID))

	// Unknown ids never enter the selection.
	s.ToggleSelect(999)
	assert.Empty(t, s.Selection())
}

func TestSelectAllAndClearSelection(t *testing.T) {
	s := New()
	addNote(s, 60, 0, 1)
	addNote(s, 64, 1, 1)

	s.SelectAll()
	assert.Len(t, s.Selection(), 2)

	s.ClearSelection()
	assert.Empty(t, s.Selection())
}

func TestCopyNormalizesClipboardStarts(t *testing.T) {
	s := New()
	a := addNote(s, 60, 2, 1)
	b := addNote(s, 64, 3.5, 0.5)
	s.Select([]int64{a.ID, b.ID})

	s.CopySelected()
	assert.Equal(t, 2, s.ClipboardLen())

	s.ClearSelection()
	s.PasteClipboard(8)

	notes := s.Notes()
	require.Len(t, notes, 4)
	assert.Equal(t, 8.0, notes[2].Start)
	assert.Equal(t, 9.5, notes[3].Start)

	// Pasted notes become the selection, with fresh ids.
	sel := s.Selection()
	assert.Equal(t, []int64{notes[2].ID, notes[3].ID}, sel)
	assert.NotContains(t, sel, a.ID)
}

func TestCopyWithEmptySelectionKeepsClipboard(t *testing.T) {
	s := New()
	a := addNote(s, 60, 0, 1)
	s.Select([]int64{a.ID})
	s.CopySelected()

	s.ClearSelection()
	s.CopySelected()
	assert.Equal(t, 1, s.ClipboardLen())
}

func TestCutSelected(t *testing.T) {
	s := New()
	a := addNote(s, 60, 1, 1)
	addNote(s, 64, 2, 1)
	s.Select([]int64{a.ID})

	s.CutSelected()
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.ClipboardLen())

	s.PasteClipboard(0)
	notes := s.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, 0.0, notes[1].Start)
	assert.Equal(t, 60, notes[1].Pitch)
}

func TestPasteEmptyClipboardIsNoOp(t *testing.T) {
	s := New()
	h := s.HistoryLen()
	s.PasteClipboard(4)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, h, s.HistoryLen())
}

func TestUndoPrunesStaleSelection(t *testing.T) {
	s := New()
	addNote(s, 60, 0, 1)
	b := addNote(s, 64, 1, 1)
	s.Select([]int64{b.ID})

	s.Undo() // b disappears
	assert.Empty(t, s.Selection())
}

func TestTempoAndPosition(t *testing.T) {
	s := New()
	assert.Equal(t, float64(DefaultTempo), s.Tempo())

	s.SetTempo(90)
	assert.Equal(t, 90.0, s.Tempo())
	s.SetTempo(0)
	assert.Equal(t, 90.0, s.Tempo())

	s.SetPosition(-2)
	assert.Equal(t, 0.0, s.Position())
	s.SetPosition(3.5)
	assert.Equal(t, 3.5, s.Position())
}

func TestOnChangeFiresAfterMutation(t *testing.T) {
	s := New()
	var calls int
	s.OnChange(func() { calls++ })

	addNote(s, 60, 0, 1)
	s.SelectAll()
	s.Undo()

	assert.Equal(t, 3, calls)
}
