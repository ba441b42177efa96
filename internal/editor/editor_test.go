package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/grid"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
)

// center returns canvas coordinates over the middle of a note's row.
func center(beat float64, pitch int) (x, y float64) {
	return grid.XAtBeat(beat), grid.YAtPitch(pitch) + grid.KeyHeight/2
}

func seed(s *store.Store, pitch int, start, dur float64) midi.Note {
	return s.Add(store.Template{Pitch: pitch, Start: start, Duration: dur, Velocity: 100})
}

func TestClickOnEmptyAddsNote(t *testing.T) {
	s := store.New()
	e := New(s)

	x, y := center(2.6, 60)
	e.PointerDown(x, y, false)
	e.PointerUp(x, y, false)

	notes := s.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, 60, notes[0].Pitch)
	assert.Equal(t, 2.5, notes[0].Start) // floored to the grid
	assert.Equal(t, grid.Unit, notes[0].Duration)
	assert.Equal(t, midi.DefaultVelocity, notes[0].Velocity)
}

func TestClickBelowRangeDoesNothing(t *testing.T) {
	s := store.New()
	e := New(s)

	y := grid.KeyHeight*float64(grid.TotalKeys) + 50
	e.PointerDown(10, y, false)
	e.PointerUp(10, y, false)

	assert.Equal(t, 0, s.Len())
}

func TestMoveSnapsAndPushesHistoryOnce(t *testing.T) {
	s := store.New()
	n := seed(s, 60, 1, 1)
	e := New(s)

	x, y := center(1.5, 60)
	e.PointerDown(x, y, false)
	require.True(t, e.Dragging())

	// Drag right 0.3 beats (snaps to 0.25) and up two rows, through an
	// intermediate position first.
	e.PointerMove(x+0.1*grid.PixelsPerBeat, y)
	e.PointerMove(x+0.3*grid.PixelsPerBeat, y-2*grid.KeyHeight)
	e.PointerUp(x+0.3*grid.PixelsPerBeat, y-2*grid.KeyHeight, false)

	got := s.Notes()[0]
	assert.Equal(t, 1.25, got.Start)
	assert.Equal(t, 62, got.Pitch)
	assert.Equal(t, []int64{n.ID}, s.Selection())

	// The whole gesture is one undo step.
	s.Undo()
	got = s.Notes()[0]
	assert.Equal(t, 1.0, got.Start)
	assert.Equal(t, 60, got.Pitch)
}

func TestGroupMoveClampsPerNote(t *testing.T) {
	s := store.New()
	low := seed(s, grid.MinPitch, 0, 1)
	high := seed(s, 60, 2, 1)
	s.Select([]int64{low.ID, high.ID})
	e := New(s)

	// Grab the already-selected high note and drag down three rows.
	x, y := center(2.5, 60)
	e.PointerDown(x, y, false)
	e.PointerMove(x, y+3*grid.KeyHeight)
	e.PointerUp(x, y+3*grid.KeyHeight, false)

	notes := s.Notes()
	assert.Equal(t, grid.MinPitch, notes[0].Pitch) // clamped, cannot go lower
	assert.Equal(t, 57, notes[1].Pitch)            // moved the full delta
	assert.Len(t, s.Selection(), 2)
}

func TestClickUnselectedNoteMovesItAlone(t *testing.T) {
	s := store.New()
	a := seed(s, 60, 0, 1)
	b := seed(s, 64, 2, 1)
	s.Select([]int64{a.ID})
	e := New(s)

	x, y := center(2.5, 64)
	e.PointerDown(x, y, false)
	e.PointerMove(x+grid.PixelsPerBeat, y)
	e.PointerUp(x+grid.PixelsPerBeat, y, false)

	notes := s.Notes()
	assert.Equal(t, 0.0, notes[0].Start)
	assert.Equal(t, 3.0, notes[1].Start)
	assert.Equal(t, []int64{b.ID}, s.Selection())
}

func TestResizeSnapsAndFloors(t *testing.T) {
	s := store.New()
	n := seed(s, 60, 0, 1)
	e := New(s)

	// Pointer-down inside the right-edge band.
	x := grid.XAtBeat(n.End()) - 2
	y := grid.YAtPitch(60) + grid.KeyHeight/2
	e.PointerDown(x, y, false)
	require.True(t, e.Dragging())

	e.PointerMove(x+0.6*grid.PixelsPerBeat, y)
	assert.Equal(t, 1.5, s.Notes()[0].Duration)

	// Dragging far left floors at one grid unit.
	e.PointerMove(x-5*grid.PixelsPerBeat, y)
	assert.Equal(t, grid.Unit, s.Notes()[0].Duration)

	e.PointerUp(x-5*grid.PixelsPerBeat, y, false)
	s.Undo()
	assert.Equal(t, 1.0, s.Notes()[0].Duration)
}

func TestShiftClickTogglesWithoutDrag(t *testing.T) {
	s := store.New()
	a := seed(s, 60, 0, 1)
	e := New(s)

	x, y := center(0.5, 60)
	e.PointerDown(x, y, true)
	assert.False(t, e.Dragging())
	assert.True(t, s.IsSelected(a.ID))

	e.PointerUp(x, y, true)
	e.PointerDown(x, y, true)
	assert.False(t, s.IsSelected(a.ID))
}

func TestRubberBandSelectsByOverlap(t *testing.T) {
	s := store.New()
	inside := seed(s, 60, 1, 1)
	seed(s, 70, 6, 1) // far outside
	// Touching the rectangle's right edge exactly: zero-area overlap.
	edge := seed(s, 60, 3, 1)
	e := New(s)

	e.PointerDown(0, 0, false)
	e.PointerMove(grid.XAtBeat(3), grid.YAtPitch(grid.MinPitch))
	e.PointerUp(grid.XAtBeat(3), grid.YAtPitch(grid.MinPitch), false)

	sel := s.Selection()
	assert.Contains(t, sel, inside.ID)
	assert.NotContains(t, sel, edge.ID)
	assert.Len(t, sel, 1)
}

func TestShiftRubberBandUnionsSelection(t *testing.T) {
	s := store.New()
	a := seed(s, 80, 10, 1)
	b := seed(s, 60, 1, 1)
	s.Select([]int64{a.ID})
	e := New(s)

	e.PointerDown(0, grid.YAtPitch(61), true)
	e.PointerMove(grid.XAtBeat(3), grid.YAtPitch(59))
	e.PointerUp(grid.XAtBeat(3), grid.YAtPitch(59), true)

	sel := s.Selection()
	assert.Contains(t, sel, a.ID)
	assert.Contains(t, sel, b.ID)
}

func TestContextClickDeletes(t *testing.T) {
	s := store.New()
	n := seed(s, 60, 0, 1)
	seed(s, 64, 2, 1)
	e := New(s)

	x, y := center(0.5, 60)
	e.ContextClick(x, y)

	require.Equal(t, 1, s.Len())
	assert.NotEqual(t, n.ID, s.Notes()[0].ID)

	// Empty space: no-op.
	e.ContextClick(grid.XAtBeat(10), y)
	assert.Equal(t, 1, s.Len())
}

func TestNudgeMovesSelection(t *testing.T) {
	s := store.New()
	a := seed(s, 60, 1, 1)
	b := seed(s, 64, 2, 1)
	s.Select([]int64{a.ID, b.ID})
	e := New(s)

	e.Nudge(NudgeRight)
	e.Nudge(NudgeUp)

	notes := s.Notes()
	assert.Equal(t, 1+grid.Unit, notes[0].Start)
	assert.Equal(t, 61, notes[0].Pitch)
	assert.Equal(t, 2+grid.Unit, notes[1].Start)
	assert.Equal(t, 65, notes[1].Pitch)
}

func TestNudgeRejectedWhollyAtBounds(t *testing.T) {
	s := store.New()
	atZero := seed(s, 60, 0, 1)
	later := seed(s, 64, 4, 1)
	s.Select([]int64{atZero.ID, later.ID})
	e := New(s)

	h := s.HistoryLen()
	e.Nudge(NudgeLeft)

	// Neither note moved and no history entry was left behind.
	notes := s.Notes()
	assert.Equal(t, 0.0, notes[0].Start)
	assert.Equal(t, 4.0, notes[1].Start)
	assert.Equal(t, h, s.HistoryLen())
}

func TestNudgeEmptySelectionIsNoOp(t *testing.T) {
	s := store.New()
	seed(s, 60, 1, 1)
	e := New(s)

	h := s.HistoryLen()
	e.Nudge(NudgeRight)
	assert.Equal(t, 1.0, s.Notes()[0].Start)
	assert.Equal(t, h, s.HistoryLen())
}

func TestCursorFeedback(t *testing.T) {
	s := store.New()
	n := seed(s, 60, 0, 1)
	e := New(s)

	x, y := center(0.5, 60)
	assert.Equal(t, CursorGrab, e.CursorAt(x, y))
	assert.Equal(t, CursorResize, e.CursorAt(grid.XAtBeat(n.End())-2, y))
	assert.Equal(t, CursorCrosshair, e.CursorAt(grid.XAtBeat(10), y))

	e.PointerDown(x, y, false)
	assert.Equal(t, CursorGrabbing, e.CursorAt(x, y))
}
