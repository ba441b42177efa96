// Package editor interprets pointer and keyboard gestures against the note
// store: click-to-create, move, resize, rubber-band multi-select, context
// delete, and arrow-key nudging. Coordinates are piano-roll canvas pixels;
// the grid package translates them to beats and pitches.
package editor

import (
	"math"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/grid"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
)

// resizeBand is how many pixels from a note's right edge count as the
// resize handle.
const resizeBand = 8

// dragThreshold is the pointer travel, in pixels, below which a rubber-band
// gesture is still treated as a plain click.
const dragThreshold = 3

// Cursor is the pointer shape the host should display.
type Cursor string

const (
	CursorCrosshair Cursor = "crosshair"
	CursorGrab      Cursor = "grab"
	CursorGrabbing  Cursor = "grabbing"
	CursorResize    Cursor = "ew-resize"
)

// NudgeDirection selects the axis and sign of an arrow-key nudge.
type NudgeDirection int

const (
	NudgeLeft NudgeDirection = iota
	NudgeRight
	NudgeUp
	NudgeDown
)

// Rect is an axis-aligned rectangle in canvas pixels. X1/Y1 need not be the
// smaller corner; Normalize orders them.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// Normalize returns the rectangle with X1<=X2 and Y1<=Y2.
func (r Rect) Normalize() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Exactly one drag runs at a time, represented as a tagged variant so each
// mode carries only the state it captured at pointer-down.
type dragState interface {
	isDrag()
}

type dragMove struct {
	startX, startY float64
	origins        map[int64]store.Position
}

type dragResize struct {
	noteID       int64
	startX       float64
	origDuration float64
}

type dragRubber struct {
	rect  Rect
	moved bool
}

func (dragMove) isDrag()   {}
func (dragResize) isDrag() {}
func (dragRubber) isDrag() {}

// Editor is the interaction state machine. It is not safe for concurrent
// use; the host delivers pointer and key events from a single goroutine.
type Editor struct {
	store *store.Store
	drag  dragState
}

// New creates an editor over the given store.
func New(s *store.Store) *Editor {
	return &Editor{store: s}
}

// Dragging reports whether a gesture is in progress.
func (e *Editor) Dragging() bool {
	return e.drag != nil
}

// SelectionRect returns the live rubber-band rectangle, if one is being
// drawn, for the host to render.
func (e *Editor) SelectionRect() (Rect, bool) {
	if d, ok := e.drag.(*dragRubber); ok && d.moved {
		return d.rect.Normalize(), true
	}
	return Rect{}, false
}

// noteAt returns the first note covering the given beat/pitch cell.
func (e *Editor) noteAt(beat float64, pitch int) (midi.Note, bool) {
	for _, n := range e.store.Notes() {
		if n.Pitch == pitch && beat >= n.Start && beat <= n.End() {
			return n, true
		}
	}
	return midi.Note{}, false
}

// CursorAt reports the pointer shape for the given position, for hover
// feedback while idle.
func (e *Editor) CursorAt(x, y float64) Cursor {
	switch e.drag.(type) {
	case *dragMove:
		return CursorGrabbing
	case *dragResize:
		return CursorResize
	case *dragRubber:
		return CursorCrosshair
	}
	n, ok := e.noteAt(grid.BeatAtX(x), grid.PitchAtY(y))
	if !ok {
		return CursorCrosshair
	}
	if x >= grid.XAtBeat(n.End())-resizeBand {
		return CursorResize
	}
	return CursorGrab
}

// PointerDown begins a gesture. On a note's right-edge band it starts a
// resize; elsewhere on a note it starts a move (group move when the note is
// already selected, solo otherwise); shift-click on a note toggles its
// selection without dragging; on empty grid it starts a rubber-band,
// clearing the selection first unless shift is held.
func (e *Editor) PointerDown(x, y float64, shift bool) {
	pitch := grid.PitchAtY(y)
	if pitch < grid.MinPitch || pitch > grid.MaxPitch {
		return
	}
	beat := grid.BeatAtX(x)

	n, ok := e.noteAt(beat, pitch)
	if !ok {
		if !shift {
			e.store.ClearSelection()
		}
		e.drag = &dragRubber{rect: Rect{X1: x, Y1: y, X2: x, Y2: y}}
		return
	}

	if x >= grid.XAtBeat(n.End())-resizeBand {
		e.store.PushHistory()
		e.store.Select([]int64{n.ID})
		e.drag = &dragResize{noteID: n.ID, startX: x, origDuration: n.Duration}
		return
	}

	if shift {
		e.store.ToggleSelect(n.ID)
		return
	}

	if !e.store.IsSelected(n.ID) {
		e.store.PushHistory()
		e.store.Select([]int64{n.ID})
		e.drag = &dragMove{
			startX: x,
			startY: y,
			origins: map[int64]store.Position{
				n.ID: {Start: n.Start, Pitch: n.Pitch},
			},
		}
		return
	}

	// Already selected: the whole selection moves together.
	e.store.PushHistory()
	origins := make(map[int64]store.Position)
	for _, sel := range e.store.SelectedNotes() {
		origins[sel.ID] = store.Position{Start: sel.Start, Pitch: sel.Pitch}
	}
	e.drag = &dragMove{startX: x, startY: y, origins: origins}
}

// PointerMove advances the active gesture. Move and resize write provisional
// positions straight into the store; history was already pushed at
// pointer-down, so intermediate frames are not individually undoable.
func (e *Editor) PointerMove(x, y float64) {
	switch d := e.drag.(type) {
	case *dragRubber:
		d.rect.X2, d.rect.Y2 = x, y
		if !d.moved {
			dx := x - d.rect.X1
			dy := y - d.rect.Y1
			if math.Hypot(dx, dy) >= dragThreshold {
				d.moved = true
			}
		}

	case *dragResize:
		deltaBeat := (x - d.startX) / grid.PixelsPerBeat
		dur := grid.Snap(d.origDuration + deltaBeat)
		if dur < grid.Unit {
			dur = grid.Unit
		}
		e.store.UpdateNote(d.noteID, store.Update{Duration: &dur})

	case *dragMove:
		deltaBeat := grid.Snap((x - d.startX) / grid.PixelsPerBeat)
		deltaPitch := -int(math.Round((y - d.startY) / grid.KeyHeight))

		// One atomic write so the group never renders mid-move. Each note
		// clamps independently at the domain edge.
		positions := make(map[int64]store.Position, len(d.origins))
		for id, orig := range d.origins {
			positions[id] = store.Position{
				Start: grid.ClampStart(orig.Start + deltaBeat),
				Pitch: grid.ClampPitch(orig.Pitch + deltaPitch),
			}
		}
		e.store.ApplyPositions(positions)
	}
}

// PointerUp ends the gesture. A rubber-band that actually travelled selects
// every note whose box overlaps the rectangle with positive area, unioning
// with the prior selection when shift is held; one that never travelled is
// a plain click and creates a note at the snapped cell.
func (e *Editor) PointerUp(x, y float64, shift bool) {
	d, ok := e.drag.(*dragRubber)
	e.drag = nil
	if !ok {
		return
	}

	if d.moved {
		r := d.rect.Normalize()
		var hits []int64
		for _, n := range e.store.Notes() {
			nx := grid.XAtBeat(n.Start)
			ny := grid.YAtPitch(n.Pitch)
			nw := n.Duration * grid.PixelsPerBeat
			if nx+nw > r.X1 && nx < r.X2 && ny+grid.KeyHeight > r.Y1 && ny < r.Y2 {
				hits = append(hits, n.ID)
			}
		}
		if shift {
			hits = append(hits, e.store.Selection()...)
		}
		e.store.Select(hits)
		return
	}

	pitch := grid.PitchAtY(y)
	if pitch < grid.MinPitch || pitch > grid.MaxPitch {
		return
	}
	e.store.Add(store.Template{
		Pitch:    pitch,
		Start:    grid.SnapDown(grid.BeatAtX(x)),
		Duration: grid.Unit,
		Velocity: midi.DefaultVelocity,
	})
}

// ContextClick deletes the note under the pointer, if any.
func (e *Editor) ContextClick(x, y float64) {
	if n, ok := e.noteAt(grid.BeatAtX(x), grid.PitchAtY(y)); ok {
		e.store.Delete(n.ID)
	}
}

// Nudge moves the whole selection one minor-grid step or one pitch step.
// The move is validated against the domain bounds first and rejected
// outright if any member would leave them; a rejected nudge leaves no
// history entry.
func (e *Editor) Nudge(dir NudgeDirection) {
	selected := e.store.SelectedNotes()
	if len(selected) == 0 {
		return
	}

	var deltaStart float64
	var deltaPitch int
	switch dir {
	case NudgeLeft:
		deltaStart = -grid.Unit
	case NudgeRight:
		deltaStart = grid.Unit
	case NudgeUp:
		deltaPitch = 1
	case NudgeDown:
		deltaPitch = -1
	}

	for _, n := range selected {
		if n.Start+deltaStart < 0 {
			return
		}
		p := n.Pitch + deltaPitch
		if p < grid.MinPitch || p > grid.MaxPitch {
			return
		}
	}

	ids := make([]int64, len(selected))
	for i, n := range selected {
		ids[i] = n.ID
	}
	e.store.PushHistory()
	e.store.UpdateMany(ids, deltaStart, deltaPitch)
}
