package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ajithraghavan/Voice-To-MIDI/internal/editor"
	apperrors "github.com/ajithraghavan/Voice-To-MIDI/internal/errors"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/midi"
	"github.com/ajithraghavan/Voice-To-MIDI/internal/store"
)

// stateResponse is the full editing state pushed to clients.
type stateResponse struct {
	Notes     []midi.Note `json:"notes"`
	Selection []int64     `json:"selection"`
	Tempo     float64     `json:"tempo"`
	Position  float64     `json:"position"`
	Recording bool        `json:"recording"`
	Playing   bool        `json:"playing"`
}

func (s *Server) state() stateResponse {
	st := s.sessions.Store()
	return stateResponse{
		Notes:     st.Notes(),
		Selection: st.Selection(),
		Tempo:     st.Tempo(),
		Position:  st.Position(),
		Recording: s.sessions.Recording(),
		Playing:   s.sessions.Playing(),
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleState returns the full editing state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleAddNote creates a note from a template
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var t store.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode note: %w", err))
		return
	}
	n := s.sessions.Store().Add(t)
	s.writeJSON(w, http.StatusCreated, n)
}

// handleUpdateNote patches fields on one note
func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad note id: %w", err))
		return
	}
	var u store.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode update: %w", err))
		return
	}
	s.sessions.Store().UpdateNote(id, u)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleDeleteNote removes one note
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad note id: %w", err))
		return
	}
	s.sessions.Store().Delete(id)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleClearNotes removes every note
func (s *Server) handleClearNotes(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().Clear()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleSelect replaces the selection
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode selection: %w", err))
		return
	}
	s.sessions.Store().Select(body.IDs)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleToggleSelect flips one note's selection membership
func (s *Server) handleToggleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad note id: %w", err))
		return
	}
	s.sessions.Store().ToggleSelect(id)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleSelectAll selects every note
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().SelectAll()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleClearSelection empties the selection
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().ClearSelection()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleDeleteSelected removes the selected notes
func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().DeleteSelected()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleCopy copies the selection to the clipboard
func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().CopySelected()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleCut cuts the selection to the clipboard
func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().CutSelected()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handlePaste pastes the clipboard at a beat
func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	var body struct {
		At float64 `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode paste: %w", err))
		return
	}
	s.sessions.Store().PasteClipboard(body.At)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleUndo rolls back one history entry
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().Undo()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleRedo reapplies one history entry
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.sessions.Store().Redo()
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleNudge moves the selection one grid or pitch step
func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode nudge: %w", err))
		return
	}
	var dir editor.NudgeDirection
	switch body.Direction {
	case "left":
		dir = editor.NudgeLeft
	case "right":
		dir = editor.NudgeRight
	case "up":
		dir = editor.NudgeUp
	case "down":
		dir = editor.NudgeDown
	default:
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("unknown direction %q", body.Direction))
		return
	}
	s.sessions.Editor().Nudge(dir)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleSetTempo changes the tempo for future sessions
func (s *Server) handleSetTempo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tempo float64 `json:"tempo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode tempo: %w", err))
		return
	}
	if body.Tempo <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("tempo must be positive"))
		return
	}
	s.sessions.Store().SetTempo(body.Tempo)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleSetPosition moves the playback cursor
func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Beat float64 `json:"beat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode position: %w", err))
		return
	}
	s.sessions.Store().SetPosition(body.Beat)
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleRecordStart begins a recording session
func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.StartRecording(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleRecordStop ends the recording session
func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.StopRecording(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.state())
}

// handlePlayStart begins playback
func (s *Server) handlePlayStart(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.StartPlayback(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.state())
}

// handlePlayStop ends playback
func (s *Server) handlePlayStop(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.StopPlayback(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.state())
}

// handleExportMIDI streams the collection as a standard MIDI file
func (s *Server) handleExportMIDI(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Store()
	notes := st.Notes()
	if len(notes) == 0 {
		s.writeError(w, http.StatusNotFound, apperrors.ErrNoNotes)
		return
	}
	midi.SortNotes(notes)

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="recording.mid"`)
	if err := midi.WriteSMF(w, notes, st.Tempo()); err != nil {
		s.logger.Error("midi export failed", "error", err)
	}
}

// handleEvents pushes a state snapshot over SSE whenever the store changes
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.sessions.Subscribe()
	defer cancel()

	send := func() bool {
		data, err := json.Marshal(s.state())
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
		flusher.Flush()
		return true
	}
	if !send() {
		return
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
			if !send() {
				return
			}
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeSessionError maps session sentinels to HTTP statuses
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSessionActive):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, apperrors.ErrNoSession), errors.Is(err, apperrors.ErrNoNotes):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, apperrors.ErrAudioUnavailable), errors.Is(err, apperrors.ErrNoMIDIOutput),
		errors.Is(err, apperrors.ErrToolNotInstalled):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
