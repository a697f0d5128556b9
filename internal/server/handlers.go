package server

import (
	"net/http"
	"time"

	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/application/usecase"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/gorilla/mux"
)

type createRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type seekRequest struct {
	PositionMS int64 `json:"position_ms" validate:"gte=0"`
}

type cropRequest struct {
	StartMS int64 `json:"start_ms" validate:"gte=0"`
	EndMS   int64 `json:"end_ms" validate:"gtfield=StartMS"`
}

type rangeRequest struct {
	StartMS int64 `json:"start_ms" validate:"gte=0"`
	EndMS   int64 `json:"end_ms" validate:"gtfield=StartMS"`
}

type cutRequest struct {
	Ranges []rangeRequest `json:"ranges" validate:"required,min=1,dive"`
}

type insertRequest struct {
	AtMS     int64  `json:"at_ms" validate:"gte=0"`
	SourceID string `json:"source_id" validate:"required"`
}

type clipResponse struct {
	Item  model.AudioItem `json:"item"`
	State string          `json:"state"`
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func (s *Server) clip(w http.ResponseWriter, r *http.Request) (*usecase.ClipManager, bool) {
	m, err := s.clips.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return m, true
}

func describe(m *usecase.ClipManager) clipResponse {
	return clipResponse{Item: m.Item(), State: string(m.State().Kind)}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.clips.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, err := s.clips.Create(r.Context(), req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(m))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	m, ok := s.clip(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(m))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.clips.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transport runs a no-argument playback call and answers with the clip.
func (s *Server) transport(fn func(*usecase.ClipManager, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := s.clip(w, r)
		if !ok {
			return
		}
		if err := fn(m, r); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, describe(m))
	}
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, r *http.Request) error { return m.Play(r.Context()) })(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, _ *http.Request) error { return m.Pause() })(w, r)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, _ *http.Request) error { return m.Stop() })(w, r)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	s.transport(func(m *usecase.ClipManager, _ *http.Request) error { return m.Seek(ms(req.PositionMS)) })(w, r)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	m, ok := s.clip(w, r)
	if !ok {
		return
	}
	rate, err := m.CycleRate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{Rate: rate})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, r *http.Request) error { return m.Record(r.Context()) })(w, r)
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, r *http.Request) error {
		_, err := m.StopRecording(r.Context())
		return err
	})(w, r)
}

// ensureEditing begins a session of the state's kind when the clip is idle.
// A session already in progress for the same kind is reused.
func ensureEditing(m *usecase.ClipManager, kind state.Kind, begin func() error) error {
	if m.State().Kind == kind {
		return nil
	}
	return begin()
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	var req cropRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, ok := s.clip(w, r)
	if !ok {
		return
	}
	if err := ensureEditing(m, state.KindCropping, func() error { return m.BeginCrop(r.Context()) }); err != nil {
		writeError(w, r, err)
		return
	}
	staged, err := m.Crop(r.Context(), ms(req.StartMS), ms(req.EndMS))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clipResponse{Item: staged, State: string(m.State().Kind)})
}

func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	var req cutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, ok := s.clip(w, r)
	if !ok {
		return
	}
	if err := ensureEditing(m, state.KindCutting, func() error { return m.BeginCut(r.Context()) }); err != nil {
		writeError(w, r, err)
		return
	}
	ranges := make([]model.TimeRange, 0, len(req.Ranges))
	for _, rr := range req.Ranges {
		ranges = append(ranges, model.TimeRange{Start: ms(rr.StartMS), End: ms(rr.EndMS)})
	}
	staged, err := m.Cut(r.Context(), ranges...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clipResponse{Item: staged, State: string(m.State().Kind)})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, ok := s.clip(w, r)
	if !ok {
		return
	}
	other, err := s.clips.Open(r.Context(), req.SourceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ensureEditing(m, state.KindInserting, func() error { return m.BeginInsert(r.Context()) }); err != nil {
		writeError(w, r, err)
		return
	}
	staged, err := m.Insert(r.Context(), ms(req.AtMS), other.Item())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clipResponse{Item: staged, State: string(m.State().Kind)})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, r *http.Request) error {
		_, err := m.Apply(r.Context())
		return err
	})(w, r)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.transport(func(m *usecase.ClipManager, r *http.Request) error {
		_, err := m.Cancel(r.Context())
		return err
	})(w, r)
}
