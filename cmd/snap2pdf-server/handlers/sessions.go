package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/snap2pdf/internal/annotate"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/observability"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// SessionHandler exposes annotation edit sessions.
type SessionHandler struct {
	logger    *observability.Logger
	sessions  *workflow.SessionStore
	maxUpload int64
	quality   int
}

// NewSessionHandler creates a new session handler. quality is the JPEG
// quality of the background preview.
func NewSessionHandler(logger *observability.Logger, sessions *workflow.SessionStore, maxUpload int64, quality int) *SessionHandler {
	return &SessionHandler{
		logger:    logger,
		sessions:  sessions,
		maxUpload: maxUpload,
		quality:   quality,
	}
}

// StyleDTO is the look of new text objects.
type StyleDTO struct {
	Color    string  `json:"color"`
	FontSize float64 `json:"font_size"`
	Family   string  `json:"family"`
}

// SessionDTO represents an edit session.
type SessionDTO struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	PageCount int                   `json:"page_count"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	State     string                `json:"state"`
	Style     StyleDTO              `json:"style"`
	Texts     []annotate.TextObject `json:"texts"`
}

// TextPositionDTO is the body of POST /sessions/{id}/texts.
type TextPositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextUpdateDTO is the body of PATCH /sessions/{id}/texts/{textId}. X and Y
// move the object and must come together; Text replaces its content.
type TextUpdateDTO struct {
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	Text *string  `json:"text,omitempty"`
}

func toSessionDTO(sess *workflow.EditSession) SessionDTO {
	w, h := sess.Size()
	style := sess.Style()
	texts := sess.Texts()
	if texts == nil {
		texts = []annotate.TextObject{}
	}
	return SessionDTO{
		ID:        sess.ID,
		Name:      sess.Name,
		PageCount: sess.PageCount,
		Width:     w,
		Height:    h,
		State:     string(sess.State()),
		Style: StyleDTO{
			Color:    annotate.Hex(style.Color),
			FontSize: style.FontSize,
			Family:   style.Family,
		},
		Texts: texts,
	}
}

// Create handles POST /sessions with one "file".
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := readUpload(w, r, "file", h.maxUpload)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	sess, err := h.sessions.Create(r.Context(), input)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess))
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

// Background handles GET /sessions/{id}/background: page 1 without overlay.
func (h *SessionHandler) Background(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := sess.BackgroundJPEG(h.quality)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	w.Header().Set("Content-Type", domain.ContentTypeJPEG)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// AddText handles POST /sessions/{id}/texts.
func (h *SessionHandler) AddText(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req TextPositionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	obj, err := sess.AddText(req.X, req.Y)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

// UpdateText handles PATCH /sessions/{id}/texts/{textId}.
func (h *SessionHandler) UpdateText(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req TextUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if (req.X == nil) != (req.Y == nil) {
		writeError(w, http.StatusBadRequest, "x and y must be given together", "")
		return
	}
	if req.X == nil && req.Text == nil {
		writeError(w, http.StatusBadRequest, "nothing to update", "")
		return
	}

	id := chi.URLParam(r, "textId")
	var (
		obj annotate.TextObject
		err error
	)
	if req.X != nil {
		if obj, err = sess.MoveText(id, *req.X, *req.Y); err != nil {
			fail(h.logger, w, r, nil, err)
			return
		}
	}
	if req.Text != nil {
		if obj, err = sess.EditText(id, *req.Text); err != nil {
			fail(h.logger, w, r, nil, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, obj)
}

// DeleteText handles DELETE /sessions/{id}/texts/{textId}.
func (h *SessionHandler) DeleteText(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveText(chi.URLParam(r, "textId")); err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Save handles POST /sessions/{id}/save and streams snap2pdf_edited.pdf.
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sink := newAttachment(w)
	if _, err := h.sessions.Save(r.Context(), chi.URLParam(r, "id"), sink); err != nil {
		fail(h.logger, w, r, sink, err)
	}
}

// Delete handles DELETE /sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*workflow.EditSession, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return nil, false
	}
	return sess, true
}
