package handlers

import (
	"net/http"
	"strconv"

	"github.com/spherical/snap2pdf/internal/capture"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/observability"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// DocumentHandler runs the one-shot workflows: capture, merge, split and
// extract. Each request is one workflow run and one download.
type DocumentHandler struct {
	logger    *observability.Logger
	svc       *workflow.Service
	maxUpload int64
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(logger *observability.Logger, svc *workflow.Service, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{
		logger:    logger,
		svc:       svc,
		maxUpload: maxUpload,
	}
}

// Capture handles POST /capture. The browser grabs the frame and posts it as
// the "frame" field; the page is sized from the frame's own dimensions.
func (h *DocumentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	upload, err := readUpload(w, r, "frame", h.maxUpload)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	frame, err := capture.DecodeFrame(upload.Data)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}

	sink := newAttachment(w)
	if _, err := h.svc.Capture().CaptureOnce(r.Context(), capture.NewFrameCamera(frame), sink); err != nil {
		fail(h.logger, w, r, sink, err)
	}
}

// Merge handles POST /merge with two or more "files" in selection order.
func (h *DocumentHandler) Merge(w http.ResponseWriter, r *http.Request) {
	inputs, err := readUploads(w, r, "files", h.maxUpload)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}

	sink := newAttachment(w)
	if _, err := h.svc.Merge(r.Context(), inputs, sink); err != nil {
		fail(h.logger, w, r, sink, err)
	}
}

// Split handles POST /split?page=N with one "file".
func (h *DocumentHandler) Split(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		fail(h.logger, w, r, nil, domain.ValidationError("page must be a whole number", err))
		return
	}
	input, err := readUpload(w, r, "file", h.maxUpload)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}

	sink := newAttachment(w)
	if _, err := h.svc.Split(r.Context(), input, domain.PageSelection(page), sink); err != nil {
		fail(h.logger, w, r, sink, err)
	}
}

// Extract handles POST /extract with one "file" and returns the text as
// JSON.
func (h *DocumentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	input, err := readUpload(w, r, "file", h.maxUpload)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}

	result, err := h.svc.Extract(r.Context(), input, nil)
	if err != nil {
		fail(h.logger, w, r, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
