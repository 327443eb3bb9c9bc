package handlers

import (
	"net/http"
	"strconv"

	"github.com/spherical/snap2pdf/internal/audit"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/observability"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// defaultRunLimit is the number of runs listed when no limit is given.
const defaultRunLimit = 20

// SystemHandler reports workflow status and run history.
type SystemHandler struct {
	logger   *observability.Logger
	svc      *workflow.Service
	sessions *workflow.SessionStore
	runs     audit.Store
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(logger *observability.Logger, svc *workflow.Service, sessions *workflow.SessionStore, runs audit.Store) *SystemHandler {
	return &SystemHandler{
		logger:   logger,
		svc:      svc,
		sessions: sessions,
		runs:     runs,
	}
}

// StatusDTO represents the API response for GET /status.
type StatusDTO struct {
	Workflows []workflow.WorkflowStatus `json:"workflows"`
	Sessions  int                       `json:"sessions"`
}

// Status handles GET /status.
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusDTO{
		Workflows: h.svc.Status(),
		Sessions:  h.sessions.Len(),
	})
}

// Runs handles GET /runs?limit=N. Without an audit store the list is empty.
func (h *SystemHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number", "")
			return
		}
		limit = n
	}

	recs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		fail(h.logger, w, r, nil, domain.IOError("failed to read run history", err))
		return
	}
	if recs == nil {
		recs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": recs})
}
