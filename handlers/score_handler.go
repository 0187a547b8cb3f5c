package handlers

import (
	"net/http"

	"github.com/arenadesk/scorekeeper/middleware"
	"github.com/arenadesk/scorekeeper/services"
)

type ScoreHandler struct {
	submissionService services.SubmissionService
	acceptanceService services.AcceptanceService
	auditService      services.AuditService
}

func NewScoreHandler(
	submissionService services.SubmissionService,
	acceptanceService services.AcceptanceService,
	auditService services.AuditService,
) *ScoreHandler {
	return &ScoreHandler{
		submissionService: submissionService,
		acceptanceService: acceptanceService,
		auditService:      auditService,
	}
}

func (h *ScoreHandler) Submit(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.EventID = eventID

	sub, err := h.submissionService.Submit(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"submission": sub}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	subs, err := h.submissionService.ListPendingByEvent(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submissions": subs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) Accept(w http.ResponseWriter, r *http.Request) {
	submissionID, err := idParam(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Force bool `json:"force"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	result, err := h.acceptanceService.AcceptScore(r.Context(), submissionID, input.Force, reviewerID(r), r.RemoteAddr)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) Reject(w http.ResponseWriter, r *http.Request) {
	submissionID, err := idParam(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.acceptanceService.RejectScore(r.Context(), submissionID, reviewerID(r), r.RemoteAddr); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "rejected"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) Resync(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.acceptanceService.Resync(r.Context(), eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "resynced"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	limit := 100
	entries, err := h.auditService.ListByEvent(r.Context(), eventID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entries": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// reviewerID extracts the acting user from the JWT claims. Nil means the
// action was taken by an unauthenticated system path and is recorded as such.
func reviewerID(r *http.Request) *int {
	id, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		return nil
	}
	return &id
}
