package handlers

import (
	"net/http"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/service"
)

// ApprovalHandler serves the pending-member and update-request queues
type ApprovalHandler struct {
	approvalService *service.ApprovalService
	log             *logger.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalService *service.ApprovalService, log *logger.Logger) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, log: log}
}

type reviewRequest struct {
	Action     string `json:"action"`
	ReviewNote string `json:"reviewNote"`
}

// approve maps the review action to a verdict, rejecting anything that is
// neither "approve" nor "reject".
func (req reviewRequest) approve() (bool, error) {
	switch req.Action {
	case "approve":
		return true, nil
	case "reject":
		return false, nil
	default:
		return false, apperr.Validation("Action must be approve or reject", "الإجراء يجب أن يكون موافقة أو رفض")
	}
}

// SubmitPending handles POST /api/pending
func (h *ApprovalHandler) SubmitPending(w http.ResponseWriter, r *http.Request) {
	var pending models.PendingMember
	if err := decodeBody(r, &pending); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	pending.SubmittedBy = &user.ID

	created, err := h.approvalService.SubmitPendingMember(&pending)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListPending handles GET /api/admin/pending, optionally by ?status=
func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	pending, err := h.approvalService.ListPendingMembers(status)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, pending)
}

// GetPending handles GET /api/admin/pending/{id}
func (h *ApprovalHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	pending, err := h.approvalService.GetPendingMember(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, pending)
}

// ReviewPending handles POST /api/admin/pending/{id}
func (h *ApprovalHandler) ReviewPending(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	approve, err := req.approve()
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	reviewed, err := h.approvalService.ReviewPendingMember(user.ID, id, approve, req.ReviewNote)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewed)
}

// SubmitUpdateRequest handles POST /api/update-requests
func (h *ApprovalHandler) SubmitUpdateRequest(w http.ResponseWriter, r *http.Request) {
	var req models.MemberUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	req.SubmittedBy = &user.ID

	created, err := h.approvalService.SubmitUpdateRequest(&req)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListUpdateRequests handles GET /api/admin/update-requests, optionally by ?status=
func (h *ApprovalHandler) ListUpdateRequests(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	requests, err := h.approvalService.ListUpdateRequests(status)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// GetUpdateRequest handles GET /api/admin/update-requests/{id}
func (h *ApprovalHandler) GetUpdateRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	request, err := h.approvalService.GetUpdateRequest(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

// ReviewUpdateRequest handles POST /api/admin/update-requests/{id}
func (h *ApprovalHandler) ReviewUpdateRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	approve, err := req.approve()
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	reviewed, err := h.approvalService.ReviewUpdateRequest(user.ID, id, approve, req.ReviewNote)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewed)
}
