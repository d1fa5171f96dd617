package handlers

import (
	"net/http"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/service"
)

// MemberHandler serves the family tree itself
type MemberHandler struct {
	memberService *service.MemberService
	log           *logger.Logger
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(memberService *service.MemberService, log *logger.Logger) *MemberHandler {
	return &MemberHandler{memberService: memberService, log: log}
}

// List handles GET /api/members, optionally filtered by ?branch=
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberService.ListMembers(r.URL.Query().Get("branch"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// Get handles GET /api/members/{id}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := h.memberService.GetMember(r.PathValue("id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}

// Children handles GET /api/members/{id}/children
func (h *MemberHandler) Children(w http.ResponseWriter, r *http.Request) {
	children, err := h.memberService.GetChildren(r.PathValue("id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, children)
}

// Create handles POST /api/members. Direct creation bypasses the approval
// queue and is reserved for admins.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var member models.FamilyMember
	if err := decodeBody(r, &member); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	created, err := h.memberService.CreateMember(user.ID, &member)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/members/{id}. Only allow-listed fields are
// applied, anything else in the body is dropped.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var changes map[string]interface{}
	if err := decodeBody(r, &changes); err != nil {
		respondError(w, h.log, err)
		return
	}
	if len(changes) == 0 {
		respondError(w, h.log, apperr.Validation("No changes supplied", "لم يتم تقديم أي تغييرات"))
		return
	}

	user := GetUserFromContext(r.Context())
	updated, err := h.memberService.UpdateMember(user.ID, r.PathValue("id"), changes)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Branches handles GET /api/branches
func (h *MemberHandler) Branches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.memberService.ListBranches()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, branches)
}

// Stats handles GET /api/stats
func (h *MemberHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.memberService.GetStats()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
