package handlers

import (
	"net/http"

	"familytree/internal/logger"
	"familytree/internal/service"
)

// PhotoHandler serves the photo gallery
type PhotoHandler struct {
	photoService *service.PhotoService
	log          *logger.Logger
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *service.PhotoService, log *logger.Logger) *PhotoHandler {
	return &PhotoHandler{photoService: photoService, log: log}
}

// Create handles POST /api/photos
func (h *PhotoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID *string `json:"memberId"`
		URL      string  `json:"url"`
		Caption  string  `json:"caption"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	photo, err := h.photoService.AddPhoto(user.ID, req.MemberID, req.URL, req.Caption)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, photo)
}

// List handles GET /api/photos, optionally scoped by ?memberId=
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photoService.ListPhotos(r.URL.Query().Get("memberId"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

// Delete handles DELETE /api/photos/{id}
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.photoService.RemovePhoto(id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
