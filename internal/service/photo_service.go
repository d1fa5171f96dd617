package service

import (
	"strings"

	"familytree/internal/apperr"
	"familytree/internal/models"
)

// PhotoStore is the gallery photo persistence surface
type PhotoStore interface {
	CreatePhoto(p *models.Photo) (int64, error)
	ListPhotos(memberID string) ([]models.Photo, error)
	DeletePhoto(id int64) error
}

// PhotoService handles the photo gallery
type PhotoService struct {
	photos  PhotoStore
	members MemberStore
}

// NewPhotoService creates a new photo service
func NewPhotoService(photos PhotoStore, members MemberStore) *PhotoService {
	return &PhotoService{photos: photos, members: members}
}

// AddPhoto stores a gallery photo, optionally attached to a member
func (s *PhotoService) AddPhoto(uploaderID int64, memberID *string, url, caption string) (*models.Photo, error) {
	if strings.TrimSpace(url) == "" {
		return nil, apperr.Validation("Photo URL is required", "رابط الصورة مطلوب")
	}
	if memberID != nil {
		member, err := s.members.GetMember(*memberID)
		if err != nil {
			return nil, apperr.Database(err)
		}
		if member == nil {
			return nil, apperr.NotFound("Member not found", "العضو غير موجود")
		}
	}

	photo := &models.Photo{
		MemberID:   memberID,
		URL:        url,
		Caption:    caption,
		UploadedBy: uploaderID,
	}
	id, err := s.photos.CreatePhoto(photo)
	if err != nil {
		return nil, apperr.Database(err)
	}
	photo.ID = id
	return photo, nil
}

// ListPhotos returns gallery photos, optionally scoped to a member
func (s *PhotoService) ListPhotos(memberID string) ([]models.Photo, error) {
	photos, err := s.photos.ListPhotos(memberID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return photos, nil
}

// RemovePhoto deletes a gallery photo
func (s *PhotoService) RemovePhoto(id int64) error {
	if err := s.photos.DeletePhoto(id); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("Photo not found", "الصورة غير موجودة")
		}
		return apperr.Database(err)
	}
	return nil
}
