package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// PhotoRepository handles database operations for gallery photos
type PhotoRepository struct {
	db *database.DB
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *database.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	p := &models.Photo{}
	var memberID sql.NullString

	err := row.Scan(&p.ID, &memberID, &p.URL, &p.Caption, &p.UploadedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if memberID.Valid {
		p.MemberID = &memberID.String
	}
	return p, nil
}

// CreatePhoto stores a new gallery photo
func (r *PhotoRepository) CreatePhoto(p *models.Photo) (int64, error) {
	query := "INSERT INTO photos (member_id, url, caption, uploaded_by) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, nullableString(p.MemberID), p.URL,
		nullIfEmpty(p.Caption), p.UploadedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to create photo: %w", err)
	}
	return id, nil
}

// ListPhotos retrieves photos, optionally scoped to one member
func (r *PhotoRepository) ListPhotos(memberID string) ([]models.Photo, error) {
	query := `SELECT id, member_id, url, COALESCE(caption, ''), uploaded_by, created_at FROM photos`
	args := []interface{}{}
	if memberID != "" {
		query += " WHERE member_id = ?"
		args = append(args, memberID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// DeletePhoto removes a photo by id
func (r *PhotoRepository) DeletePhoto(id int64) error {
	result, err := r.db.Exec("DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
