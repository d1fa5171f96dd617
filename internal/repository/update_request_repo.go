package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// UpdateRequestRepository handles database operations for member update requests
type UpdateRequestRepository struct {
	db *database.DB
}

// NewUpdateRequestRepository creates a new update request repository
func NewUpdateRequestRepository(db *database.DB) *UpdateRequestRepository {
	return &UpdateRequestRepository{db: db}
}

const updateRequestColumns = `id, member_id, proposed_changes, COALESCE(photo_url, ''),
	submitted_by, review_status, reviewed_by, COALESCE(review_note, ''), created_at`

func scanUpdateRequest(row rowScanner) (*models.MemberUpdateRequest, error) {
	req := &models.MemberUpdateRequest{}
	var changesJSON string
	var submittedBy, reviewedBy sql.NullInt64

	err := row.Scan(
		&req.ID, &req.MemberID, &changesJSON, &req.PhotoURL,
		&submittedBy, &req.ReviewStatus, &reviewedBy, &req.ReviewNote, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(changesJSON), &req.ProposedChanges); err != nil {
		return nil, fmt.Errorf("failed to decode proposed changes: %w", err)
	}
	if submittedBy.Valid {
		req.SubmittedBy = &submittedBy.Int64
	}
	if reviewedBy.Valid {
		req.ReviewedBy = &reviewedBy.Int64
	}

	return req, nil
}

// CreateUpdateRequest inserts a new update request. ProposedChanges must
// already be allow-list filtered by the caller.
func (r *UpdateRequestRepository) CreateUpdateRequest(req *models.MemberUpdateRequest) (int64, error) {
	changesJSON, err := json.Marshal(req.ProposedChanges)
	if err != nil {
		return 0, fmt.Errorf("failed to encode proposed changes: %w", err)
	}

	query := `
		INSERT INTO member_update_requests (member_id, proposed_changes, photo_url, submitted_by, review_status)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		req.MemberID, string(changesJSON), nullIfEmpty(req.PhotoURL),
		nullableInt64(req.SubmittedBy), string(models.ReviewPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create update request: %w", err)
	}
	return id, nil
}

// GetUpdateRequest retrieves an update request by id, nil when not found
func (r *UpdateRequestRepository) GetUpdateRequest(id int64) (*models.MemberUpdateRequest, error) {
	query := "SELECT " + updateRequestColumns + " FROM member_update_requests WHERE id = ?"
	req, err := scanUpdateRequest(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get update request: %w", err)
	}
	return req, nil
}

// ListUpdateRequests retrieves update requests, optionally filtered by status
func (r *UpdateRequestRepository) ListUpdateRequests(status models.ReviewStatus) ([]models.MemberUpdateRequest, error) {
	query := "SELECT " + updateRequestColumns + " FROM member_update_requests"
	args := []interface{}{}
	if status != "" {
		query += " WHERE review_status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query update requests: %w", err)
	}
	defer rows.Close()

	var requests []models.MemberUpdateRequest
	for rows.Next() {
		req, err := scanUpdateRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// MarkReviewed transitions an update request out of PENDING, atomically
// guarding against a concurrent double review.
func (r *UpdateRequestRepository) MarkReviewed(id int64, status models.ReviewStatus, reviewerID int64, note string) (bool, error) {
	query := `
		UPDATE member_update_requests
		SET review_status = ?, reviewed_by = ?, review_note = ?
		WHERE id = ? AND review_status = ?
	`
	result, err := r.db.Exec(query, string(status), reviewerID, note, id, string(models.ReviewPending))
	if err != nil {
		return false, fmt.Errorf("failed to mark update request reviewed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read review result: %w", err)
	}
	return rows > 0, nil
}
