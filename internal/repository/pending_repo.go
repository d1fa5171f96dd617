package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// PendingRepository handles database operations for pending members
type PendingRepository struct {
	db *database.DB
}

// NewPendingRepository creates a new pending member repository
func NewPendingRepository(db *database.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

const pendingColumns = `id, first_name, COALESCE(father_name, ''), COALESCE(grandfather_name, ''),
	COALESCE(great_grandfather_name, ''), COALESCE(family_name, ''), gender,
	birth_year, death_year, generation, COALESCE(branch, ''), COALESCE(status, ''),
	COALESCE(phone, ''), COALESCE(email, ''), COALESCE(city, ''),
	COALESCE(photo_url, ''), COALESCE(biography, ''), COALESCE(occupation, ''),
	father_id, submitted_by, review_status, reviewed_by, COALESCE(review_note, ''),
	approved_member_id, created_at`

func scanPending(row rowScanner) (*models.PendingMember, error) {
	p := &models.PendingMember{}
	var birthYear, deathYear, submittedBy, reviewedBy sql.NullInt64
	var fatherID, approvedMemberID sql.NullString

	err := row.Scan(
		&p.ID, &p.FirstName, &p.FatherName, &p.GrandfatherName,
		&p.GreatGrandfatherName, &p.FamilyName, &p.Gender,
		&birthYear, &deathYear, &p.Generation, &p.Branch, &p.Status,
		&p.Phone, &p.Email, &p.City,
		&p.PhotoURL, &p.Biography, &p.Occupation,
		&fatherID, &submittedBy, &p.ReviewStatus, &reviewedBy, &p.ReviewNote,
		&approvedMemberID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if birthYear.Valid {
		year := int(birthYear.Int64)
		p.BirthYear = &year
	}
	if deathYear.Valid {
		year := int(deathYear.Int64)
		p.DeathYear = &year
	}
	if fatherID.Valid {
		p.FatherID = &fatherID.String
	}
	if submittedBy.Valid {
		p.SubmittedBy = &submittedBy.Int64
	}
	if reviewedBy.Valid {
		p.ReviewedBy = &reviewedBy.Int64
	}
	if approvedMemberID.Valid {
		p.ApprovedMemberID = &approvedMemberID.String
	}

	return p, nil
}

// CreatePending inserts a new pending member submission
func (r *PendingRepository) CreatePending(p *models.PendingMember) (int64, error) {
	query := `
		INSERT INTO pending_members (first_name, father_name, grandfather_name,
			great_grandfather_name, family_name, gender, birth_year, death_year,
			generation, branch, status, phone, email, city, photo_url, biography,
			occupation, father_id, submitted_by, review_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		p.FirstName, nullIfEmpty(p.FatherName), nullIfEmpty(p.GrandfatherName),
		nullIfEmpty(p.GreatGrandfatherName), nullIfEmpty(p.FamilyName), p.Gender,
		nullableInt(p.BirthYear), nullableInt(p.DeathYear),
		p.Generation, nullIfEmpty(p.Branch), nullIfEmpty(string(p.Status)),
		nullIfEmpty(p.Phone), nullIfEmpty(p.Email), nullIfEmpty(p.City),
		nullIfEmpty(p.PhotoURL), nullIfEmpty(p.Biography), nullIfEmpty(p.Occupation),
		nullableString(p.FatherID), nullableInt64(p.SubmittedBy), string(models.ReviewPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create pending member: %w", err)
	}
	return id, nil
}

// GetPending retrieves a pending member by id, nil when not found
func (r *PendingRepository) GetPending(id int64) (*models.PendingMember, error) {
	query := "SELECT " + pendingColumns + " FROM pending_members WHERE id = ?"
	p, err := scanPending(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending member: %w", err)
	}
	return p, nil
}

// ListPending retrieves pending members, optionally filtered by review status
func (r *PendingRepository) ListPending(status models.ReviewStatus) ([]models.PendingMember, error) {
	query := "SELECT " + pendingColumns + " FROM pending_members"
	args := []interface{}{}
	if status != "" {
		query += " WHERE review_status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending members: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingMember
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending member: %w", err)
		}
		pending = append(pending, *p)
	}
	return pending, rows.Err()
}

// MarkReviewed transitions a pending member out of PENDING. The conditional
// WHERE closes the double-review race: it reports false when the record was
// already reviewed by a concurrent request.
func (r *PendingRepository) MarkReviewed(id int64, status models.ReviewStatus, reviewerID int64, note string, approvedMemberID *string) (bool, error) {
	query := `
		UPDATE pending_members
		SET review_status = ?, reviewed_by = ?, review_note = ?, approved_member_id = ?
		WHERE id = ? AND review_status = ?
	`
	result, err := r.db.Exec(query, string(status), reviewerID, note,
		nullableString(approvedMemberID), id, string(models.ReviewPending))
	if err != nil {
		return false, fmt.Errorf("failed to mark pending member reviewed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read review result: %w", err)
	}
	return rows > 0, nil
}

func nullableInt64(n *int64) interface{} {
	if n == nil {
		return nil
	}
	return *n
}
