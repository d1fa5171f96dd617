package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// MemberRepository handles database operations for family members
type MemberRepository struct {
	db *database.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `id, first_name, COALESCE(father_name, ''), COALESCE(grandfather_name, ''),
	COALESCE(great_grandfather_name, ''), COALESCE(family_name, ''), gender,
	birth_year, death_year, generation, COALESCE(branch, ''), status,
	COALESCE(phone, ''), COALESCE(email, ''), COALESCE(city, ''),
	COALESCE(photo_url, ''), COALESCE(biography, ''), COALESCE(occupation, ''),
	sons_count, daughters_count, father_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (*models.FamilyMember, error) {
	m := &models.FamilyMember{}
	var birthYear, deathYear sql.NullInt64
	var fatherID sql.NullString

	err := row.Scan(
		&m.ID, &m.FirstName, &m.FatherName, &m.GrandfatherName,
		&m.GreatGrandfatherName, &m.FamilyName, &m.Gender,
		&birthYear, &deathYear, &m.Generation, &m.Branch, &m.Status,
		&m.Phone, &m.Email, &m.City,
		&m.PhotoURL, &m.Biography, &m.Occupation,
		&m.SonsCount, &m.DaughtersCount, &fatherID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if birthYear.Valid {
		year := int(birthYear.Int64)
		m.BirthYear = &year
	}
	if deathYear.Valid {
		year := int(deathYear.Int64)
		m.DeathYear = &year
	}
	if fatherID.Valid {
		m.FatherID = &fatherID.String
	}

	return m, nil
}

// NextMemberID allocates the next generation-coded member id, e.g. G3-0042.
// A per-generation sequence row survives deletions so ids are never reused.
func (r *MemberRepository) NextMemberID(generation int) (string, error) {
	var seq int64
	query := "SELECT next_seq FROM member_sequences WHERE generation = ?"
	err := r.db.QueryRow(query, generation).Scan(&seq)
	if err == sql.ErrNoRows {
		seq = 1
		if _, err := r.db.Exec("INSERT INTO member_sequences (generation, next_seq) VALUES (?, ?)", generation, seq+1); err != nil {
			return "", fmt.Errorf("failed to create sequence for generation %d: %w", generation, err)
		}
		return fmt.Sprintf("G%d-%04d", generation, seq), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read member sequence: %w", err)
	}

	if _, err := r.db.Exec("UPDATE member_sequences SET next_seq = next_seq + 1 WHERE generation = ?", generation); err != nil {
		return "", fmt.Errorf("failed to advance member sequence: %w", err)
	}
	return fmt.Sprintf("G%d-%04d", generation, seq), nil
}

// CreateMember inserts a new family member
func (r *MemberRepository) CreateMember(m *models.FamilyMember) error {
	query := `
		INSERT INTO members (id, first_name, father_name, grandfather_name,
			great_grandfather_name, family_name, gender, birth_year, death_year,
			generation, branch, status, phone, email, city, photo_url, biography,
			occupation, sons_count, daughters_count, father_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		m.ID, m.FirstName, nullIfEmpty(m.FatherName), nullIfEmpty(m.GrandfatherName),
		nullIfEmpty(m.GreatGrandfatherName), nullIfEmpty(m.FamilyName), m.Gender,
		nullableInt(m.BirthYear), nullableInt(m.DeathYear),
		m.Generation, nullIfEmpty(m.Branch), string(m.Status),
		nullIfEmpty(m.Phone), nullIfEmpty(m.Email), nullIfEmpty(m.City),
		nullIfEmpty(m.PhotoURL), nullIfEmpty(m.Biography), nullIfEmpty(m.Occupation),
		m.SonsCount, m.DaughtersCount, nullableString(m.FatherID),
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetMember retrieves a member by id, nil when not found
func (r *MemberRepository) GetMember(id string) (*models.FamilyMember, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE id = ?"
	m, err := scanMember(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListMembers retrieves all members, optionally filtered by branch
func (r *MemberRepository) ListMembers(branch string) ([]models.FamilyMember, error) {
	query := "SELECT " + memberColumns + " FROM members"
	args := []interface{}{}
	if branch != "" {
		query += " WHERE branch = ?"
		args = append(args, branch)
	}
	query += " ORDER BY generation, id"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListChildren retrieves members whose father_id matches the given id
func (r *MemberRepository) ListChildren(fatherID string) ([]models.FamilyMember, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE father_id = ? ORDER BY birth_year, id"
	rows, err := r.db.Query(query, fatherID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []models.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		children = append(children, *m)
	}
	return children, rows.Err()
}

// ListBranches returns the distinct branch names in use
func (r *MemberRepository) ListBranches() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT branch FROM members WHERE branch IS NOT NULL AND branch != '' ORDER BY branch")
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	var branches []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// updatableColumns maps allow-listed JSON field names to member columns
var updatableColumns = map[string]string{
	"birthYear":  "birth_year",
	"deathYear":  "death_year",
	"phone":      "phone",
	"email":      "email",
	"city":       "city",
	"photoUrl":   "photo_url",
	"biography":  "biography",
	"occupation": "occupation",
	"status":     "status",
}

// UpdateMemberFields merges allow-listed field changes into a member.
// Keys outside the allow-list are ignored.
func (r *MemberRepository) UpdateMemberFields(id string, changes map[string]interface{}) error {
	var setClauses []string
	var args []interface{}

	for field, value := range changes {
		column, ok := updatableColumns[field]
		if !ok {
			continue
		}
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now(), id)

	query := "UPDATE members SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdjustChildCount increments the father's sons or daughters count
func (r *MemberRepository) AdjustChildCount(fatherID, gender string) error {
	column := "sons_count"
	if strings.EqualFold(gender, "Female") {
		column = "daughters_count"
	}
	query := "UPDATE members SET " + column + " = " + column + " + 1, updated_at = ? WHERE id = ?"
	_, err := r.db.Exec(query, time.Now(), fatherID)
	return err
}

// CountMembers returns the total number of members
func (r *MemberRepository) CountMembers() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM members").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// DeleteMember removes a single member row
func (r *MemberRepository) DeleteMember(id string) error {
	if _, err := r.db.Exec("DELETE FROM members WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete member %s: %w", id, err)
	}
	return nil
}

// DeleteAllMembers removes every member row. Used only by snapshot restore,
// which captures a PRE_RESTORE snapshot first.
func (r *MemberRepository) DeleteAllMembers() error {
	if _, err := r.db.Exec("DELETE FROM members"); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
