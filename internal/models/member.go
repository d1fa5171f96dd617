package models

import "time"

// MemberStatus indicates whether a member is living or deceased
type MemberStatus string

const (
	StatusLiving   MemberStatus = "Living"
	StatusDeceased MemberStatus = "Deceased"
)

// FamilyMember is a canonical member of the family tree.
// IDs are generation-coded strings of the form G<generation>-<sequence>.
type FamilyMember struct {
	ID                   string       `json:"id"`
	FirstName            string       `json:"firstName"`
	FatherName           string       `json:"fatherName,omitempty"`
	GrandfatherName      string       `json:"grandfatherName,omitempty"`
	GreatGrandfatherName string       `json:"greatGrandfatherName,omitempty"`
	FamilyName           string       `json:"familyName,omitempty"`
	Gender               string       `json:"gender"`
	BirthYear            *int         `json:"birthYear,omitempty"`
	DeathYear            *int         `json:"deathYear,omitempty"`
	Generation           int          `json:"generation"`
	Branch               string       `json:"branch,omitempty"`
	Status               MemberStatus `json:"status"`
	Phone                string       `json:"phone,omitempty"`
	Email                string       `json:"email,omitempty"`
	City                 string       `json:"city,omitempty"`
	PhotoURL             string       `json:"photoUrl,omitempty"`
	Biography            string       `json:"biography,omitempty"`
	Occupation           string       `json:"occupation,omitempty"`
	SonsCount            int          `json:"sonsCount"`
	DaughtersCount       int          `json:"daughtersCount"`
	FatherID             *string      `json:"fatherId,omitempty"`
	CreatedAt            time.Time    `json:"createdAt,omitempty"`
	UpdatedAt            time.Time    `json:"updatedAt,omitempty"`
}

// ReviewStatus is the lifecycle state of a submitted proposal
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// PendingMember is a proposed new family member awaiting admin review.
// It transitions out of PENDING exactly once and is immutable afterward.
type PendingMember struct {
	ID                   int64        `json:"id"`
	FirstName            string       `json:"firstName"`
	FatherName           string       `json:"fatherName,omitempty"`
	GrandfatherName      string       `json:"grandfatherName,omitempty"`
	GreatGrandfatherName string       `json:"greatGrandfatherName,omitempty"`
	FamilyName           string       `json:"familyName,omitempty"`
	Gender               string       `json:"gender"`
	BirthYear            *int         `json:"birthYear,omitempty"`
	DeathYear            *int         `json:"deathYear,omitempty"`
	Generation           int          `json:"generation"`
	Branch               string       `json:"branch,omitempty"`
	Status               MemberStatus `json:"status,omitempty"`
	Phone                string       `json:"phone,omitempty"`
	Email                string       `json:"email,omitempty"`
	City                 string       `json:"city,omitempty"`
	PhotoURL             string       `json:"photoUrl,omitempty"`
	Biography            string       `json:"biography,omitempty"`
	Occupation           string       `json:"occupation,omitempty"`
	FatherID             *string      `json:"fatherId,omitempty"`
	SubmittedBy          *int64       `json:"submittedBy,omitempty"`
	ReviewStatus         ReviewStatus `json:"reviewStatus"`
	ReviewedBy           *int64       `json:"reviewedBy,omitempty"`
	ReviewNote           string       `json:"reviewNote,omitempty"`
	ApprovedMemberID     *string      `json:"approvedMemberId,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

// IsReviewed reports whether the pending member has reached a terminal state
func (p *PendingMember) IsReviewed() bool {
	return p.ReviewStatus != ReviewPending
}

// MemberUpdateRequest proposes field-level changes to an existing member.
// ProposedChanges is restricted to UpdatableFields at submission time; that
// filtering is the sole sanitization boundary.
type MemberUpdateRequest struct {
	ID              int64                  `json:"id"`
	MemberID        string                 `json:"memberId"`
	ProposedChanges map[string]interface{} `json:"proposedChanges"`
	PhotoURL        string                 `json:"photoUrl,omitempty"`
	SubmittedBy     *int64                 `json:"submittedBy,omitempty"`
	ReviewStatus    ReviewStatus           `json:"reviewStatus"`
	ReviewedBy      *int64                 `json:"reviewedBy,omitempty"`
	ReviewNote      string                 `json:"reviewNote,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// IsReviewed reports whether the update request has reached a terminal state
func (r *MemberUpdateRequest) IsReviewed() bool {
	return r.ReviewStatus != ReviewPending
}

// UpdatableFields is the allow-list of member fields an update request may change
var UpdatableFields = map[string]bool{
	"birthYear":  true,
	"deathYear":  true,
	"phone":      true,
	"email":      true,
	"city":       true,
	"photoUrl":   true,
	"biography":  true,
	"occupation": true,
	"status":     true,
}

// FilterProposedChanges drops any key not in the allow-list.
// Unknown keys are dropped silently.
func FilterProposedChanges(changes map[string]interface{}) map[string]interface{} {
	filtered := make(map[string]interface{}, len(changes))
	for key, value := range changes {
		if UpdatableFields[key] {
			filtered[key] = value
		}
	}
	return filtered
}
