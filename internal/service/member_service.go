package service

import (
	"fmt"
	"strings"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/validation"
)

// MemberStore is the member persistence surface the services depend on
type MemberStore interface {
	NextMemberID(generation int) (string, error)
	CreateMember(m *models.FamilyMember) error
	GetMember(id string) (*models.FamilyMember, error)
	ListMembers(branch string) ([]models.FamilyMember, error)
	ListChildren(fatherID string) ([]models.FamilyMember, error)
	ListBranches() ([]string, error)
	UpdateMemberFields(id string, changes map[string]interface{}) error
	AdjustChildCount(fatherID, gender string) error
	CountMembers() (int, error)
	DeleteMember(id string) error
	DeleteAllMembers() error
}

// ActivityStore records audit entries
type ActivityStore interface {
	Record(entry *models.ActivityLog) error
}

// MemberService handles family member business logic
type MemberService struct {
	members  MemberStore
	activity ActivityStore
	log      *logger.Logger
}

// NewMemberService creates a new member service
func NewMemberService(members MemberStore, activity ActivityStore, log *logger.Logger) *MemberService {
	return &MemberService{members: members, activity: activity, log: log}
}

// CreateMember adds a member directly, bypassing review. Admin-only path.
func (s *MemberService) CreateMember(actorID int64, m *models.FamilyMember) (*models.FamilyMember, error) {
	if err := validateMemberFields(m); err != nil {
		return nil, err
	}

	if err := s.resolveLineage(m); err != nil {
		return nil, err
	}

	id, err := s.members.NextMemberID(m.Generation)
	if err != nil {
		return nil, apperr.Database(err)
	}
	m.ID = id

	if err := s.members.CreateMember(m); err != nil {
		return nil, apperr.Database(err)
	}

	if m.FatherID != nil {
		if err := s.members.AdjustChildCount(*m.FatherID, m.Gender); err != nil {
			s.log.WithError(err).WithField("member_id", m.ID).Warn("failed to adjust child count")
		}
	}

	s.audit(actorID, models.ActionMemberCreated, "member", m.ID, m.FirstName)
	s.log.WithActor(actorID).WithField("member_id", m.ID).Info("member created")
	return m, nil
}

// GetMember retrieves a member by id
func (s *MemberService) GetMember(id string) (*models.FamilyMember, error) {
	m, err := s.members.GetMember(id)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if m == nil {
		return nil, apperr.NotFound("Member not found", "العضو غير موجود")
	}
	return m, nil
}

// ListMembers retrieves all members, optionally filtered by branch
func (s *MemberService) ListMembers(branch string) ([]models.FamilyMember, error) {
	members, err := s.members.ListMembers(branch)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return members, nil
}

// GetChildren retrieves the children of a member
func (s *MemberService) GetChildren(memberID string) ([]models.FamilyMember, error) {
	if _, err := s.GetMember(memberID); err != nil {
		return nil, err
	}
	children, err := s.members.ListChildren(memberID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return children, nil
}

// ListBranches returns the distinct branch names
func (s *MemberService) ListBranches() ([]string, error) {
	branches, err := s.members.ListBranches()
	if err != nil {
		return nil, apperr.Database(err)
	}
	return branches, nil
}

// UpdateMember applies allow-listed field changes directly. Admin-only path;
// member self-service goes through update requests instead.
func (s *MemberService) UpdateMember(actorID int64, id string, changes map[string]interface{}) (*models.FamilyMember, error) {
	filtered := models.FilterProposedChanges(changes)
	if len(filtered) == 0 {
		return nil, apperr.Validation("No updatable fields provided", "لم يتم تقديم حقول قابلة للتحديث")
	}

	if err := s.members.UpdateMemberFields(id, filtered); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Member not found", "العضو غير موجود")
		}
		return nil, apperr.Database(err)
	}

	s.audit(actorID, models.ActionMemberUpdated, "member", id, fieldNames(filtered))
	return s.GetMember(id)
}

// Stats summarizes the tree for the dashboard
type Stats struct {
	TotalMembers int            `json:"totalMembers"`
	Branches     []string       `json:"branches"`
	ByGeneration map[string]int `json:"byGeneration"`
}

// GetStats computes dashboard statistics
func (s *MemberService) GetStats() (*Stats, error) {
	members, err := s.members.ListMembers("")
	if err != nil {
		return nil, apperr.Database(err)
	}
	branches, err := s.members.ListBranches()
	if err != nil {
		return nil, apperr.Database(err)
	}

	byGen := make(map[string]int)
	for _, m := range members {
		byGen[fmt.Sprintf("%d", m.Generation)]++
	}
	return &Stats{TotalMembers: len(members), Branches: branches, ByGeneration: byGen}, nil
}

// resolveLineage checks the father link and fills generation, branch and
// status defaults. A member's generation must sit strictly below the father's.
func (s *MemberService) resolveLineage(m *models.FamilyMember) error {
	if m.Status == "" {
		m.Status = models.StatusLiving
	}

	if m.FatherID == nil {
		if m.Generation == 0 {
			m.Generation = 1
		}
		if err := validation.ValidateGeneration(m.Generation); err != nil {
			return apperr.Validation(err.Error(), "الجيل غير صالح")
		}
		return nil
	}

	father, err := s.members.GetMember(*m.FatherID)
	if err != nil {
		return apperr.Database(err)
	}
	if father == nil {
		return apperr.Validation("Referenced father does not exist", "الأب المشار إليه غير موجود")
	}

	if m.Generation == 0 {
		m.Generation = father.Generation + 1
	} else if m.Generation <= father.Generation {
		return apperr.Validation("Member generation must be below the father's", "يجب أن يكون جيل العضو أدنى من جيل الأب")
	}

	if m.Branch == "" {
		m.Branch = father.Branch
	}
	return nil
}

func (s *MemberService) audit(actorID int64, action, targetType, targetID, detail string) {
	entry := &models.ActivityLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if actorID != 0 {
		entry.ActorID = &actorID
	}
	if err := s.activity.Record(entry); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("failed to record activity")
	}
}

func validateMemberFields(m *models.FamilyMember) error {
	if err := validation.ValidateName(m.FirstName); err != nil {
		return apperr.Validation(err.Error(), "الاسم الأول غير صالح")
	}
	if !strings.EqualFold(m.Gender, "Male") && !strings.EqualFold(m.Gender, "Female") {
		return apperr.Validation("Gender must be Male or Female", "يجب أن يكون الجنس ذكراً أو أنثى")
	}
	if err := validation.ValidateYear(m.BirthYear); err != nil {
		return apperr.Validation(err.Error(), "سنة الميلاد غير صالحة")
	}
	if err := validation.ValidateYear(m.DeathYear); err != nil {
		return apperr.Validation(err.Error(), "سنة الوفاة غير صالحة")
	}
	if m.BirthYear != nil && m.DeathYear != nil && *m.DeathYear < *m.BirthYear {
		return apperr.Validation("Death year cannot precede birth year", "سنة الوفاة لا يمكن أن تسبق سنة الميلاد")
	}
	if m.Status != "" && m.Status != models.StatusLiving && m.Status != models.StatusDeceased {
		return apperr.Validation("Status must be Living or Deceased", "الحالة يجب أن تكون حي أو متوفى")
	}
	if m.Email != "" {
		if err := validation.ValidateEmail(m.Email); err != nil {
			return apperr.Validation(err.Error(), "البريد الإلكتروني غير صالح")
		}
	}
	return nil
}

func fieldNames(changes map[string]interface{}) string {
	names := make([]string, 0, len(changes))
	for k := range changes {
		names = append(names, k)
	}
	return strings.Join(names, ",")
}
