package service

import (
	"fmt"
	"strings"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
)

// PendingStore is the pending member persistence surface
type PendingStore interface {
	CreatePending(p *models.PendingMember) (int64, error)
	GetPending(id int64) (*models.PendingMember, error)
	ListPending(status models.ReviewStatus) ([]models.PendingMember, error)
	MarkReviewed(id int64, status models.ReviewStatus, reviewerID int64, note string, approvedMemberID *string) (bool, error)
}

// UpdateRequestStore is the update request persistence surface
type UpdateRequestStore interface {
	CreateUpdateRequest(req *models.MemberUpdateRequest) (int64, error)
	GetUpdateRequest(id int64) (*models.MemberUpdateRequest, error)
	ListUpdateRequests(status models.ReviewStatus) ([]models.MemberUpdateRequest, error)
	MarkReviewed(id int64, status models.ReviewStatus, reviewerID int64, note string) (bool, error)
}

// ApprovalService handles the submission and review workflow for pending
// members and member update requests.
type ApprovalService struct {
	pending  PendingStore
	updates  UpdateRequestStore
	members  MemberStore
	activity ActivityStore
	log      *logger.Logger
}

// NewApprovalService creates a new approval service
func NewApprovalService(pending PendingStore, updates UpdateRequestStore, members MemberStore, activity ActivityStore, log *logger.Logger) *ApprovalService {
	return &ApprovalService{pending: pending, updates: updates, members: members, activity: activity, log: log}
}

// SubmitPendingMember records a proposed new member for review
func (s *ApprovalService) SubmitPendingMember(p *models.PendingMember) (*models.PendingMember, error) {
	asMember := pendingToMember(p, "")
	if err := validateMemberFields(asMember); err != nil {
		return nil, err
	}

	if p.FatherID != nil {
		father, err := s.members.GetMember(*p.FatherID)
		if err != nil {
			return nil, apperr.Database(err)
		}
		if father == nil {
			return nil, apperr.Validation("Referenced father does not exist", "الأب المشار إليه غير موجود")
		}
		if p.Generation == 0 {
			p.Generation = father.Generation + 1
		} else if p.Generation <= father.Generation {
			return nil, apperr.Validation("Member generation must be below the father's", "يجب أن يكون جيل العضو أدنى من جيل الأب")
		}
		if p.Branch == "" {
			p.Branch = father.Branch
		}
	} else if p.Generation == 0 {
		p.Generation = 1
	}

	if p.Status == "" {
		p.Status = models.StatusLiving
	}
	p.ReviewStatus = models.ReviewPending

	id, err := s.pending.CreatePending(p)
	if err != nil {
		return nil, apperr.Database(err)
	}
	p.ID = id

	s.log.WithField("pending_id", id).Info("pending member submitted")
	return p, nil
}

// ListPendingMembers retrieves submissions, optionally filtered by status
func (s *ApprovalService) ListPendingMembers(status models.ReviewStatus) ([]models.PendingMember, error) {
	if status != "" && !isValidReviewStatus(status) {
		return nil, apperr.Validation("Invalid review status", "حالة المراجعة غير صالحة")
	}
	pending, err := s.pending.ListPending(status)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return pending, nil
}

// GetPendingMember retrieves a single submission
func (s *ApprovalService) GetPendingMember(id int64) (*models.PendingMember, error) {
	p, err := s.pending.GetPending(id)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if p == nil {
		return nil, apperr.NotFound("Pending member not found", "العضو المعلق غير موجود")
	}
	return p, nil
}

// ReviewPendingMember approves or rejects a submission. On approval the
// member row is created durably first and the PENDING state is then claimed
// with a conditional update. A failed insert leaves the submission PENDING
// and reviewable again; a lost claim deletes the just-created row, so two
// concurrent reviews can never both succeed.
func (s *ApprovalService) ReviewPendingMember(reviewerID, pendingID int64, approve bool, note string) (*models.PendingMember, error) {
	p, err := s.GetPendingMember(pendingID)
	if err != nil {
		return nil, err
	}
	if p.IsReviewed() {
		return nil, reviewConflict()
	}

	if !approve {
		claimed, err := s.pending.MarkReviewed(pendingID, models.ReviewRejected, reviewerID, note, nil)
		if err != nil {
			return nil, apperr.Database(err)
		}
		if !claimed {
			return nil, reviewConflict()
		}
		s.audit(reviewerID, models.ActionPendingRejected, "pending_member", fmt.Sprintf("%d", pendingID), note)
		return s.GetPendingMember(pendingID)
	}

	memberID, err := s.members.NextMemberID(p.Generation)
	if err != nil {
		return nil, apperr.Database(err)
	}

	member := pendingToMember(p, memberID)
	if err := s.members.CreateMember(member); err != nil {
		return nil, apperr.Database(err)
	}

	claimed, err := s.pending.MarkReviewed(pendingID, models.ReviewApproved, reviewerID, note, &memberID)
	if err != nil || !claimed {
		if delErr := s.members.DeleteMember(memberID); delErr != nil {
			s.log.WithError(delErr).WithField("member_id", memberID).Error("failed to remove member after lost review claim")
		}
		if err != nil {
			return nil, apperr.Database(err)
		}
		return nil, reviewConflict()
	}
	if member.FatherID != nil {
		if err := s.members.AdjustChildCount(*member.FatherID, member.Gender); err != nil {
			s.log.WithError(err).WithField("member_id", memberID).Warn("failed to adjust child count")
		}
	}

	s.audit(reviewerID, models.ActionPendingApproved, "pending_member", fmt.Sprintf("%d", pendingID), "member "+memberID)
	s.log.WithActor(reviewerID).WithField("member_id", memberID).Info("pending member approved")
	return s.GetPendingMember(pendingID)
}

// SubmitUpdateRequest records proposed field changes for review. Keys outside
// the allow-list are dropped silently before storage.
func (s *ApprovalService) SubmitUpdateRequest(req *models.MemberUpdateRequest) (*models.MemberUpdateRequest, error) {
	member, err := s.members.GetMember(req.MemberID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if member == nil {
		return nil, apperr.NotFound("Member not found", "العضو غير موجود")
	}

	req.ProposedChanges = models.FilterProposedChanges(req.ProposedChanges)
	if len(req.ProposedChanges) == 0 {
		return nil, apperr.Validation("No updatable fields in proposed changes", "لا توجد حقول قابلة للتحديث في التغييرات المقترحة")
	}
	req.ReviewStatus = models.ReviewPending

	id, err := s.updates.CreateUpdateRequest(req)
	if err != nil {
		return nil, apperr.Database(err)
	}
	req.ID = id

	s.log.WithField("request_id", id).WithField("member_id", req.MemberID).Info("update request submitted")
	return req, nil
}

// ListUpdateRequests retrieves update requests, optionally filtered by status
func (s *ApprovalService) ListUpdateRequests(status models.ReviewStatus) ([]models.MemberUpdateRequest, error) {
	if status != "" && !isValidReviewStatus(status) {
		return nil, apperr.Validation("Invalid review status", "حالة المراجعة غير صالحة")
	}
	requests, err := s.updates.ListUpdateRequests(status)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return requests, nil
}

// GetUpdateRequest retrieves a single update request
func (s *ApprovalService) GetUpdateRequest(id int64) (*models.MemberUpdateRequest, error) {
	req, err := s.updates.GetUpdateRequest(id)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if req == nil {
		return nil, apperr.NotFound("Update request not found", "طلب التحديث غير موجود")
	}
	return req, nil
}

// ReviewUpdateRequest approves or rejects proposed changes. On approval the
// stored changes are re-filtered against the allow-list before merging, so a
// stale row written under an older allow-list can never widen the merge.
func (s *ApprovalService) ReviewUpdateRequest(reviewerID, requestID int64, approve bool, note string) (*models.MemberUpdateRequest, error) {
	req, err := s.GetUpdateRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.IsReviewed() {
		return nil, reviewConflict()
	}

	status := models.ReviewRejected
	if approve {
		status = models.ReviewApproved
	}

	claimed, err := s.updates.MarkReviewed(requestID, status, reviewerID, note)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !claimed {
		return nil, reviewConflict()
	}

	if approve {
		changes := models.FilterProposedChanges(req.ProposedChanges)
		if req.PhotoURL != "" {
			changes["photoUrl"] = req.PhotoURL
		}
		if err := s.members.UpdateMemberFields(req.MemberID, changes); err != nil {
			if isNoRows(err) {
				return nil, apperr.Conflict("Target member no longer exists", "العضو المستهدف لم يعد موجوداً")
			}
			return nil, apperr.Database(err)
		}
		s.audit(reviewerID, models.ActionUpdateApproved, "update_request", fmt.Sprintf("%d", requestID), "member "+req.MemberID)
	} else {
		s.audit(reviewerID, models.ActionUpdateRejected, "update_request", fmt.Sprintf("%d", requestID), note)
	}

	return s.GetUpdateRequest(requestID)
}

func (s *ApprovalService) audit(actorID int64, action, targetType, targetID, detail string) {
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

func reviewConflict() error {
	return apperr.Conflict("This submission has already been reviewed", "تمت مراجعة هذا الطلب بالفعل")
}

func isValidReviewStatus(status models.ReviewStatus) bool {
	switch status {
	case models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
		return true
	}
	return false
}

// pendingToMember builds the canonical member row from an approved submission
func pendingToMember(p *models.PendingMember, memberID string) *models.FamilyMember {
	status := p.Status
	if status == "" {
		status = models.StatusLiving
	}
	return &models.FamilyMember{
		ID:                   memberID,
		FirstName:            strings.TrimSpace(p.FirstName),
		FatherName:           p.FatherName,
		GrandfatherName:      p.GrandfatherName,
		GreatGrandfatherName: p.GreatGrandfatherName,
		FamilyName:           p.FamilyName,
		Gender:               p.Gender,
		BirthYear:            p.BirthYear,
		DeathYear:            p.DeathYear,
		Generation:           p.Generation,
		Branch:               p.Branch,
		Status:               status,
		Phone:                p.Phone,
		Email:                p.Email,
		City:                 p.City,
		PhotoURL:             p.PhotoURL,
		Biography:            p.Biography,
		Occupation:           p.Occupation,
		FatherID:             p.FatherID,
	}
}
