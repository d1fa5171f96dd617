package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
)

// BroadcastStore is the broadcast persistence surface
type BroadcastStore interface {
	CreateBroadcast(b *models.Broadcast) (int64, error)
	GetBroadcast(id int64) (*models.Broadcast, error)
	ListBroadcasts() ([]models.Broadcast, error)
	ListDue(now time.Time) ([]models.Broadcast, error)
	MarkSent(id int64, sentCount, failedCount int, at time.Time) (bool, error)
	DeleteBroadcast(id int64) error
	UpsertRSVP(broadcastID, userID int64, response models.RSVPResponse) error
	ListRSVPs(broadcastID int64) ([]models.BroadcastRSVP, error)
	SummarizeRSVPs(broadcastID int64) (*models.RSVPSummary, error)
}

// BroadcastService handles announcements and their RSVP responses
type BroadcastService struct {
	broadcasts BroadcastStore
	users      UserStore
	activity   ActivityStore
	email      EmailSender
	log        *logger.Logger
	now        func() time.Time
}

// NewBroadcastService creates a new broadcast service
func NewBroadcastService(broadcasts BroadcastStore, users UserStore, activity ActivityStore, email EmailSender, log *logger.Logger) *BroadcastService {
	return &BroadcastService{
		broadcasts: broadcasts,
		users:      users,
		activity:   activity,
		email:      email,
		log:        log,
		now:        time.Now,
	}
}

// CreateBroadcast records an announcement. With no scheduled time it is
// picked up by the next dispatcher tick.
func (s *BroadcastService) CreateBroadcast(creatorID int64, title, body string, scheduledAt *time.Time) (*models.Broadcast, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Validation("Title is required", "العنوان مطلوب")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperr.Validation("Body is required", "المحتوى مطلوب")
	}
	if scheduledAt != nil && scheduledAt.Before(s.now()) {
		return nil, apperr.Validation("Scheduled time must be in the future", "وقت الجدولة يجب أن يكون في المستقبل")
	}

	b := &models.Broadcast{
		Title:       title,
		Body:        body,
		ScheduledAt: scheduledAt,
		CreatedBy:   creatorID,
	}
	id, err := s.broadcasts.CreateBroadcast(b)
	if err != nil {
		return nil, apperr.Database(err)
	}
	b.ID = id
	b.CreatedAt = s.now()
	return b, nil
}

// ListBroadcasts returns all broadcasts, newest first
func (s *BroadcastService) ListBroadcasts() ([]models.Broadcast, error) {
	broadcasts, err := s.broadcasts.ListBroadcasts()
	if err != nil {
		return nil, apperr.Database(err)
	}
	return broadcasts, nil
}

// GetBroadcast retrieves a broadcast by id
func (s *BroadcastService) GetBroadcast(id int64) (*models.Broadcast, error) {
	b, err := s.broadcasts.GetBroadcast(id)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if b == nil {
		return nil, apperr.NotFound("Broadcast not found", "الإعلان غير موجود")
	}
	return b, nil
}

// DeleteBroadcast removes a broadcast and its responses
func (s *BroadcastService) DeleteBroadcast(id int64) error {
	if err := s.broadcasts.DeleteBroadcast(id); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("Broadcast not found", "الإعلان غير موجود")
		}
		return apperr.Database(err)
	}
	return nil
}

// DispatchDue emails every user for each due unsent broadcast. Individual
// delivery failures are counted, never aborting the rest of the batch. The
// sent_at guard in MarkSent keeps overlapping ticks from double sending.
func (s *BroadcastService) DispatchDue(ctx context.Context) error {
	due, err := s.broadcasts.ListDue(s.now())
	if err != nil {
		return apperr.Database(err)
	}
	if len(due) == 0 {
		return nil
	}

	users, err := s.users.ListUsers("")
	if err != nil {
		return apperr.Database(err)
	}

	for _, b := range due {
		sent, failed := s.deliver(ctx, &b, users)

		marked, err := s.broadcasts.MarkSent(b.ID, sent, failed, s.now())
		if err != nil {
			return apperr.Database(err)
		}
		if !marked {
			// Another tick got there first
			continue
		}

		s.auditSent(b.CreatedBy, b.ID, sent, failed)
		s.log.WithField("broadcast_id", b.ID).WithField("sent", sent).
			WithField("failed", failed).Info("broadcast dispatched")
	}
	return nil
}

// SendBroadcast dispatches a single broadcast immediately, regardless of its
// schedule. Sending an already-sent broadcast is a conflict.
func (s *BroadcastService) SendBroadcast(ctx context.Context, actorID, id int64) (*models.Broadcast, error) {
	b, err := s.GetBroadcast(id)
	if err != nil {
		return nil, err
	}
	if b.IsSent() {
		return nil, apperr.Conflict("Broadcast has already been sent", "تم إرسال الإعلان بالفعل")
	}

	users, err := s.users.ListUsers("")
	if err != nil {
		return nil, apperr.Database(err)
	}

	sent, failed := s.deliver(ctx, b, users)

	marked, err := s.broadcasts.MarkSent(id, sent, failed, s.now())
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !marked {
		return nil, apperr.Conflict("Broadcast has already been sent", "تم إرسال الإعلان بالفعل")
	}

	s.auditSent(actorID, id, sent, failed)
	s.log.WithField("broadcast_id", id).WithField("sent", sent).
		WithField("failed", failed).Info("broadcast dispatched")
	return s.GetBroadcast(id)
}

// deliver emails one broadcast to every user, counting per-recipient
// failures. With email disabled the recipients count as delivered.
func (s *BroadcastService) deliver(ctx context.Context, b *models.Broadcast, users []models.User) (sent, failed int) {
	for _, u := range users {
		if s.email == nil || !s.email.IsEnabled() {
			sent++
			continue
		}
		if err := s.email.SendBroadcastEmail(ctx, u.Email, b.Title, b.Body); err != nil {
			failed++
			s.log.WithError(err).WithField("broadcast_id", b.ID).
				WithField("email", u.Email).Warn("broadcast delivery failed")
			continue
		}
		sent++
	}
	return sent, failed
}

// RecordRSVP stores a user's response, replacing any previous one
func (s *BroadcastService) RecordRSVP(broadcastID, userID int64, response models.RSVPResponse) error {
	if !response.IsValid() {
		return apperr.Validation("Response must be YES, NO or MAYBE", "يجب أن يكون الرد نعم أو لا أو ربما")
	}
	if _, err := s.GetBroadcast(broadcastID); err != nil {
		return err
	}
	if err := s.broadcasts.UpsertRSVP(broadcastID, userID, response); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// GetRSVPs lists individual responses for a broadcast
func (s *BroadcastService) GetRSVPs(broadcastID int64) ([]models.BroadcastRSVP, error) {
	if _, err := s.GetBroadcast(broadcastID); err != nil {
		return nil, err
	}
	rsvps, err := s.broadcasts.ListRSVPs(broadcastID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return rsvps, nil
}

// GetRSVPSummary aggregates responses for a broadcast
func (s *BroadcastService) GetRSVPSummary(broadcastID int64) (*models.RSVPSummary, error) {
	if _, err := s.GetBroadcast(broadcastID); err != nil {
		return nil, err
	}
	summary, err := s.broadcasts.SummarizeRSVPs(broadcastID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return summary, nil
}

func (s *BroadcastService) auditSent(actorID, broadcastID int64, sent, failed int) {
	entry := &models.ActivityLog{
		ActorID:    &actorID,
		Action:     models.ActionBroadcastSent,
		TargetType: "broadcast",
		TargetID:   fmt.Sprintf("%d", broadcastID),
		Detail:     fmt.Sprintf("sent %d, failed %d", sent, failed),
	}
	if err := s.activity.Record(entry); err != nil {
		s.log.WithError(err).Warn("failed to record activity")
	}
}
