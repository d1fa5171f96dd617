package service

import (
	"context"
	"testing"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/models"
)

func newBroadcastFixture() (*BroadcastService, *fakeBroadcastStore, *fakeUserStore, *fakeEmailSender) {
	broadcasts := newFakeBroadcastStore()
	users := newFakeUserStore()
	email := newFakeEmailSender()
	svc := NewBroadcastService(broadcasts, users, &fakeActivityStore{}, email, testLogger())
	return svc, broadcasts, users, email
}

func seedUsers(users *fakeUserStore, emails ...string) {
	for _, e := range emails {
		_, _ = users.CreateUser(&models.User{Email: e, Name: e, Role: models.RoleMember})
	}
}

func TestCreateBroadcastValidation(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()

	if _, err := svc.CreateBroadcast(1, "", "body", nil); apperr.As(err) == nil {
		t.Error("empty title accepted")
	}
	if _, err := svc.CreateBroadcast(1, "title", "  ", nil); apperr.As(err) == nil {
		t.Error("blank body accepted")
	}
	past := time.Now().Add(-time.Hour)
	if _, err := svc.CreateBroadcast(1, "title", "body", &past); apperr.As(err) == nil {
		t.Error("past schedule accepted")
	}
}

func TestDispatchDueCountsFailures(t *testing.T) {
	svc, broadcasts, users, email := newBroadcastFixture()
	seedUsers(users, "a@x.example", "b@x.example", "c@x.example")
	email.failFor["b@x.example"] = true

	b, err := svc.CreateBroadcast(1, "Family gathering", "Friday at the farm", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	sent, _ := broadcasts.GetBroadcast(b.ID)
	if !sent.IsSent() {
		t.Fatal("broadcast not marked sent")
	}
	if sent.SentCount != 2 {
		t.Errorf("sent count = %d, want 2", sent.SentCount)
	}
	if sent.FailedCount != 1 {
		t.Errorf("failed count = %d, want 1", sent.FailedCount)
	}
}

func TestDispatchDueSkipsFutureAndSent(t *testing.T) {
	svc, broadcasts, users, _ := newBroadcastFixture()
	seedUsers(users, "a@x.example")

	future := time.Now().Add(time.Hour)
	scheduled, err := svc.CreateBroadcast(1, "Later", "not yet", &future)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	b, _ := broadcasts.GetBroadcast(scheduled.ID)
	if b.IsSent() {
		t.Error("future broadcast dispatched early")
	}

	// Once due it goes out exactly once
	b.ScheduledAt = nil
	broadcasts.broadcasts[b.ID] = b
	if err := svc.DispatchDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.DispatchDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	final, _ := broadcasts.GetBroadcast(scheduled.ID)
	if !final.IsSent() {
		t.Fatal("due broadcast not dispatched")
	}
	if final.SentCount != 1 {
		t.Errorf("sent count = %d after double dispatch, want 1", final.SentCount)
	}
}

func TestRecordRSVP(t *testing.T) {
	svc, _, users, _ := newBroadcastFixture()
	seedUsers(users, "a@x.example", "b@x.example")

	b, err := svc.CreateBroadcast(1, "RSVP please", "who is coming", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.RecordRSVP(b.ID, 1, models.RSVPYes); err != nil {
		t.Fatalf("rsvp failed: %v", err)
	}
	if err := svc.RecordRSVP(b.ID, 2, models.RSVPMaybe); err != nil {
		t.Fatalf("rsvp failed: %v", err)
	}
	// A changed mind replaces the earlier answer
	if err := svc.RecordRSVP(b.ID, 2, models.RSVPNo); err != nil {
		t.Fatalf("rsvp failed: %v", err)
	}

	summary, err := svc.GetRSVPSummary(b.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Yes != 1 || summary.No != 1 || summary.Maybe != 0 {
		t.Errorf("summary = %+v, want yes 1 no 1 maybe 0", summary)
	}
}

func TestRecordRSVPInvalidResponse(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()

	err := svc.RecordRSVP(1, 1, "PERHAPS")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordRSVPUnknownBroadcast(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()

	err := svc.RecordRSVP(404, 1, models.RSVPYes)
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendBroadcastImmediately(t *testing.T) {
	svc, broadcasts, users, _ := newBroadcastFixture()
	seedUsers(users, "a@x.example", "b@x.example")

	future := time.Now().Add(24 * time.Hour)
	b, err := svc.CreateBroadcast(1, "Urgent", "go out now", &future)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sent, err := svc.SendBroadcast(context.Background(), 1, b.ID)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !sent.IsSent() {
		t.Fatal("broadcast not marked sent")
	}
	if sent.SentCount != 2 {
		t.Errorf("sent count = %d, want 2", sent.SentCount)
	}

	// A second send is a conflict, and the counts stay put
	_, err = svc.SendBroadcast(context.Background(), 1, b.ID)
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	final, _ := broadcasts.GetBroadcast(b.ID)
	if final.SentCount != 2 {
		t.Errorf("sent count = %d after resend, want 2", final.SentCount)
	}
}

func TestSendBroadcastUnknownID(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()

	_, err := svc.SendBroadcast(context.Background(), 1, 404)
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
