package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"familytree/internal/logger"
	"familytree/internal/models"
)

func testLogger() *logger.Logger {
	return logger.New("test")
}

// fakeMemberStore is an in-memory MemberStore
type fakeMemberStore struct {
	members map[string]*models.FamilyMember
	nextSeq map[int]int
	failIDs map[string]bool
	created []string
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{
		members: make(map[string]*models.FamilyMember),
		nextSeq: make(map[int]int),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeMemberStore) NextMemberID(generation int) (string, error) {
	f.nextSeq[generation]++
	return fmt.Sprintf("G%d-%04d", generation, f.nextSeq[generation]), nil
}

func (f *fakeMemberStore) CreateMember(m *models.FamilyMember) error {
	if f.failIDs[m.ID] {
		return fmt.Errorf("insert failed for %s", m.ID)
	}
	clone := *m
	f.members[m.ID] = &clone
	f.created = append(f.created, m.ID)
	return nil
}

func (f *fakeMemberStore) GetMember(id string) (*models.FamilyMember, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, nil
	}
	clone := *m
	return &clone, nil
}

func (f *fakeMemberStore) ListMembers(branch string) ([]models.FamilyMember, error) {
	ids := make([]string, 0, len(f.members))
	for id := range f.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []models.FamilyMember
	for _, id := range ids {
		m := f.members[id]
		if branch != "" && m.Branch != branch {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMemberStore) ListChildren(fatherID string) ([]models.FamilyMember, error) {
	var out []models.FamilyMember
	for _, m := range f.members {
		if m.FatherID != nil && *m.FatherID == fatherID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMemberStore) ListBranches() ([]string, error) {
	seen := make(map[string]bool)
	for _, m := range f.members {
		if m.Branch != "" {
			seen[m.Branch] = true
		}
	}
	var out []string
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeMemberStore) UpdateMemberFields(id string, changes map[string]interface{}) error {
	m, ok := f.members[id]
	if !ok {
		return sql.ErrNoRows
	}
	for field, value := range changes {
		switch field {
		case "city":
			m.City, _ = value.(string)
		case "phone":
			m.Phone, _ = value.(string)
		case "email":
			m.Email, _ = value.(string)
		case "photoUrl":
			m.PhotoURL, _ = value.(string)
		case "biography":
			m.Biography, _ = value.(string)
		case "occupation":
			m.Occupation, _ = value.(string)
		case "status":
			if s, ok := value.(string); ok {
				m.Status = models.MemberStatus(s)
			}
		case "birthYear":
			if n, ok := value.(float64); ok {
				year := int(n)
				m.BirthYear = &year
			}
		case "deathYear":
			if n, ok := value.(float64); ok {
				year := int(n)
				m.DeathYear = &year
			}
		}
	}
	return nil
}

func (f *fakeMemberStore) AdjustChildCount(fatherID, gender string) error {
	m, ok := f.members[fatherID]
	if !ok {
		return sql.ErrNoRows
	}
	if gender == "Female" {
		m.DaughtersCount++
	} else {
		m.SonsCount++
	}
	return nil
}

func (f *fakeMemberStore) CountMembers() (int, error) {
	return len(f.members), nil
}

func (f *fakeMemberStore) DeleteMember(id string) error {
	delete(f.members, id)
	return nil
}

func (f *fakeMemberStore) DeleteAllMembers() error {
	f.members = make(map[string]*models.FamilyMember)
	return nil
}

// fakePendingStore is an in-memory PendingStore
type fakePendingStore struct {
	pending map[int64]*models.PendingMember
	nextID  int64
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{pending: make(map[int64]*models.PendingMember)}
}

func (f *fakePendingStore) CreatePending(p *models.PendingMember) (int64, error) {
	f.nextID++
	clone := *p
	clone.ID = f.nextID
	f.pending[f.nextID] = &clone
	return f.nextID, nil
}

func (f *fakePendingStore) GetPending(id int64) (*models.PendingMember, error) {
	p, ok := f.pending[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (f *fakePendingStore) ListPending(status models.ReviewStatus) ([]models.PendingMember, error) {
	var out []models.PendingMember
	for _, p := range f.pending {
		if status == "" || p.ReviewStatus == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePendingStore) MarkReviewed(id int64, status models.ReviewStatus, reviewerID int64, note string, approvedMemberID *string) (bool, error) {
	p, ok := f.pending[id]
	if !ok || p.ReviewStatus != models.ReviewPending {
		return false, nil
	}
	p.ReviewStatus = status
	p.ReviewedBy = &reviewerID
	p.ReviewNote = note
	p.ApprovedMemberID = approvedMemberID
	return true, nil
}

// fakeUpdateStore is an in-memory UpdateRequestStore
type fakeUpdateStore struct {
	requests map[int64]*models.MemberUpdateRequest
	nextID   int64
}

func newFakeUpdateStore() *fakeUpdateStore {
	return &fakeUpdateStore{requests: make(map[int64]*models.MemberUpdateRequest)}
}

func (f *fakeUpdateStore) CreateUpdateRequest(req *models.MemberUpdateRequest) (int64, error) {
	f.nextID++
	clone := *req
	clone.ID = f.nextID
	f.requests[f.nextID] = &clone
	return f.nextID, nil
}

func (f *fakeUpdateStore) GetUpdateRequest(id int64) (*models.MemberUpdateRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	clone := *req
	return &clone, nil
}

func (f *fakeUpdateStore) ListUpdateRequests(status models.ReviewStatus) ([]models.MemberUpdateRequest, error) {
	var out []models.MemberUpdateRequest
	for _, req := range f.requests {
		if status == "" || req.ReviewStatus == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeUpdateStore) MarkReviewed(id int64, status models.ReviewStatus, reviewerID int64, note string) (bool, error) {
	req, ok := f.requests[id]
	if !ok || req.ReviewStatus != models.ReviewPending {
		return false, nil
	}
	req.ReviewStatus = status
	req.ReviewedBy = &reviewerID
	req.ReviewNote = note
	return true, nil
}

// fakeActivityStore captures audit entries
type fakeActivityStore struct {
	entries []models.ActivityLog
}

func (f *fakeActivityStore) Record(entry *models.ActivityLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeActivityStore) List(limit int) ([]models.ActivityLog, error) {
	if limit > 0 && limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeActivityStore) actions() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeSnapshotStore is an in-memory SnapshotStore
type fakeSnapshotStore struct {
	snapshots map[int64]*models.Snapshot
	nextID    int64
	clock     *time.Time
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[int64]*models.Snapshot)}
}

func (f *fakeSnapshotStore) CreateSnapshot(s *models.Snapshot) (int64, error) {
	f.nextID++
	clone := *s
	clone.ID = f.nextID
	if clone.CreatedAt.IsZero() {
		if f.clock != nil {
			clone.CreatedAt = *f.clock
		} else {
			clone.CreatedAt = time.Now()
		}
	}
	f.snapshots[f.nextID] = &clone
	return f.nextID, nil
}

func (f *fakeSnapshotStore) GetSnapshot(id int64) (*models.Snapshot, error) {
	s, ok := f.snapshots[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (f *fakeSnapshotStore) ListSnapshots() ([]models.Snapshot, error) {
	var out []models.Snapshot
	for _, s := range f.sortedNewestFirst() {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSnapshotStore) LatestAutoBackup() (*models.Snapshot, error) {
	for _, s := range f.sortedNewestFirst() {
		if s.SnapshotType == models.SnapshotAutoBackup {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeSnapshotStore) DeleteSnapshot(id int64) error {
	if _, ok := f.snapshots[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.snapshots, id)
	return nil
}

func (f *fakeSnapshotStore) ListAutoBackupIDs() ([]int64, error) {
	var ids []int64
	for _, s := range f.sortedNewestFirst() {
		if s.SnapshotType == models.SnapshotAutoBackup {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (f *fakeSnapshotStore) DeleteAutoBackupsOlderThan(cutoff time.Time) (int64, error) {
	var deleted int64
	for id, s := range f.snapshots {
		if s.SnapshotType == models.SnapshotAutoBackup && s.CreatedAt.Before(cutoff) {
			delete(f.snapshots, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeSnapshotStore) sortedNewestFirst() []*models.Snapshot {
	var all []*models.Snapshot
	for _, s := range f.snapshots {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

// fakeConfigStore is an in-memory BackupConfigStore
type fakeConfigStore struct {
	cfg  *models.BackupConfig
	runs []string
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{cfg: models.DefaultBackupConfig()}
}

func (f *fakeConfigStore) GetConfig() (*models.BackupConfig, error) {
	clone := *f.cfg
	return &clone, nil
}

func (f *fakeConfigStore) UpdateConfig(cfg *models.BackupConfig) error {
	clone := *cfg
	f.cfg = &clone
	return nil
}

func (f *fakeConfigStore) RecordRun(status, errMsg string, at time.Time) error {
	f.runs = append(f.runs, status)
	f.cfg.LastBackupAt = &at
	f.cfg.LastStatus = status
	f.cfg.LastError = errMsg
	return nil
}

// fakeUserStore is an in-memory UserStore
type fakeUserStore struct {
	users    map[int64]*models.User
	sessions map[string]*models.Session
	tokens   map[string]*models.PasswordResetToken
	nextID   int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    make(map[int64]*models.User),
		sessions: make(map[string]*models.Session),
		tokens:   make(map[string]*models.PasswordResetToken),
	}
}

func (f *fakeUserStore) CreateUser(u *models.User) (int64, error) {
	f.nextID++
	clone := *u
	clone.ID = f.nextID
	f.users[f.nextID] = &clone
	return f.nextID, nil
}

func (f *fakeUserStore) GetUserByID(id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserStore) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) GetUserByOAuth(provider, subject string) (*models.User, error) {
	for _, u := range f.users {
		if u.OAuthProvider == provider && u.OAuthSubject == subject {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) ListUsers(branch string) ([]models.User, error) {
	var ids []int64
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.User
	for _, id := range ids {
		u := f.users[id]
		if branch != "" && u.AssignedBranch != branch {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserStore) UpdateUserRole(id int64, role models.Role, branch string) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	u.AssignedBranch = branch
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(id int64, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserStore) LinkOAuthIdentity(id int64, provider, subject string) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.OAuthProvider = provider
	u.OAuthSubject = subject
	return nil
}

func (f *fakeUserStore) CountUsers() (int, error) {
	return len(f.users), nil
}

func (f *fakeUserStore) CreateSession(s *models.Session) error {
	clone := *s
	f.sessions[s.ID] = &clone
	return nil
}

func (f *fakeUserStore) GetSession(id string) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (f *fakeUserStore) DeleteSession(id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeUserStore) DeleteUserSessions(userID int64) error {
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeUserStore) DeleteExpiredSessions() (int64, error) {
	var deleted int64
	for id, s := range f.sessions {
		if s.IsExpired() {
			delete(f.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeUserStore) CreateResetToken(t *models.PasswordResetToken) error {
	clone := *t
	f.tokens[t.Token] = &clone
	return nil
}

func (f *fakeUserStore) GetResetToken(token string) (*models.PasswordResetToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (f *fakeUserStore) MarkResetTokenUsed(token string) (bool, error) {
	t, ok := f.tokens[token]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	return true, nil
}

// fakeInviteStore is an in-memory InviteStore
type fakeInviteStore struct {
	invites map[string]*models.Invite
	nextID  int64
}

func newFakeInviteStore() *fakeInviteStore {
	return &fakeInviteStore{invites: make(map[string]*models.Invite)}
}

func (f *fakeInviteStore) CreateInvite(inv *models.Invite) (int64, error) {
	f.nextID++
	clone := *inv
	clone.ID = f.nextID
	f.invites[inv.Code] = &clone
	return f.nextID, nil
}

func (f *fakeInviteStore) GetInviteByCode(code string) (*models.Invite, error) {
	inv, ok := f.invites[code]
	if !ok {
		return nil, nil
	}
	clone := *inv
	return &clone, nil
}

func (f *fakeInviteStore) ListInvites(branch string) ([]models.Invite, error) {
	var out []models.Invite
	for _, inv := range f.invites {
		if branch != "" && inv.Branch != branch {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (f *fakeInviteStore) MarkInviteUsed(code string, usedBy int64) (bool, error) {
	inv, ok := f.invites[code]
	if !ok || inv.UsedAt != nil {
		return false, nil
	}
	now := time.Now()
	inv.UsedAt = &now
	inv.UsedBy = &usedBy
	return true, nil
}

func (f *fakeInviteStore) DeleteInvite(id int64) error {
	for code, inv := range f.invites {
		if inv.ID == id {
			delete(f.invites, code)
			return nil
		}
	}
	return sql.ErrNoRows
}

// fakeEmailSender records sends and can fail selected recipients
type fakeEmailSender struct {
	enabled bool
	sent    []string
	failFor map[string]bool
}

func newFakeEmailSender() *fakeEmailSender {
	return &fakeEmailSender{enabled: true, failFor: make(map[string]bool)}
}

func (f *fakeEmailSender) IsEnabled() bool { return f.enabled }

func (f *fakeEmailSender) send(toEmail string) error {
	if f.failFor[toEmail] {
		return fmt.Errorf("delivery to %s failed", toEmail)
	}
	f.sent = append(f.sent, toEmail)
	return nil
}

func (f *fakeEmailSender) SendPasswordResetEmail(_ context.Context, toEmail, _, _ string) error {
	return f.send(toEmail)
}

func (f *fakeEmailSender) SendWelcomeEmail(_ context.Context, toEmail, _ string) error {
	return f.send(toEmail)
}

func (f *fakeEmailSender) SendInviteEmail(_ context.Context, toEmail, _, _ string) error {
	return f.send(toEmail)
}

func (f *fakeEmailSender) SendBroadcastEmail(_ context.Context, toEmail, _, _ string) error {
	return f.send(toEmail)
}

// fakeBroadcastStore is an in-memory BroadcastStore
type fakeBroadcastStore struct {
	broadcasts map[int64]*models.Broadcast
	rsvps      map[string]*models.BroadcastRSVP
	nextID     int64
}

func newFakeBroadcastStore() *fakeBroadcastStore {
	return &fakeBroadcastStore{
		broadcasts: make(map[int64]*models.Broadcast),
		rsvps:      make(map[string]*models.BroadcastRSVP),
	}
}

func (f *fakeBroadcastStore) CreateBroadcast(b *models.Broadcast) (int64, error) {
	f.nextID++
	clone := *b
	clone.ID = f.nextID
	f.broadcasts[f.nextID] = &clone
	return f.nextID, nil
}

func (f *fakeBroadcastStore) GetBroadcast(id int64) (*models.Broadcast, error) {
	b, ok := f.broadcasts[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBroadcastStore) ListBroadcasts() ([]models.Broadcast, error) {
	var out []models.Broadcast
	for _, b := range f.broadcasts {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBroadcastStore) ListDue(now time.Time) ([]models.Broadcast, error) {
	var out []models.Broadcast
	for _, b := range f.broadcasts {
		if b.SentAt != nil {
			continue
		}
		if b.ScheduledAt == nil || !b.ScheduledAt.After(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBroadcastStore) MarkSent(id int64, sentCount, failedCount int, at time.Time) (bool, error) {
	b, ok := f.broadcasts[id]
	if !ok || b.SentAt != nil {
		return false, nil
	}
	b.SentAt = &at
	b.SentCount = sentCount
	b.FailedCount = failedCount
	return true, nil
}

func (f *fakeBroadcastStore) DeleteBroadcast(id int64) error {
	if _, ok := f.broadcasts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.broadcasts, id)
	return nil
}

func (f *fakeBroadcastStore) UpsertRSVP(broadcastID, userID int64, response models.RSVPResponse) error {
	key := fmt.Sprintf("%d:%d", broadcastID, userID)
	f.rsvps[key] = &models.BroadcastRSVP{
		BroadcastID: broadcastID,
		UserID:      userID,
		Response:    response,
		UpdatedAt:   time.Now(),
	}
	return nil
}

func (f *fakeBroadcastStore) ListRSVPs(broadcastID int64) ([]models.BroadcastRSVP, error) {
	var out []models.BroadcastRSVP
	for _, r := range f.rsvps {
		if r.BroadcastID == broadcastID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeBroadcastStore) SummarizeRSVPs(broadcastID int64) (*models.RSVPSummary, error) {
	summary := &models.RSVPSummary{}
	for _, r := range f.rsvps {
		if r.BroadcastID != broadcastID {
			continue
		}
		switch r.Response {
		case models.RSVPYes:
			summary.Yes++
		case models.RSVPNo:
			summary.No++
		case models.RSVPMaybe:
			summary.Maybe++
		}
	}
	return summary, nil
}
