package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"cmt/internal/domain"
	"cmt/internal/policy"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const testTimeout = 5 * time.Second

type fakeUserRepo struct {
	users     map[string]*domain.User
	nextID    int
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("u-%d", f.nextID)
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) ListByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	var out []*domain.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	f.users[u.ID] = u
	return nil
}

type fakeRoleRepo struct {
	known  map[string]bool
	grants map[string][]string
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		known:  map[string]bool{domain.RoleCodeAdmin: true, domain.RoleCodeMember: true},
		grants: make(map[string][]string),
	}
}

func (f *fakeRoleRepo) Grant(ctx context.Context, userID, code string) error {
	if !f.known[code] {
		return domain.ErrNotFound
	}
	if !slices.Contains(f.grants[userID], code) {
		f.grants[userID] = append(f.grants[userID], code)
	}
	return nil
}

func (f *fakeRoleRepo) CodesForUser(ctx context.Context, userID string) ([]string, error) {
	return f.grants[userID], nil
}

type fakePasswordHasher struct{}

func (fakePasswordHasher) GenerateSalt() (string, error) { return "salt", nil }
func (fakePasswordHasher) Hash(salt, password string) (string, error) {
	return "hash-" + salt + "-" + password, nil
}
func (fakePasswordHasher) Compare(hash, salt, password string) error {
	if hash != "hash-"+salt+"-"+password {
		return errors.New("mismatch")
	}
	return nil
}

type fakeTokenIssuer struct {
	err   error
	roles []string
}

func (f *fakeTokenIssuer) Issue(userID, email string, roles []string, expiry time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.roles = roles
	return "token-" + userID, nil
}

// sentEmail records one EmailService call.
type sentEmail struct {
	template string
	to       string
	data     any
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmailService) record(template, to string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{template: template, to: to, data: data})
	return nil
}

func (f *fakeEmailService) byTemplate(template string) []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEmail
	for _, e := range f.sent {
		if e.template == template {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEmailService) SendWelcomeMessage(ctx context.Context, d *domain.WelcomeMessageEmailData) error {
	return f.record("welcome", d.Email, d)
}

func (f *fakeEmailService) SendSubmissionConfirmation(ctx context.Context, d *domain.SubmissionConfirmationEmailData) error {
	return f.record("submission_confirmation", d.Email, d)
}

func (f *fakeEmailService) SendReviewNotification(ctx context.Context, d *domain.ReviewNotificationEmailData) error {
	return f.record("review_notification", d.Email, d)
}

func (f *fakeEmailService) SendReviewerAssignment(ctx context.Context, d *domain.ReviewerAssignmentEmailData) error {
	return f.record("reviewer_assignment", d.Email, d)
}

func (f *fakeEmailService) SendStatusChange(ctx context.Context, d *domain.StatusChangeEmailData) error {
	return f.record("submission_status", d.Email, d)
}

type fakeConfRepo struct {
	confs  map[string]*domain.Conference
	tracks map[string]*domain.Track
	nextID int
}

func newFakeConfRepo() *fakeConfRepo {
	return &fakeConfRepo{confs: make(map[string]*domain.Conference), tracks: make(map[string]*domain.Track)}
}

func (f *fakeConfRepo) Create(ctx context.Context, c *domain.Conference) error {
	for _, existing := range f.confs {
		if existing.Slug == c.Slug {
			return domain.ErrDuplicateConference
		}
	}
	f.nextID++
	c.ID = fmt.Sprintf("c-%d", f.nextID)
	f.confs[c.ID] = c
	return nil
}

func (f *fakeConfRepo) GetByID(ctx context.Context, id string) (*domain.Conference, error) {
	if c, ok := f.confs[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeConfRepo) GetBySlug(ctx context.Context, slug string) (*domain.Conference, error) {
	for _, c := range f.confs {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeConfRepo) List(ctx context.Context, params domain.PaginationParams) ([]*domain.Conference, int, error) {
	var out []*domain.Conference
	for _, c := range f.confs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeConfRepo) Update(ctx context.Context, c *domain.Conference) error {
	for _, existing := range f.confs {
		if existing.ID != c.ID && existing.Slug == c.Slug {
			return domain.ErrDuplicateConference
		}
	}
	if _, ok := f.confs[c.ID]; !ok {
		return domain.ErrNotFound
	}
	f.confs[c.ID] = c
	return nil
}

func (f *fakeConfRepo) CreateTrack(ctx context.Context, t *domain.Track) error {
	for _, existing := range f.tracks {
		if existing.ConferenceID == t.ConferenceID && existing.Name == t.Name {
			return domain.ErrDuplicateTrack
		}
	}
	f.nextID++
	t.ID = fmt.Sprintf("t-%d", f.nextID)
	f.tracks[t.ID] = t
	return nil
}

func (f *fakeConfRepo) GetTrackByID(ctx context.Context, id string) (*domain.Track, error) {
	if t, ok := f.tracks[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeConfRepo) ListTracks(ctx context.Context, conferenceID string) ([]*domain.Track, error) {
	var out []*domain.Track
	for _, t := range f.tracks {
		if t.ConferenceID == conferenceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeConfRepo) DeleteTrack(ctx context.Context, id string) error {
	if _, ok := f.tracks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.tracks, id)
	return nil
}

type fakeMembershipRepo struct {
	ms        map[string]*domain.Membership
	users     *fakeUserRepo
	nextID    int
	createErr error
}

func newFakeMembershipRepo(users *fakeUserRepo) *fakeMembershipRepo {
	return &fakeMembershipRepo{ms: make(map[string]*domain.Membership), users: users}
}

func (f *fakeMembershipRepo) withUser(m *domain.Membership) *domain.Membership {
	if f.users != nil {
		m.User = f.users.users[m.UserID]
	}
	return m
}

func (f *fakeMembershipRepo) sorted(keep func(*domain.Membership) bool) []*domain.Membership {
	var out []*domain.Membership
	for _, m := range f.ms {
		if keep(m) {
			out = append(out, f.withUser(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeMembershipRepo) Create(ctx context.Context, m *domain.Membership) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.ms {
		if existing.UserID == m.UserID && existing.ConferenceID == m.ConferenceID {
			return domain.ErrAlreadyMember
		}
	}
	f.nextID++
	m.ID = fmt.Sprintf("m-%d", f.nextID)
	f.ms[m.ID] = m
	return nil
}

func (f *fakeMembershipRepo) GetByID(ctx context.Context, id string) (*domain.Membership, error) {
	if m, ok := f.ms[id]; ok {
		return f.withUser(m), nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeMembershipRepo) GetByUserAndConference(ctx context.Context, userID, conferenceID string) (*domain.Membership, error) {
	for _, m := range f.ms {
		if m.UserID == userID && m.ConferenceID == conferenceID {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeMembershipRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Membership, error) {
	return f.sorted(func(m *domain.Membership) bool { return m.UserID == userID }), nil
}

func (f *fakeMembershipRepo) ListByConferenceID(ctx context.Context, conferenceID string) ([]*domain.Membership, error) {
	return f.sorted(func(m *domain.Membership) bool { return m.ConferenceID == conferenceID }), nil
}

func (f *fakeMembershipRepo) ListByRole(ctx context.Context, conferenceID string, role domain.MemberRole) ([]*domain.Membership, error) {
	return f.sorted(func(m *domain.Membership) bool { return m.ConferenceID == conferenceID && m.Roles.Has(role) }), nil
}

func (f *fakeMembershipRepo) Update(ctx context.Context, m *domain.Membership) error {
	stored, ok := f.ms[m.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Roles = m.Roles
	stored.Status = m.Status
	m.IsPaid = stored.IsPaid
	return nil
}

func (f *fakeMembershipRepo) MarkPaid(ctx context.Context, userID, conferenceID string) error {
	for _, m := range f.ms {
		if m.UserID == userID && m.ConferenceID == conferenceID {
			m.IsPaid = true
		}
	}
	return nil
}

type fakeSubmissionRepo struct {
	subs      map[string]*domain.Submission
	nextID    int
	locked    []string
	statusErr error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[string]*domain.Submission)}
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	for _, existing := range f.subs {
		if existing.MembershipID == s.MembershipID && existing.TrackID == s.TrackID && existing.PaperTitle == s.PaperTitle {
			return domain.ErrDuplicateSubmission
		}
	}
	f.nextID++
	s.ID = fmt.Sprintf("s-%d", f.nextID)
	f.subs[s.ID] = s
	return nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	if s, ok := f.subs[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSubmissionRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Submission, error) {
	f.locked = append(f.locked, id)
	return f.GetByID(ctx, id)
}

func (f *fakeSubmissionRepo) list(keep func(*domain.Submission) bool) []*domain.Submission {
	var out []*domain.Submission
	for _, s := range f.subs {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeSubmissionRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Submission, error) {
	return f.list(func(s *domain.Submission) bool { return s.IsAuthor(userID) }), nil
}

func (f *fakeSubmissionRepo) ListByConference(ctx context.Context, conferenceID string) ([]*domain.Submission, error) {
	return f.list(func(s *domain.Submission) bool { return s.ConferenceID == conferenceID }), nil
}

func (f *fakeSubmissionRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, s := range f.list(func(*domain.Submission) bool { return true }) {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, s *domain.Submission) error {
	if _, ok := f.subs[s.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *s
	f.subs[s.ID] = &cp
	return nil
}

func (f *fakeSubmissionRepo) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	s, ok := f.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeSubmissionRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.subs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.subs, id)
	return nil
}

type fakeReviewRepo struct {
	assignments map[string]*domain.ReviewerAssignment
	reviews     map[string]*domain.Review // keyed by assignment id
	members     *fakeMembershipRepo
	subs        *fakeSubmissionRepo
	nextID      int
}

func newFakeReviewRepo(members *fakeMembershipRepo, subs *fakeSubmissionRepo) *fakeReviewRepo {
	return &fakeReviewRepo{
		assignments: make(map[string]*domain.ReviewerAssignment),
		reviews:     make(map[string]*domain.Review),
		members:     members,
		subs:        subs,
	}
}

func (f *fakeReviewRepo) hydrate(a *domain.ReviewerAssignment) *domain.ReviewerAssignment {
	cp := *a
	if m, ok := f.members.ms[a.ReviewerMembershipID]; ok {
		cp.Reviewer = f.members.withUser(m)
	}
	if r, ok := f.reviews[a.ID]; ok {
		rv := *r
		cp.Review = &rv
	} else {
		cp.Review = nil
	}
	return &cp
}

func (f *fakeReviewRepo) list(keep func(*domain.ReviewerAssignment) bool) []*domain.ReviewerAssignment {
	var out []*domain.ReviewerAssignment
	for _, a := range f.assignments {
		if keep(a) {
			out = append(out, f.hydrate(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeReviewRepo) CreateAssignment(ctx context.Context, a *domain.ReviewerAssignment) error {
	for _, existing := range f.assignments {
		if existing.SubmissionID == a.SubmissionID && existing.ReviewerMembershipID == a.ReviewerMembershipID {
			return domain.ErrDuplicateAssignment
		}
	}
	f.nextID++
	a.ID = fmt.Sprintf("a-%02d", f.nextID)
	cp := *a
	f.assignments[a.ID] = &cp
	return nil
}

func (f *fakeReviewRepo) GetAssignment(ctx context.Context, id string) (*domain.ReviewerAssignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f.hydrate(a), nil
}

func (f *fakeReviewRepo) ListAssignmentsBySubmission(ctx context.Context, submissionID string) ([]*domain.ReviewerAssignment, error) {
	return f.list(func(a *domain.ReviewerAssignment) bool { return a.SubmissionID == submissionID }), nil
}

func (f *fakeReviewRepo) ListAssignmentsByConference(ctx context.Context, conferenceID string) ([]*domain.ReviewerAssignment, error) {
	return f.list(func(a *domain.ReviewerAssignment) bool {
		s, ok := f.subs.subs[a.SubmissionID]
		return ok && s.ConferenceID == conferenceID
	}), nil
}

func (f *fakeReviewRepo) ListAssignmentsByReviewerUser(ctx context.Context, userID string) ([]*domain.ReviewerAssignment, error) {
	return f.list(func(a *domain.ReviewerAssignment) bool {
		m, ok := f.members.ms[a.ReviewerMembershipID]
		return ok && m.UserID == userID
	}), nil
}

func (f *fakeReviewRepo) DeleteAssignment(ctx context.Context, id string) error {
	if _, ok := f.assignments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.assignments, id)
	delete(f.reviews, id)
	return nil
}

func (f *fakeReviewRepo) SaveReview(ctx context.Context, r *domain.Review) error {
	if stored, ok := f.reviews[r.AssignmentID]; ok && stored.IsSubmitted {
		return domain.ErrReviewSubmitted
	}
	if r.ID == "" {
		f.nextID++
		r.ID = fmt.Sprintf("rv-%02d", f.nextID)
	}
	cp := *r
	f.reviews[r.AssignmentID] = &cp
	return nil
}

func (f *fakeReviewRepo) AmendRecommendation(ctx context.Context, assignmentID string, rec domain.Recommendation) error {
	stored, ok := f.reviews[assignmentID]
	if !ok || !stored.IsSubmitted {
		return domain.ErrReviewNotSubmitted
	}
	stored.Recommendation = rec
	return nil
}

func (f *fakeReviewRepo) ListReviewsBySubmission(ctx context.Context, submissionID string) ([]*domain.Review, error) {
	var out []*domain.Review
	for _, r := range f.reviews {
		if r.SubmissionID == submissionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) ListSubmittedReviewsForAuthor(ctx context.Context, userID string) ([]*domain.Review, error) {
	var out []*domain.Review
	for _, r := range f.reviews {
		s, ok := f.subs.subs[r.SubmissionID]
		if r.IsSubmitted && ok && s.IsAuthor(userID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeTx runs fn directly. A non-nil err from fn is returned unchanged.
type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeFileStore struct {
	files   map[string][]byte
	nextID  int
	deleted []string
	saveErr error
}

func newFakeFileStore() *fakeFileStore { return &fakeFileStore{files: make(map[string][]byte)} }

func (f *fakeFileStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.nextID++
	key := fmt.Sprintf("paper-%d.pdf", f.nextID)
	f.files[key] = b
	return key, nil
}

func (f *fakeFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFileStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.files, key)
	return nil
}

func pdf(name, body string) *domain.Upload {
	return &domain.Upload{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

type fakePaymentRepo struct {
	payments map[string]*domain.Payment
	nextID   int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (f *fakePaymentRepo) find(keep func(*domain.Payment) bool) (*domain.Payment, error) {
	for _, p := range f.payments {
		if keep(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakePaymentRepo) GetByUserAndConference(ctx context.Context, userID, conferenceID string) (*domain.Payment, error) {
	return f.find(func(p *domain.Payment) bool { return p.UserID == userID && p.ConferenceID == conferenceID })
}

func (f *fakePaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return f.find(func(p *domain.Payment) bool { return p.ProviderOrderID != nil && *p.ProviderOrderID == orderID })
}

func (f *fakePaymentRepo) GetByCaptureID(ctx context.Context, captureID string) (*domain.Payment, error) {
	return f.find(func(p *domain.Payment) bool { return p.ProviderCaptureID != nil && *p.ProviderCaptureID == captureID })
}

func (f *fakePaymentRepo) Upsert(ctx context.Context, p *domain.Payment) error {
	for _, existing := range f.payments {
		if existing.UserID == p.UserID && existing.ConferenceID == p.ConferenceID {
			if existing.Status == domain.PaymentCompleted {
				return domain.ErrAlreadyPaid
			}
			existing.AmountCents, existing.Currency, existing.Tier = p.AmountCents, p.Currency, p.Tier
			existing.Status = domain.PaymentPending
			existing.ProviderOrderID, existing.ProviderCaptureID = nil, nil
			*p = *existing
			return nil
		}
	}
	f.nextID++
	p.ID = fmt.Sprintf("p-%d", f.nextID)
	p.Status = domain.PaymentPending
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePaymentRepo) SetOrder(ctx context.Context, id, orderID string) error {
	for _, p := range f.payments {
		if p.ID != id && p.ProviderOrderID != nil && *p.ProviderOrderID == orderID {
			return domain.ErrDuplicatePayment
		}
	}
	f.payments[id].ProviderOrderID = &orderID
	return nil
}

func (f *fakePaymentRepo) SetCapture(ctx context.Context, id, captureID string) error {
	for _, p := range f.payments {
		if p.ID != id && p.ProviderCaptureID != nil && *p.ProviderCaptureID == captureID {
			return domain.ErrDuplicatePayment
		}
	}
	f.payments[id].ProviderCaptureID = &captureID
	return nil
}

func (f *fakePaymentRepo) MarkCompleted(ctx context.Context, id string) (bool, error) {
	p := f.payments[id]
	if p.Status == domain.PaymentCompleted {
		return false, nil
	}
	p.Status = domain.PaymentCompleted
	return true, nil
}

func (f *fakePaymentRepo) MarkFailed(ctx context.Context, id string) error {
	if p := f.payments[id]; p.Status != domain.PaymentCompleted {
		p.Status = domain.PaymentFailed
	}
	return nil
}

func (f *fakePaymentRepo) MarkCancelled(ctx context.Context, id string) error {
	if p := f.payments[id]; p.Status == domain.PaymentPending {
		p.Status = domain.PaymentCancelled
	}
	return nil
}

type fakeGateway struct {
	createErr  error
	captureErr error
	captured   *domain.Order
	event      *domain.WebhookEvent
	verifyErr  error
	requests   []domain.OrderRequest
	nextID     int
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("ORDER-%d", f.nextID)
	return &domain.Order{ID: id, Status: "CREATED", ApproveURL: "https://pay.example/approve?token=" + id}, nil
}

func (f *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	o := *f.captured
	o.ID = orderID
	return &o, nil
}

func (f *fakeGateway) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o := *f.captured
	o.ID = orderID
	return &o, nil
}

func (f *fakeGateway) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

// world wires the fakes together and offers fixture helpers.
type world struct {
	users    *fakeUserRepo
	roles    *fakeRoleRepo
	confs    *fakeConfRepo
	members  *fakeMembershipRepo
	subs     *fakeSubmissionRepo
	reviews  *fakeReviewRepo
	payments *fakePaymentRepo
	files    *fakeFileStore
	emails   *fakeEmailService
	tx       *fakeTx
}

func newWorld() *world {
	users := newFakeUserRepo()
	members := newFakeMembershipRepo(users)
	subs := newFakeSubmissionRepo()
	return &world{
		users:    users,
		roles:    newFakeRoleRepo(),
		confs:    newFakeConfRepo(),
		members:  members,
		subs:     subs,
		reviews:  newFakeReviewRepo(members, subs),
		payments: newFakePaymentRepo(),
		files:    newFakeFileStore(),
		emails:   &fakeEmailService{},
		tx:       &fakeTx{},
	}
}

func (w *world) addUser(id string, occupation domain.Occupation) *domain.User {
	u := &domain.User{ID: id, Email: id + "@example.org", FirstName: strings.ToUpper(id[:1]) + id[1:], LastName: "Test", Occupation: occupation}
	w.users.users[id] = u
	return u
}

func (w *world) addConference(id, slug string) *domain.Conference {
	c := &domain.Conference{ID: id, Name: "Conf " + id, Slug: slug}
	w.confs.confs[id] = c
	return c
}

func (w *world) addTrack(id, conferenceID, name string) *domain.Track {
	t := &domain.Track{ID: id, ConferenceID: conferenceID, Name: name}
	w.confs.tracks[id] = t
	return t
}

func (w *world) addMember(id, userID, conferenceID string, roles ...domain.MemberRole) *domain.Membership {
	m := &domain.Membership{ID: id, UserID: userID, ConferenceID: conferenceID, Roles: domain.NewRoleSet(roles...), Status: domain.MembershipAccepted}
	w.members.ms[id] = m
	return m
}

func (w *world) addSubmission(id, membershipID, trackID string, coAuthors ...string) *domain.Submission {
	m := w.members.ms[membershipID]
	s := &domain.Submission{
		ID:           id,
		MembershipID: membershipID,
		TrackID:      trackID,
		ConferenceID: m.ConferenceID,
		AuthorUserID: m.UserID,
		PaperTitle:   "Paper " + id,
		FileKey:      id + ".pdf",
		Status:       domain.SubmissionPending,
	}
	s.SetCoAuthors(coAuthors)
	w.subs.subs[id] = s
	w.files.files[s.FileKey] = []byte("%PDF-1.4")
	return s
}

func (w *world) viewer(userID string) domain.Viewer {
	ms, _ := w.members.ListByUserID(context.Background(), userID)
	return policy.NewViewer(userID, false, ms)
}

func (w *world) staff(userID string) domain.Viewer {
	ms, _ := w.members.ListByUserID(context.Background(), userID)
	return policy.NewViewer(userID, true, ms)
}

func (w *world) status(submissionID string) domain.SubmissionStatus {
	return w.subs.subs[submissionID].Status
}
