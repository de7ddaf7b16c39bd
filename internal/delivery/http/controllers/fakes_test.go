package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/delivery/http/middleware"
	"cmt/internal/domain"
	"cmt/internal/policy"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// decodeEnvelope decodes the response envelope and, when dest is non-nil, its data.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, dest any) *helpers.APIError {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	if dest != nil && envelope.Error == nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dest))
	}
	return envelope.Error
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, "http://test"+target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.SetUserID(req.Context(), userID))
}

func asViewer(req *http.Request, v domain.Viewer) *http.Request {
	ctx := middleware.SetUserID(req.Context(), v.UserID())
	return req.WithContext(middleware.SetViewer(ctx, v))
}

func memberViewer(userID string) domain.Viewer {
	return policy.NewViewer(userID, false, nil)
}

func staffViewer(userID string) domain.Viewer {
	return policy.NewViewer(userID, true, nil)
}

type fakeAuthService struct {
	signUpIn   domain.SignUpInput
	signUpUser *domain.User
	signUpErr  error
	token      string
	loginUser  *domain.User
	loginErr   error
}

func (f *fakeAuthService) SignUp(_ context.Context, in domain.SignUpInput) (*domain.User, error) {
	f.signUpIn = in
	return f.signUpUser, f.signUpErr
}

func (f *fakeAuthService) Login(_ context.Context, _, _ string) (string, *domain.User, error) {
	return f.token, f.loginUser, f.loginErr
}

type fakeUserService struct {
	user       *domain.User
	err        error
	lastUserID string
	lastUpdate domain.ProfileUpdate
}

func (f *fakeUserService) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.lastUserID = id
	return f.user, f.err
}

func (f *fakeUserService) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	f.lastUserID = id
	f.lastUpdate = upd
	return f.user, f.err
}

type fakeConferenceService struct {
	confs      []*domain.Conference
	total      int
	conf       *domain.Conference
	detail     *domain.ConferenceWithTracks
	track      *domain.Track
	err        error
	lastParams domain.PaginationParams
	lastInput  domain.ConferenceInput
	lastUpdate domain.ConferenceUpdate
	lastSlug   string
	lastTrack  string
}

func (f *fakeConferenceService) List(_ context.Context, params domain.PaginationParams) ([]*domain.Conference, int, error) {
	f.lastParams = params
	return f.confs, f.total, f.err
}

func (f *fakeConferenceService) GetBySlug(_ context.Context, slug string) (*domain.ConferenceWithTracks, error) {
	f.lastSlug = slug
	return f.detail, f.err
}

func (f *fakeConferenceService) Create(_ context.Context, _ domain.Viewer, in domain.ConferenceInput) (*domain.Conference, error) {
	f.lastInput = in
	return f.conf, f.err
}

func (f *fakeConferenceService) Update(_ context.Context, _ domain.Viewer, slug string, upd domain.ConferenceUpdate) (*domain.Conference, error) {
	f.lastSlug, f.lastUpdate = slug, upd
	return f.conf, f.err
}

func (f *fakeConferenceService) AddTrack(_ context.Context, _ domain.Viewer, slug, name string) (*domain.Track, error) {
	f.lastSlug, f.lastTrack = slug, name
	return f.track, f.err
}

func (f *fakeConferenceService) RemoveTrack(_ context.Context, _ domain.Viewer, slug, trackID string) error {
	f.lastSlug, f.lastTrack = slug, trackID
	return f.err
}

type fakeMembershipService struct {
	m          *domain.Membership
	list       []*domain.Membership
	created    bool
	err        error
	lastRoles  [2]string
	lastUpdate domain.MembershipUpdate
	lastSlug   string
	lastMember string
	lastCaller string
}

func (f *fakeMembershipService) Register(_ context.Context, userID, slug, role1, role2 string) (*domain.Membership, bool, error) {
	f.lastCaller, f.lastSlug, f.lastRoles = userID, slug, [2]string{role1, role2}
	return f.m, f.created, f.err
}

func (f *fakeMembershipService) GetMine(_ context.Context, userID, slug string) (*domain.Membership, error) {
	f.lastCaller, f.lastSlug = userID, slug
	return f.m, f.err
}

func (f *fakeMembershipService) ListMine(_ context.Context, userID string) ([]*domain.Membership, error) {
	f.lastCaller = userID
	return f.list, f.err
}

func (f *fakeMembershipService) Withdraw(_ context.Context, userID, slug string) (*domain.Membership, error) {
	f.lastCaller, f.lastSlug = userID, slug
	return f.m, f.err
}

func (f *fakeMembershipService) ListForConference(_ context.Context, _ domain.Viewer, slug string) ([]*domain.Membership, error) {
	f.lastSlug = slug
	return f.list, f.err
}

func (f *fakeMembershipService) UpdateByChair(_ context.Context, _ domain.Viewer, slug, membershipID string, upd domain.MembershipUpdate) (*domain.Membership, error) {
	f.lastSlug, f.lastMember, f.lastUpdate = slug, membershipID, upd
	return f.m, f.err
}

type fakeSubmissionService struct {
	sub        *domain.Submission
	detail     *domain.SubmissionDetail
	list       []*domain.Submission
	file       string
	err        error
	lastSlug   string
	lastID     string
	lastInput  domain.SubmissionInput
	lastUpdate domain.SubmissionUpdate
	fileBody   string
}

func (f *fakeSubmissionService) Create(_ context.Context, _ domain.Viewer, slug string, in domain.SubmissionInput) (*domain.Submission, error) {
	f.lastSlug, f.lastInput = slug, in
	if in.File != nil {
		b, _ := io.ReadAll(in.File.Content)
		f.fileBody = string(b)
	}
	return f.sub, f.err
}

func (f *fakeSubmissionService) ListMine(_ context.Context, _ domain.Viewer) ([]*domain.Submission, error) {
	return f.list, f.err
}

func (f *fakeSubmissionService) Get(_ context.Context, _ domain.Viewer, id string) (*domain.SubmissionDetail, error) {
	f.lastID = id
	return f.detail, f.err
}

func (f *fakeSubmissionService) Update(_ context.Context, _ domain.Viewer, id string, upd domain.SubmissionUpdate) (*domain.Submission, error) {
	f.lastID, f.lastUpdate = id, upd
	return f.sub, f.err
}

func (f *fakeSubmissionService) Delete(_ context.Context, _ domain.Viewer, id string) error {
	f.lastID = id
	return f.err
}

func (f *fakeSubmissionService) OpenFile(_ context.Context, _ domain.Viewer, id string) (io.ReadCloser, *domain.Submission, error) {
	f.lastID = id
	if f.err != nil {
		return nil, nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.file)), f.sub, nil
}

type fakeReviewService struct {
	memberships  []*domain.Membership
	assignment   *domain.ReviewerAssignment
	assignments  []*domain.ReviewerAssignment
	replace      *domain.ReplaceResult
	chair        *domain.ChairDashboard
	reviewer     *domain.ReviewerDashboard
	detail       *domain.AssignmentDetail
	review       *domain.Review
	received     *domain.ReceivedReviews
	err          error
	lastSub      string
	lastMember   string
	lastConfirm  bool
	lastTargets  []string
	lastInput    domain.ReviewInput
	lastRec      domain.Recommendation
	lastAssignID string
}

func (f *fakeReviewService) EligibleReviewers(_ context.Context, _ domain.Viewer, submissionID string) ([]*domain.Membership, error) {
	f.lastSub = submissionID
	return f.memberships, f.err
}

func (f *fakeReviewService) Assign(_ context.Context, _ domain.Viewer, submissionID, membershipID string) (*domain.ReviewerAssignment, error) {
	f.lastSub, f.lastMember = submissionID, membershipID
	return f.assignment, f.err
}

func (f *fakeReviewService) Unassign(_ context.Context, _ domain.Viewer, submissionID, membershipID string, confirm bool) error {
	f.lastSub, f.lastMember, f.lastConfirm = submissionID, membershipID, confirm
	return f.err
}

func (f *fakeReviewService) ReplaceReviewers(_ context.Context, _ domain.Viewer, submissionID string, ids []string) (*domain.ReplaceResult, error) {
	f.lastSub, f.lastTargets = submissionID, ids
	return f.replace, f.err
}

func (f *fakeReviewService) ListAssignments(_ context.Context, _ domain.Viewer, submissionID string) ([]*domain.ReviewerAssignment, error) {
	f.lastSub = submissionID
	return f.assignments, f.err
}

func (f *fakeReviewService) ChairDashboard(_ context.Context, _ domain.Viewer, _ string) (*domain.ChairDashboard, error) {
	return f.chair, f.err
}

func (f *fakeReviewService) ReviewerDashboard(_ context.Context, _ domain.Viewer) (*domain.ReviewerDashboard, error) {
	return f.reviewer, f.err
}

func (f *fakeReviewService) GetAssignment(_ context.Context, _ domain.Viewer, id string) (*domain.AssignmentDetail, error) {
	f.lastAssignID = id
	return f.detail, f.err
}

func (f *fakeReviewService) SaveReview(_ context.Context, _ domain.Viewer, id string, in domain.ReviewInput) (*domain.Review, error) {
	f.lastAssignID, f.lastInput = id, in
	return f.review, f.err
}

func (f *fakeReviewService) AmendRecommendation(_ context.Context, _ domain.Viewer, id string, rec domain.Recommendation) (*domain.Review, error) {
	f.lastAssignID, f.lastRec = id, rec
	return f.review, f.err
}

func (f *fakeReviewService) ReceivedReviews(_ context.Context, _ domain.Viewer) (*domain.ReceivedReviews, error) {
	return f.received, f.err
}

func (f *fakeReviewService) RecomputeStatus(_ context.Context, _ string) (domain.SubmissionStatus, bool, error) {
	return domain.SubmissionPending, false, nil
}

type fakePaymentService struct {
	checkout    *domain.CheckoutResult
	payment     *domain.Payment
	err         error
	lastUser    string
	lastSlug    string
	lastOrder   string
	lastHeaders http.Header
	lastBody    []byte
}

func (f *fakePaymentService) Checkout(_ context.Context, userID, slug string) (*domain.CheckoutResult, error) {
	f.lastUser, f.lastSlug = userID, slug
	return f.checkout, f.err
}

func (f *fakePaymentService) CompleteReturn(_ context.Context, userID, orderID string) (*domain.Payment, error) {
	f.lastUser, f.lastOrder = userID, orderID
	return f.payment, f.err
}

func (f *fakePaymentService) Cancel(_ context.Context, userID, orderID string) (*domain.Payment, error) {
	f.lastUser, f.lastOrder = userID, orderID
	return f.payment, f.err
}

func (f *fakePaymentService) Status(_ context.Context, userID, slug string) (*domain.Payment, error) {
	f.lastUser, f.lastSlug = userID, slug
	return f.payment, f.err
}

func (f *fakePaymentService) HandleWebhook(_ context.Context, headers http.Header, body []byte) error {
	f.lastHeaders, f.lastBody = headers, body
	return f.err
}
