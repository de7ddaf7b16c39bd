package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"cmt/internal/domain"
	"cmt/internal/policy"
)

type reviewService struct {
	tx             domain.Transactor
	confRepo       domain.ConferenceRepository
	membershipRepo domain.MembershipRepository
	submissionRepo domain.SubmissionRepository
	reviewRepo     domain.ReviewRepository
	userRepo       domain.UserRepository
	emailService   domain.EmailService
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewReviewService creates a ReviewService.
func NewReviewService(
	tx domain.Transactor,
	confRepo domain.ConferenceRepository,
	membershipRepo domain.MembershipRepository,
	submissionRepo domain.SubmissionRepository,
	reviewRepo domain.ReviewRepository,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	logger *slog.Logger,
	timeout time.Duration,
) domain.ReviewService {
	return &reviewService{
		tx:             tx,
		confRepo:       confRepo,
		membershipRepo: membershipRepo,
		submissionRepo: submissionRepo,
		reviewRepo:     reviewRepo,
		userRepo:       userRepo,
		emailService:   emailService,
		logger:         logger,
		contextTimeout: timeout,
	}
}

// statusChange is a committed change of a submission's aggregate status.
type statusChange struct {
	sub      *domain.Submission
	from, to domain.SubmissionStatus
}

func (s *reviewService) getSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *reviewService) chairSubmission(ctx context.Context, viewer domain.Viewer, submissionID string) (*domain.Submission, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsChair(sub.ConferenceID) {
		return nil, domain.ErrForbidden
	}
	return sub, nil
}

func (s *reviewService) eligible(ctx context.Context, viewer domain.Viewer, sub *domain.Submission) ([]*domain.Membership, error) {
	candidates, err := s.membershipRepo.ListByRole(ctx, sub.ConferenceID, domain.MemberRoleReviewer)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	return policy.EligibleReviewers(sub, candidates, viewer.UserID()), nil
}

func assignedBy(viewer domain.Viewer, conferenceID string) *string {
	if m, ok := viewer.Membership(conferenceID); ok {
		id := m.ID
		return &id
	}
	return nil
}

// recompute rederives and persists the status. It must run inside a transaction.
func (s *reviewService) recompute(ctx context.Context, submissionID string) (*statusChange, error) {
	sub, err := s.submissionRepo.GetByIDForUpdate(ctx, submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	reviews, err := s.reviewRepo.ListReviewsBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	status := policy.AggregateStatus(reviews)
	change := &statusChange{sub: sub, from: sub.Status, to: status}
	if status == sub.Status {
		return change, nil
	}
	if err := s.submissionRepo.UpdateStatus(ctx, submissionID, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	sub.Status = status
	return change, nil
}

func (c *statusChange) changed() bool { return c != nil && c.from != c.to }

func (s *reviewService) RecomputeStatus(ctx context.Context, submissionID string) (domain.SubmissionStatus, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var change *statusChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		change, err = s.recompute(ctx, submissionID)
		return err
	})
	if err != nil {
		return "", false, err
	}
	s.notifyStatusChange(ctx, change)
	return change.to, change.changed(), nil
}

func (s *reviewService) EligibleReviewers(ctx context.Context, viewer domain.Viewer, submissionID string) ([]*domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	sub, err := s.chairSubmission(ctx, viewer, submissionID)
	if err != nil {
		return nil, err
	}
	return s.eligible(ctx, viewer, sub)
}

func (s *reviewService) Assign(ctx context.Context, viewer domain.Viewer, submissionID, reviewerMembershipID string) (*domain.ReviewerAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	sub, err := s.chairSubmission(ctx, viewer, submissionID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.eligible(ctx, viewer, sub)
	if err != nil {
		return nil, err
	}
	var reviewer *domain.Membership
	for _, m := range eligible {
		if m.ID == reviewerMembershipID {
			reviewer = m
			break
		}
	}
	if reviewer == nil {
		return nil, domain.ErrNotEligible
	}
	a := &domain.ReviewerAssignment{
		SubmissionID:           sub.ID,
		ReviewerMembershipID:   reviewer.ID,
		AssignedByMembershipID: assignedBy(viewer, sub.ConferenceID),
		AssignedAt:             time.Now(),
		Reviewer:               reviewer,
	}
	if err := s.reviewRepo.CreateAssignment(ctx, a); err != nil {
		if errors.Is(err, domain.ErrDuplicateAssignment) {
			return nil, err
		}
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	s.notifyReviewer(ctx, sub, a)
	return a, nil
}

func (s *reviewService) Unassign(ctx context.Context, viewer domain.Viewer, submissionID, reviewerMembershipID string, confirm bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	sub, err := s.chairSubmission(ctx, viewer, submissionID)
	if err != nil {
		return err
	}
	var change *statusChange
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.submissionRepo.GetByIDForUpdate(ctx, sub.ID); err != nil {
			return fmt.Errorf("lock submission: %w", err)
		}
		current, err := s.reviewRepo.ListAssignmentsBySubmission(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		var target *domain.ReviewerAssignment
		for _, a := range current {
			if a.ReviewerMembershipID == reviewerMembershipID {
				target = a
				break
			}
		}
		if target == nil {
			return domain.ErrNotFound
		}
		if target.Submitted() && !confirm {
			return domain.ErrConfirmationRequired
		}
		if err := s.reviewRepo.DeleteAssignment(ctx, target.ID); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
		if !target.Submitted() {
			return nil
		}
		change, err = s.recompute(ctx, sub.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.notifyStatusChange(ctx, change)
	return nil
}

func (s *reviewService) ReplaceReviewers(ctx context.Context, viewer domain.Viewer, submissionID string, membershipIDs []string) (*domain.ReplaceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	sub, err := s.chairSubmission(ctx, viewer, submissionID)
	if err != nil {
		return nil, err
	}
	target := make(map[string]struct{}, len(membershipIDs))
	var order []string
	for _, id := range membershipIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := target[id]; !dup {
			target[id] = struct{}{}
			order = append(order, id)
		}
	}
	eligible, err := s.eligible(ctx, viewer, sub)
	if err != nil {
		return nil, err
	}
	eligibleByID := make(map[string]*domain.Membership, len(eligible))
	for _, m := range eligible {
		eligibleByID[m.ID] = m
	}

	res := &domain.ReplaceResult{Added: []string{}, Removed: []string{}, Kept: []string{}, Retained: []string{}}
	var added []*domain.ReviewerAssignment
	var change *statusChange
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.submissionRepo.GetByIDForUpdate(ctx, sub.ID); err != nil {
			return fmt.Errorf("lock submission: %w", err)
		}
		current, err := s.reviewRepo.ListAssignmentsBySubmission(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		existing := make(map[string]struct{}, len(current))
		for _, a := range current {
			existing[a.ReviewerMembershipID] = struct{}{}
		}
		for _, id := range order {
			if _, ok := existing[id]; ok {
				continue
			}
			if _, ok := eligibleByID[id]; !ok {
				return domain.ErrNotEligible
			}
		}

		for _, a := range current {
			switch _, inTarget := target[a.ReviewerMembershipID]; {
			case inTarget:
				res.Kept = append(res.Kept, a.ReviewerMembershipID)
			case a.Submitted():
				res.Retained = append(res.Retained, a.ReviewerMembershipID)
			default:
				if err := s.reviewRepo.DeleteAssignment(ctx, a.ID); err != nil {
					return fmt.Errorf("delete assignment: %w", err)
				}
				res.Removed = append(res.Removed, a.ReviewerMembershipID)
			}
		}
		now := time.Now()
		for _, id := range order {
			if _, ok := existing[id]; ok {
				continue
			}
			a := &domain.ReviewerAssignment{
				SubmissionID:           sub.ID,
				ReviewerMembershipID:   id,
				AssignedByMembershipID: assignedBy(viewer, sub.ConferenceID),
				AssignedAt:             now,
				Reviewer:               eligibleByID[id],
			}
			if err := s.reviewRepo.CreateAssignment(ctx, a); err != nil {
				return fmt.Errorf("create assignment: %w", err)
			}
			res.Added = append(res.Added, id)
			added = append(added, a)
		}
		change, err = s.recompute(ctx, sub.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, a := range added {
		s.notifyReviewer(ctx, sub, a)
	}
	s.notifyStatusChange(ctx, change)
	return res, nil
}

func (s *reviewService) ListAssignments(ctx context.Context, viewer domain.Viewer, submissionID string) ([]*domain.ReviewerAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	sub, err := s.chairSubmission(ctx, viewer, submissionID)
	if err != nil {
		return nil, err
	}
	as, err := s.reviewRepo.ListAssignmentsBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if as == nil {
		as = []*domain.ReviewerAssignment{}
	}
	return as, nil
}

func (s *reviewService) ChairDashboard(ctx context.Context, viewer domain.Viewer, slug string) (*domain.ChairDashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.confRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conference: %w", err)
	}
	if !viewer.IsChair(c.ID) {
		return nil, domain.ErrForbidden
	}
	tracks, err := s.confRepo.ListTracks(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	subs, err := s.submissionRepo.ListByConference(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	assignments, err := s.reviewRepo.ListAssignmentsByConference(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	summaries := make(map[string]*domain.SubmissionSummary, len(subs))
	for _, sub := range subs {
		summaries[sub.ID] = &domain.SubmissionSummary{Submission: sub}
	}
	for _, a := range assignments {
		sum, ok := summaries[a.SubmissionID]
		if !ok {
			continue
		}
		sum.AssignedCount++
		if a.Submitted() {
			sum.SubmittedReviews++
		}
	}

	dash := &domain.ChairDashboard{Conference: c, Tracks: []*domain.TrackSubmissions{}, Unassigned: []*domain.SubmissionSummary{}}
	byTrack := make(map[string]*domain.TrackSubmissions, len(tracks))
	for _, t := range tracks {
		ts := &domain.TrackSubmissions{Track: t, Submissions: []*domain.SubmissionSummary{}}
		byTrack[t.ID] = ts
		dash.Tracks = append(dash.Tracks, ts)
	}
	for _, sub := range subs {
		sum := summaries[sub.ID]
		if ts, ok := byTrack[sub.TrackID]; ok {
			ts.Submissions = append(ts.Submissions, sum)
		}
		if sum.AssignedCount == 0 {
			dash.Unassigned = append(dash.Unassigned, sum)
		}
	}
	return dash, nil
}

func (s *reviewService) ReviewerDashboard(ctx context.Context, viewer domain.Viewer) (*domain.ReviewerDashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	assignments, err := s.reviewRepo.ListAssignmentsByReviewerUser(ctx, viewer.UserID())
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	dash := &domain.ReviewerDashboard{Pending: []*domain.AssignedPaper{}, Submitted: []*domain.AssignedPaper{}}
	for _, a := range assignments {
		sub, err := s.getSubmission(ctx, a.SubmissionID)
		if err != nil {
			return nil, err
		}
		paper := &domain.AssignedPaper{Assignment: a, Submission: sub}
		if a.Submitted() {
			dash.Submitted = append(dash.Submitted, paper)
		} else {
			dash.Pending = append(dash.Pending, paper)
		}
	}
	dash.Total = len(assignments)
	if dash.Total > 0 {
		dash.CompletionRate = int(math.Round(float64(len(dash.Submitted)) * 100 / float64(dash.Total)))
	}
	return dash, nil
}

func (s *reviewService) ownAssignment(ctx context.Context, viewer domain.Viewer, assignmentID string) (*domain.ReviewerAssignment, error) {
	a, err := s.reviewRepo.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.Reviewer == nil || a.Reviewer.UserID != viewer.UserID() {
		return nil, domain.ErrForbidden
	}
	return a, nil
}

// lockedAssignment locks the submission row of the assignment and returns the
// assignment as read under that lock.
func (s *reviewService) lockedAssignment(ctx context.Context, viewer domain.Viewer, assignmentID string) (*domain.ReviewerAssignment, error) {
	a, err := s.ownAssignment(ctx, viewer, assignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.submissionRepo.GetByIDForUpdate(ctx, a.SubmissionID); err != nil {
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	return s.ownAssignment(ctx, viewer, assignmentID)
}

func (s *reviewService) GetAssignment(ctx context.Context, viewer domain.Viewer, assignmentID string) (*domain.AssignmentDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	a, err := s.ownAssignment(ctx, viewer, assignmentID)
	if err != nil {
		return nil, err
	}
	sub, err := s.getSubmission(ctx, a.SubmissionID)
	if err != nil {
		return nil, err
	}
	track, err := s.confRepo.GetTrackByID(ctx, sub.TrackID)
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return &domain.AssignmentDetail{Assignment: a, Submission: sub, Track: track}, nil
}

func (s *reviewService) SaveReview(ctx context.Context, viewer domain.Viewer, assignmentID string, in domain.ReviewInput) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if in.Recommendation == "" {
		in.Recommendation = domain.RecommendationPending
	}
	if !in.Recommendation.Valid() {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown recommendation %q", in.Recommendation))
	}
	if in.Submit && !in.Recommendation.Decisive() {
		return nil, domain.NewValidationError("choose accept, reject or revise before submitting")
	}

	var review *domain.Review
	var change *statusChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.lockedAssignment(ctx, viewer, assignmentID)
		if err != nil {
			return err
		}
		review = a.Review
		if review == nil {
			review = &domain.Review{
				AssignmentID:         a.ID,
				SubmissionID:         a.SubmissionID,
				ReviewerMembershipID: a.ReviewerMembershipID,
				CreatedAt:            time.Now(),
			}
		}
		if review.IsSubmitted {
			return domain.ErrReviewSubmitted
		}
		review.Comment = strings.TrimSpace(in.Comment)
		review.Recommendation = in.Recommendation
		if in.Submit {
			now := time.Now()
			review.IsSubmitted = true
			review.ReviewedAt = &now
		}
		if err := s.reviewRepo.SaveReview(ctx, review); err != nil {
			if errors.Is(err, domain.ErrReviewSubmitted) {
				return err
			}
			return fmt.Errorf("save review: %w", err)
		}
		if !in.Submit {
			return nil
		}
		change, err = s.recompute(ctx, a.SubmissionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if in.Submit {
		s.notifyReviewSubmitted(ctx, change.sub, review.Recommendation)
		s.notifyStatusChange(ctx, change)
	}
	return review, nil
}

func (s *reviewService) AmendRecommendation(ctx context.Context, viewer domain.Viewer, assignmentID string, rec domain.Recommendation) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !rec.Decisive() {
		return nil, domain.NewValidationError("recommendation must be accept, reject or revise")
	}
	var review *domain.Review
	var change *statusChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.lockedAssignment(ctx, viewer, assignmentID)
		if err != nil {
			return err
		}
		if !a.Submitted() {
			return domain.ErrReviewNotSubmitted
		}
		if err := s.reviewRepo.AmendRecommendation(ctx, a.ID, rec); err != nil {
			if errors.Is(err, domain.ErrReviewNotSubmitted) {
				return err
			}
			return fmt.Errorf("amend review: %w", err)
		}
		review = a.Review
		review.Recommendation = rec
		change, err = s.recompute(ctx, a.SubmissionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifyStatusChange(ctx, change)
	return review, nil
}

func (s *reviewService) ReceivedReviews(ctx context.Context, viewer domain.Viewer) (*domain.ReceivedReviews, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reviews, err := s.reviewRepo.ListSubmittedReviewsForAuthor(ctx, viewer.UserID())
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	subs, err := s.submissionRepo.ListByUser(ctx, viewer.UserID())
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	titles := make(map[string]string, len(subs))
	for _, sub := range subs {
		titles[sub.ID] = sub.PaperTitle
	}
	out := &domain.ReceivedReviews{Reviews: []*domain.ReceivedReview{}}
	for _, rv := range reviews {
		out.Reviews = append(out.Reviews, &domain.ReceivedReview{
			SubmissionID:   rv.SubmissionID,
			PaperTitle:     titles[rv.SubmissionID],
			Comment:        rv.Comment,
			Recommendation: rv.Recommendation,
			ReviewedAt:     rv.ReviewedAt,
		})
		switch rv.Recommendation {
		case domain.RecommendationAccept:
			out.Accepted++
		case domain.RecommendationReject:
			out.Rejected++
		case domain.RecommendationRevise:
			out.Revision++
		}
	}
	return out, nil
}

// Notifications below are fire and continue: failures are logged, never returned.

func (s *reviewService) authors(ctx context.Context, sub *domain.Submission) ([]*domain.User, string, bool) {
	c, err := s.confRepo.GetByID(ctx, sub.ConferenceID)
	if err != nil {
		s.logger.WarnContext(ctx, "notification skipped", "submission_id", sub.ID, "err", err)
		return nil, "", false
	}
	users, err := s.userRepo.ListByIDs(ctx, sub.AuthorIDs())
	if err != nil {
		s.logger.WarnContext(ctx, "notification skipped", "submission_id", sub.ID, "err", err)
		return nil, "", false
	}
	return users, c.Name, true
}

func (s *reviewService) notifyStatusChange(ctx context.Context, change *statusChange) {
	if s.emailService == nil || !change.changed() {
		return
	}
	users, confName, ok := s.authors(ctx, change.sub)
	if !ok {
		return
	}
	for _, u := range users {
		data := &domain.StatusChangeEmailData{
			Email:          u.Email,
			AuthorName:     u.FullName(),
			PaperTitle:     change.sub.PaperTitle,
			ConferenceName: confName,
			OldStatus:      change.from,
			NewStatus:      change.to,
		}
		if err := s.emailService.SendStatusChange(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "status change email failed", "submission_id", change.sub.ID, "to", u.Email, "err", err)
		}
	}
}

func (s *reviewService) notifyReviewSubmitted(ctx context.Context, sub *domain.Submission, rec domain.Recommendation) {
	if s.emailService == nil || sub == nil {
		return
	}
	users, confName, ok := s.authors(ctx, sub)
	if !ok {
		return
	}
	for _, u := range users {
		data := &domain.ReviewNotificationEmailData{
			Email:          u.Email,
			AuthorName:     u.FullName(),
			PaperTitle:     sub.PaperTitle,
			ConferenceName: confName,
			Recommendation: rec,
		}
		if err := s.emailService.SendReviewNotification(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "review notification failed", "submission_id", sub.ID, "to", u.Email, "err", err)
		}
	}
}

func (s *reviewService) notifyReviewer(ctx context.Context, sub *domain.Submission, a *domain.ReviewerAssignment) {
	if s.emailService == nil || a.Reviewer == nil || a.Reviewer.User == nil {
		return
	}
	c, err := s.confRepo.GetByID(ctx, sub.ConferenceID)
	if err != nil {
		s.logger.WarnContext(ctx, "reviewer assignment email skipped", "assignment_id", a.ID, "err", err)
		return
	}
	u := a.Reviewer.User
	data := &domain.ReviewerAssignmentEmailData{
		Email:          u.Email,
		ReviewerName:   u.FullName(),
		PaperTitle:     sub.PaperTitle,
		ConferenceName: c.Name,
		AssignmentID:   a.ID,
	}
	if err := s.emailService.SendReviewerAssignment(ctx, data); err != nil {
		s.logger.WarnContext(ctx, "reviewer assignment email failed", "assignment_id", a.ID, "err", err)
	}
}
