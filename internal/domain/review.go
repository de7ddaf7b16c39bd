package domain

import (
	"context"
	"time"
)

// Recommendation is a reviewer's verdict on a paper.
type Recommendation string

const (
	RecommendationPending Recommendation = "PENDING"
	RecommendationAccept  Recommendation = "ACCEPT"
	RecommendationReject  Recommendation = "REJECT"
	RecommendationRevise  Recommendation = "REVISE"
)

// Valid reports whether r is a known recommendation.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendationPending, RecommendationAccept, RecommendationReject, RecommendationRevise:
		return true
	}
	return false
}

// Decisive reports whether r can be submitted.
func (r Recommendation) Decisive() bool {
	return r == RecommendationAccept || r == RecommendationReject || r == RecommendationRevise
}

// ReviewerAssignment records that a reviewer membership must review a submission.
// swagger:model ReviewerAssignment
type ReviewerAssignment struct {
	ID                     string    `json:"id"`
	SubmissionID           string    `json:"submission_id"`
	ReviewerMembershipID   string    `json:"reviewer_membership_id"`
	AssignedByMembershipID *string   `json:"assigned_by_membership_id,omitempty"`
	AssignedAt             time.Time `json:"assigned_at"`

	// Reviewer is populated (with its User) by listing queries.
	Reviewer *Membership `json:"reviewer,omitempty"`
	// Review is the reviewer's draft or submitted review, nil until first saved.
	Review *Review `json:"review,omitempty"`
}

// Submitted reports whether the assigned reviewer has submitted a review.
func (a *ReviewerAssignment) Submitted() bool {
	return a.Review != nil && a.Review.IsSubmitted
}

// Review is the content a reviewer writes for one assignment.
// swagger:model Review
type Review struct {
	ID                   string         `json:"id"`
	AssignmentID         string         `json:"assignment_id"`
	SubmissionID         string         `json:"submission_id"`
	ReviewerMembershipID string         `json:"reviewer_membership_id"`
	Comment              string         `json:"comment"`
	Recommendation       Recommendation `json:"recommendation"`
	IsSubmitted          bool           `json:"is_submitted"`
	CreatedAt            time.Time      `json:"created_at"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty"`
}

// ReviewRepository defines storage operations for reviewer assignments and reviews.
type ReviewRepository interface {
	// CreateAssignment inserts an assignment. Returns ErrDuplicateAssignment for an existing pair.
	CreateAssignment(ctx context.Context, a *ReviewerAssignment) error
	// GetAssignment returns the assignment with its Review when one exists.
	GetAssignment(ctx context.Context, id string) (*ReviewerAssignment, error)
	// ListAssignmentsBySubmission returns assignments with Reviewer (and its User) and Review populated.
	ListAssignmentsBySubmission(ctx context.Context, submissionID string) ([]*ReviewerAssignment, error)
	ListAssignmentsByConference(ctx context.Context, conferenceID string) ([]*ReviewerAssignment, error)
	ListAssignmentsByReviewerUser(ctx context.Context, userID string) ([]*ReviewerAssignment, error)
	// DeleteAssignment removes the assignment and its review.
	DeleteAssignment(ctx context.Context, id string) error

	// SaveReview inserts or updates the review of r.AssignmentID while it is unsubmitted.
	// Returns ErrReviewSubmitted when the stored review is already submitted.
	SaveReview(ctx context.Context, r *Review) error
	// AmendRecommendation changes only the recommendation of a submitted review.
	// Returns ErrReviewNotSubmitted when no submitted review exists for the assignment.
	AmendRecommendation(ctx context.Context, assignmentID string, rec Recommendation) error
	ListReviewsBySubmission(ctx context.Context, submissionID string) ([]*Review, error)
	// ListSubmittedReviewsForAuthor returns submitted reviews on papers userID authored or co-authored.
	ListSubmittedReviewsForAuthor(ctx context.Context, userID string) ([]*Review, error)
}

// ReplaceResult reports what a bulk reviewer replacement did, as membership ids.
type ReplaceResult struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Kept     []string `json:"kept"`
	Retained []string `json:"retained"`
}

// TrackSubmissions groups submissions of one track for the chair dashboard.
type TrackSubmissions struct {
	Track       *Track               `json:"track"`
	Submissions []*SubmissionSummary `json:"submissions"`
}

// SubmissionSummary is a submission with its review progress.
type SubmissionSummary struct {
	Submission       *Submission `json:"submission"`
	AssignedCount    int         `json:"assigned_count"`
	SubmittedReviews int         `json:"submitted_reviews"`
}

// ChairDashboard is the chair view of a conference's review progress.
type ChairDashboard struct {
	Conference *Conference          `json:"conference"`
	Tracks     []*TrackSubmissions  `json:"tracks"`
	Unassigned []*SubmissionSummary `json:"unassigned"`
}

// AssignedPaper is one row of the reviewer dashboard.
type AssignedPaper struct {
	Assignment *ReviewerAssignment `json:"assignment"`
	Submission *Submission         `json:"submission"`
}

// ReviewerDashboard is the reviewer view of their assignments.
type ReviewerDashboard struct {
	Pending        []*AssignedPaper `json:"pending"`
	Submitted      []*AssignedPaper `json:"submitted"`
	Total          int              `json:"total"`
	CompletionRate int              `json:"completion_rate"`
}

// ReceivedReview is a submitted review shown to an author without reviewer identity.
type ReceivedReview struct {
	SubmissionID   string         `json:"submission_id"`
	PaperTitle     string         `json:"paper_title"`
	Comment        string         `json:"comment"`
	Recommendation Recommendation `json:"recommendation"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
}

// ReceivedReviews is the author view of reviews on their papers.
type ReceivedReviews struct {
	Reviews  []*ReceivedReview `json:"reviews"`
	Accepted int               `json:"accepted"`
	Rejected int               `json:"rejected"`
	Revision int               `json:"revision"`
}

// AssignmentDetail is what the owning reviewer sees for one assignment.
type AssignmentDetail struct {
	Assignment *ReviewerAssignment `json:"assignment"`
	Submission *Submission         `json:"submission"`
	Track      *Track              `json:"track"`
}

// ReviewInput is a reviewer's save of their review.
type ReviewInput struct {
	Comment        string
	Recommendation Recommendation
	Submit         bool
}

// ReviewService defines reviewer assignment, reviewing and status aggregation.
type ReviewService interface {
	EligibleReviewers(ctx context.Context, viewer Viewer, submissionID string) ([]*Membership, error)
	Assign(ctx context.Context, viewer Viewer, submissionID, reviewerMembershipID string) (*ReviewerAssignment, error)
	Unassign(ctx context.Context, viewer Viewer, submissionID, reviewerMembershipID string, confirm bool) error
	ReplaceReviewers(ctx context.Context, viewer Viewer, submissionID string, membershipIDs []string) (*ReplaceResult, error)
	ListAssignments(ctx context.Context, viewer Viewer, submissionID string) ([]*ReviewerAssignment, error)
	ChairDashboard(ctx context.Context, viewer Viewer, slug string) (*ChairDashboard, error)

	ReviewerDashboard(ctx context.Context, viewer Viewer) (*ReviewerDashboard, error)
	GetAssignment(ctx context.Context, viewer Viewer, assignmentID string) (*AssignmentDetail, error)
	SaveReview(ctx context.Context, viewer Viewer, assignmentID string, in ReviewInput) (*Review, error)
	AmendRecommendation(ctx context.Context, viewer Viewer, assignmentID string, rec Recommendation) (*Review, error)
	ReceivedReviews(ctx context.Context, viewer Viewer) (*ReceivedReviews, error)

	// RecomputeStatus rederives the submission status from its submitted reviews.
	RecomputeStatus(ctx context.Context, submissionID string) (status SubmissionStatus, changed bool, err error)
}
