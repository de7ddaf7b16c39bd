package domain

import "context"

// Viewer is the authorization view of the acting user for one request.
// It is built once per request and answers every permission question without further queries.
type Viewer interface {
	UserID() string
	IsStaff() bool
	// IsChair reports whether the viewer is chair of the conference. Staff are chairs everywhere.
	IsChair(conferenceID string) bool
	// IsReviewer reports whether the viewer is reviewer of the conference. Staff are reviewers everywhere.
	IsReviewer(conferenceID string) bool
	Membership(conferenceID string) (*Membership, bool)
	CanViewSubmission(s *Submission) bool
	CanEditSubmission(s *Submission) bool
	CanDeleteSubmission(s *Submission) bool
}

// Transactor runs fn inside a database transaction carried by ctx.
// Nested calls join the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
