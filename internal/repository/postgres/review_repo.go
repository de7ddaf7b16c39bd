package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cmt/internal/domain"

	"github.com/lib/pq"
)

type reviewRepository struct {
	DB *sql.DB
}

func NewReviewRepository(db *sql.DB) domain.ReviewRepository {
	return &reviewRepository{DB: db}
}

const assignmentSelect = `
	SELECT a.id, a.submission_id, a.reviewer_membership_id, a.assigned_by_membership_id, a.assigned_at,
		m.user_id, m.conference_id, m.roles, u.email, u.first_name, u.last_name,
		rv.id, rv.comment, rv.recommendation, rv.is_submitted, rv.created_at, rv.reviewed_at
	FROM reviewer_assignments a
	INNER JOIN memberships m ON m.id = a.reviewer_membership_id
	INNER JOIN users u ON u.id = m.user_id
	LEFT JOIN reviews rv ON rv.assignment_id = a.id
`

func scanAssignment(row rowScanner) (*domain.ReviewerAssignment, error) {
	a := &domain.ReviewerAssignment{}
	m := &domain.Membership{}
	u := &domain.User{}
	var assignedBy sql.NullString
	var roles []string
	var reviewID, comment, rec sql.NullString
	var submitted sql.NullBool
	var createdAt, reviewedAt sql.NullTime
	err := row.Scan(&a.ID, &a.SubmissionID, &a.ReviewerMembershipID, &assignedBy, &a.AssignedAt,
		&m.UserID, &m.ConferenceID, pq.Array(&roles), &u.Email, &u.FirstName, &u.LastName,
		&reviewID, &comment, &rec, &submitted, &createdAt, &reviewedAt)
	if err != nil {
		return nil, err
	}
	set, err := domain.ParseRoleNames(roles)
	if err != nil {
		return nil, fmt.Errorf("membership %s: %w", a.ReviewerMembershipID, err)
	}
	a.AssignedByMembershipID = stringPtr(assignedBy)
	m.ID = a.ReviewerMembershipID
	m.Roles = set
	u.ID = m.UserID
	m.User = u
	a.Reviewer = m
	if reviewID.Valid {
		rv := &domain.Review{
			ID:                   reviewID.String,
			AssignmentID:         a.ID,
			SubmissionID:         a.SubmissionID,
			ReviewerMembershipID: a.ReviewerMembershipID,
			Comment:              comment.String,
			Recommendation:       domain.Recommendation(rec.String),
			IsSubmitted:          submitted.Bool,
			CreatedAt:            createdAt.Time,
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			rv.ReviewedAt = &t
		}
		a.Review = rv
	}
	return a, nil
}

func (r *reviewRepository) CreateAssignment(ctx context.Context, a *domain.ReviewerAssignment) error {
	query := `
		INSERT INTO reviewer_assignments (submission_id, reviewer_membership_id, assigned_by_membership_id, assigned_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		a.SubmissionID, a.ReviewerMembershipID, nullString(a.AssignedByMembershipID), a.AssignedAt,
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateAssignment
	}
	return err
}

func (r *reviewRepository) GetAssignment(ctx context.Context, id string) (*domain.ReviewerAssignment, error) {
	a, err := scanAssignment(conn(ctx, r.DB).QueryRowContext(ctx, assignmentSelect+`WHERE a.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *reviewRepository) listAssignments(ctx context.Context, query string, arg any) ([]*domain.ReviewerAssignment, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReviewerAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *reviewRepository) ListAssignmentsBySubmission(ctx context.Context, submissionID string) ([]*domain.ReviewerAssignment, error) {
	return r.listAssignments(ctx, assignmentSelect+`WHERE a.submission_id = $1 ORDER BY a.assigned_at`, submissionID)
}

func (r *reviewRepository) ListAssignmentsByConference(ctx context.Context, conferenceID string) ([]*domain.ReviewerAssignment, error) {
	return r.listAssignments(ctx, assignmentSelect+`WHERE m.conference_id = $1 ORDER BY a.assigned_at`, conferenceID)
}

func (r *reviewRepository) ListAssignmentsByReviewerUser(ctx context.Context, userID string) ([]*domain.ReviewerAssignment, error) {
	return r.listAssignments(ctx, assignmentSelect+`WHERE m.user_id = $1 ORDER BY a.assigned_at DESC`, userID)
}

func (r *reviewRepository) DeleteAssignment(ctx context.Context, id string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM reviewer_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}

func (r *reviewRepository) SaveReview(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (assignment_id, submission_id, reviewer_membership_id, comment, recommendation, is_submitted, created_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (assignment_id) DO UPDATE
		SET comment = EXCLUDED.comment,
			recommendation = EXCLUDED.recommendation,
			is_submitted = EXCLUDED.is_submitted,
			reviewed_at = EXCLUDED.reviewed_at
		WHERE reviews.is_submitted = false
		RETURNING id, created_at
	`
	var reviewedAt sql.NullTime
	if rv.ReviewedAt != nil {
		reviewedAt = sql.NullTime{Time: *rv.ReviewedAt, Valid: true}
	}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		rv.AssignmentID, rv.SubmissionID, rv.ReviewerMembershipID, rv.Comment, rv.Recommendation,
		rv.IsSubmitted, rv.CreatedAt, reviewedAt,
	).Scan(&rv.ID, &rv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// conflict row exists but the guard skipped it
		return domain.ErrReviewSubmitted
	}
	return err
}

func (r *reviewRepository) AmendRecommendation(ctx context.Context, assignmentID string, rec domain.Recommendation) error {
	query := `UPDATE reviews SET recommendation = $2 WHERE assignment_id = $1 AND is_submitted = true`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query, assignmentID, rec)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrReviewNotSubmitted
	}
	return nil
}

const reviewColumns = `rv.id, rv.assignment_id, rv.submission_id, rv.reviewer_membership_id, rv.comment, rv.recommendation, rv.is_submitted, rv.created_at, rv.reviewed_at`

func (r *reviewRepository) listReviews(ctx context.Context, query string, arg any) ([]*domain.Review, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Review
	for rows.Next() {
		rv := &domain.Review{}
		var reviewedAt sql.NullTime
		if err := rows.Scan(&rv.ID, &rv.AssignmentID, &rv.SubmissionID, &rv.ReviewerMembershipID, &rv.Comment,
			&rv.Recommendation, &rv.IsSubmitted, &rv.CreatedAt, &reviewedAt); err != nil {
			return nil, err
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			rv.ReviewedAt = &t
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *reviewRepository) ListReviewsBySubmission(ctx context.Context, submissionID string) ([]*domain.Review, error) {
	return r.listReviews(ctx, `SELECT `+reviewColumns+` FROM reviews rv WHERE rv.submission_id = $1`, submissionID)
}

func (r *reviewRepository) ListSubmittedReviewsForAuthor(ctx context.Context, userID string) ([]*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews rv
		INNER JOIN submissions s ON s.id = rv.submission_id
		INNER JOIN memberships m ON m.id = s.membership_id
		WHERE rv.is_submitted
			AND (m.user_id = $1 OR s.co_author1_id = $1 OR s.co_author2_id = $1 OR s.co_author3_id = $1)
		ORDER BY rv.reviewed_at DESC
	`
	return r.listReviews(ctx, query, userID)
}
