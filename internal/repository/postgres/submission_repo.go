package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cmt/internal/domain"
)

type submissionRepository struct {
	DB *sql.DB
}

func NewSubmissionRepository(db *sql.DB) domain.SubmissionRepository {
	return &submissionRepository{DB: db}
}

const submissionSelect = `
	SELECT s.id, s.membership_id, s.track_id, m.conference_id, m.user_id, s.paper_title, s.file_key,
		s.co_author1_id, s.co_author2_id, s.co_author3_id, s.status, s.submitted_at, s.updated_at
	FROM submissions s
	INNER JOIN memberships m ON m.id = s.membership_id
`

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	s := &domain.Submission{}
	var co1, co2, co3 sql.NullString
	err := row.Scan(&s.ID, &s.MembershipID, &s.TrackID, &s.ConferenceID, &s.AuthorUserID, &s.PaperTitle, &s.FileKey,
		&co1, &co2, &co3, &s.Status, &s.SubmittedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.CoAuthor1ID = stringPtr(co1)
	s.CoAuthor2ID = stringPtr(co2)
	s.CoAuthor3ID = stringPtr(co3)
	return s, nil
}

func (r *submissionRepository) Create(ctx context.Context, s *domain.Submission) error {
	query := `
		INSERT INTO submissions (membership_id, track_id, paper_title, file_key, co_author1_id, co_author2_id, co_author3_id, status, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		s.MembershipID, s.TrackID, s.PaperTitle, s.FileKey,
		nullString(s.CoAuthor1ID), nullString(s.CoAuthor2ID), nullString(s.CoAuthor3ID),
		s.Status, s.SubmittedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSubmission
	}
	return err
}

func (r *submissionRepository) getOne(ctx context.Context, query string, id string) (*domain.Submission, error) {
	s, err := scanSubmission(conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	return r.getOne(ctx, submissionSelect+`WHERE s.id = $1`, id)
}

func (r *submissionRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Submission, error) {
	return r.getOne(ctx, submissionSelect+`WHERE s.id = $1 FOR UPDATE OF s`, id)
}

func (r *submissionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Submission, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *submissionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Submission, error) {
	return r.list(ctx, submissionSelect+`
		WHERE m.user_id = $1 OR s.co_author1_id = $1 OR s.co_author2_id = $1 OR s.co_author3_id = $1
		ORDER BY s.submitted_at DESC`, userID)
}

func (r *submissionRepository) ListByConference(ctx context.Context, conferenceID string) ([]*domain.Submission, error) {
	return r.list(ctx, submissionSelect+`WHERE m.conference_id = $1 ORDER BY s.submitted_at`, conferenceID)
}

func (r *submissionRepository) ListAllIDs(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, `SELECT id FROM submissions ORDER BY submitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *submissionRepository) Update(ctx context.Context, s *domain.Submission) error {
	query := `
		UPDATE submissions
		SET track_id = $1, paper_title = $2, file_key = $3, co_author1_id = $4, co_author2_id = $5,
			co_author3_id = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query,
		s.TrackID, s.PaperTitle, s.FileKey,
		nullString(s.CoAuthor1ID), nullString(s.CoAuthor2ID), nullString(s.CoAuthor3ID),
		s.UpdatedAt, s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSubmission
		}
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE submissions SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}

func (r *submissionRepository) Delete(ctx context.Context, id string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}
