package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cmt/internal/domain"

	"github.com/lib/pq"
)

type membershipRepository struct {
	DB *sql.DB
}

func NewMembershipRepository(db *sql.DB) domain.MembershipRepository {
	return &membershipRepository{DB: db}
}

const membershipColumns = `m.id, m.user_id, m.conference_id, m.roles, m.is_paid, m.status, m.created_at`

func scanMembership(row rowScanner, extra ...any) (*domain.Membership, error) {
	m := &domain.Membership{}
	var roles []string
	dest := append([]any{&m.ID, &m.UserID, &m.ConferenceID, pq.Array(&roles), &m.IsPaid, &m.Status, &m.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	set, err := domain.ParseRoleNames(roles)
	if err != nil {
		return nil, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	m.Roles = set
	return m, nil
}

func (r *membershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO memberships (user_id, conference_id, roles, is_paid, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		m.UserID, m.ConferenceID, pq.Array(m.Roles.Names()), m.IsPaid, m.Status, m.CreatedAt,
	).Scan(&m.ID)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyMember
	}
	return err
}

func (r *membershipRepository) getOne(ctx context.Context, where string, args ...any) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships m WHERE ` + where
	m, err := scanMembership(conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

func (r *membershipRepository) GetByID(ctx context.Context, id string) (*domain.Membership, error) {
	return r.getOne(ctx, "m.id = $1", id)
}

func (r *membershipRepository) GetByUserAndConference(ctx context.Context, userID, conferenceID string) (*domain.Membership, error) {
	return r.getOne(ctx, "m.user_id = $1 AND m.conference_id = $2", userID, conferenceID)
}

func (r *membershipRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships m WHERE m.user_id = $1 ORDER BY m.created_at`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *membershipRepository) listWithUsers(ctx context.Context, where string, args ...any) ([]*domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `, u.email, u.first_name, u.last_name, u.organization
		FROM memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE ` + where + `
		ORDER BY u.last_name, u.first_name
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		u := &domain.User{}
		m, err := scanMembership(rows, &u.Email, &u.FirstName, &u.LastName, &u.Organization)
		if err != nil {
			return nil, err
		}
		u.ID = m.UserID
		m.User = u
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *membershipRepository) ListByConferenceID(ctx context.Context, conferenceID string) ([]*domain.Membership, error) {
	return r.listWithUsers(ctx, "m.conference_id = $1", conferenceID)
}

func (r *membershipRepository) ListByRole(ctx context.Context, conferenceID string, role domain.MemberRole) ([]*domain.Membership, error) {
	return r.listWithUsers(ctx, "m.conference_id = $1 AND $2 = ANY(m.roles)", conferenceID, role.String())
}

// Update writes roles and status. is_paid is owned by MarkPaid and is read back into m.
func (r *membershipRepository) Update(ctx context.Context, m *domain.Membership) error {
	query := `UPDATE memberships SET roles = $1, status = $2 WHERE id = $3 RETURNING is_paid`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, pq.Array(m.Roles.Names()), m.Status, m.ID).Scan(&m.IsPaid)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (r *membershipRepository) MarkPaid(ctx context.Context, userID, conferenceID string) error {
	query := `UPDATE memberships SET is_paid = TRUE WHERE user_id = $1 AND conference_id = $2`
	_, err := conn(ctx, r.DB).ExecContext(ctx, query, userID, conferenceID)
	return err
}
