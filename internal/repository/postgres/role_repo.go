package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cmt/internal/domain"
)

type roleRepository struct {
	DB *sql.DB
}

func NewRoleRepository(db *sql.DB) domain.RoleRepository {
	return &roleRepository{DB: db}
}

func (r *roleRepository) Grant(ctx context.Context, userID, code string) error {
	var roleID string
	err := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT id FROM roles WHERE code = $1`, code).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("role %q: %w", code, domain.ErrNotFound)
		}
		return err
	}
	query := `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`
	_, err = conn(ctx, r.DB).ExecContext(ctx, query, userID, roleID)
	return err
}

func (r *roleRepository) CodesForUser(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT r.code
		FROM roles r
		INNER JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.code
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
