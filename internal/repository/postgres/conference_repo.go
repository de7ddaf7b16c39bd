package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cmt/internal/domain"
)

type conferenceRepository struct {
	DB *sql.DB
}

func NewConferenceRepository(db *sql.DB) domain.ConferenceRepository {
	return &conferenceRepository{DB: db}
}

const conferenceColumns = `id, name, slug, slug_auto, description, start_date, end_date, location, created_at, updated_at`

func scanConference(row rowScanner) (*domain.Conference, error) {
	c := &domain.Conference{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.SlugAuto, &c.Description, &c.StartDate, &c.EndDate,
		&c.Location, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conferenceRepository) Create(ctx context.Context, c *domain.Conference) error {
	query := `
		INSERT INTO conferences (name, slug, slug_auto, description, start_date, end_date, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		c.Name, c.Slug, c.SlugAuto, c.Description, c.StartDate, c.EndDate, c.Location, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateConference
	}
	return err
}

func (r *conferenceRepository) get(ctx context.Context, where string, arg any) (*domain.Conference, error) {
	query := `SELECT ` + conferenceColumns + ` FROM conferences WHERE ` + where
	c, err := scanConference(conn(ctx, r.DB).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (r *conferenceRepository) GetByID(ctx context.Context, id string) (*domain.Conference, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *conferenceRepository) GetBySlug(ctx context.Context, slug string) (*domain.Conference, error) {
	return r.get(ctx, "slug = $1", slug)
}

func (r *conferenceRepository) List(ctx context.Context, params domain.PaginationParams) ([]*domain.Conference, int, error) {
	var total int
	if err := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT COUNT(*) FROM conferences`).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `
		SELECT ` + conferenceColumns + `
		FROM conferences
		ORDER BY start_date, name
		LIMIT $1 OFFSET $2
	`
	params = params.Normalize()
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.Conference
	for rows.Next() {
		c, err := scanConference(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *conferenceRepository) Update(ctx context.Context, c *domain.Conference) error {
	query := `
		UPDATE conferences
		SET name = $1, slug = $2, slug_auto = $3, description = $4, start_date = $5, end_date = $6,
			location = $7, updated_at = $8
		WHERE id = $9
	`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query,
		c.Name, c.Slug, c.SlugAuto, c.Description, c.StartDate, c.EndDate, c.Location, c.UpdatedAt, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateConference
		}
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}

func (r *conferenceRepository) CreateTrack(ctx context.Context, t *domain.Track) error {
	query := `INSERT INTO tracks (conference_id, name) VALUES ($1, $2) RETURNING id`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, t.ConferenceID, t.Name).Scan(&t.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateTrack
	}
	return err
}

func (r *conferenceRepository) GetTrackByID(ctx context.Context, id string) (*domain.Track, error) {
	t := &domain.Track{}
	err := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT id, conference_id, name FROM tracks WHERE id = $1`, id).
		Scan(&t.ID, &t.ConferenceID, &t.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *conferenceRepository) ListTracks(ctx context.Context, conferenceID string) ([]*domain.Track, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		`SELECT id, conference_id, name FROM tracks WHERE conference_id = $1 ORDER BY name`, conferenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Track
	for rows.Next() {
		t := &domain.Track{}
		if err := rows.Scan(&t.ID, &t.ConferenceID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *conferenceRepository) DeleteTrack(ctx context.Context, id string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}
