package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cmt/internal/domain"
)

type paymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{DB: db}
}

const paymentColumns = `id, user_id, conference_id, amount_cents, currency, tier, provider_order_id, provider_capture_id, status, created_at, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var orderID, captureID sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.ConferenceID, &p.AmountCents, &p.Currency, &p.Tier,
		&orderID, &captureID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ProviderOrderID = stringPtr(orderID)
	p.ProviderCaptureID = stringPtr(captureID)
	return p, nil
}

func (r *paymentRepository) getOne(ctx context.Context, where string, args ...any) (*domain.Payment, error) {
	p, err := scanPayment(conn(ctx, r.DB).QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *paymentRepository) GetByUserAndConference(ctx context.Context, userID, conferenceID string) (*domain.Payment, error) {
	return r.getOne(ctx, "user_id = $1 AND conference_id = $2", userID, conferenceID)
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.getOne(ctx, "provider_order_id = $1", orderID)
}

func (r *paymentRepository) GetByCaptureID(ctx context.Context, captureID string) (*domain.Payment, error) {
	return r.getOne(ctx, "provider_capture_id = $1", captureID)
}

func (r *paymentRepository) Upsert(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (user_id, conference_id, amount_cents, currency, tier, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)
		ON CONFLICT (user_id, conference_id) DO UPDATE
		SET amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			tier = EXCLUDED.tier,
			status = 'pending',
			provider_order_id = NULL,
			provider_capture_id = NULL,
			updated_at = EXCLUDED.updated_at
		WHERE payments.status <> 'completed'
		RETURNING ` + paymentColumns
	got, err := scanPayment(conn(ctx, r.DB).QueryRowContext(ctx, query,
		p.UserID, p.ConferenceID, p.AmountCents, p.Currency, p.Tier, p.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAlreadyPaid
	}
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

func (r *paymentRepository) setProviderID(ctx context.Context, column, id, value string) error {
	query := `UPDATE payments SET ` + column + ` = $1, updated_at = now() WHERE id = $2`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query, value, id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePayment
		}
		return err
	}
	return expectOneRow(res, domain.ErrNotFound)
}

func (r *paymentRepository) SetOrder(ctx context.Context, id, orderID string) error {
	return r.setProviderID(ctx, "provider_order_id", id, orderID)
}

func (r *paymentRepository) SetCapture(ctx context.Context, id, captureID string) error {
	return r.setProviderID(ctx, "provider_capture_id", id, captureID)
}

func (r *paymentRepository) MarkCompleted(ctx context.Context, id string) (bool, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE payments SET status = 'completed', updated_at = now() WHERE id = $1 AND status <> 'completed'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id string) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE payments SET status = 'failed', updated_at = now() WHERE id = $1 AND status <> 'completed'`, id)
	return err
}

func (r *paymentRepository) MarkCancelled(ctx context.Context, id string) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE payments SET status = 'cancelled', updated_at = now() WHERE id = $1 AND status = 'pending'`, id)
	return err
}
