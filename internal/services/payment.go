package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cmt/internal/domain"
)

type paymentService struct {
	tx             domain.Transactor
	confRepo       domain.ConferenceRepository
	membershipRepo domain.MembershipRepository
	paymentRepo    domain.PaymentRepository
	userRepo       domain.UserRepository
	gateway        domain.PaymentGateway
	pricing        domain.PricingTiers
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewPaymentService creates the payment orchestrator.
func NewPaymentService(
	tx domain.Transactor,
	confRepo domain.ConferenceRepository,
	membershipRepo domain.MembershipRepository,
	paymentRepo domain.PaymentRepository,
	userRepo domain.UserRepository,
	gateway domain.PaymentGateway,
	pricing domain.PricingTiers,
	logger *slog.Logger,
	timeout time.Duration,
) domain.PaymentService {
	return &paymentService{
		tx:             tx,
		confRepo:       confRepo,
		membershipRepo: membershipRepo,
		paymentRepo:    paymentRepo,
		userRepo:       userRepo,
		gateway:        gateway,
		pricing:        pricing,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
}

func (s *paymentService) conference(ctx context.Context, slug string) (*domain.Conference, error) {
	c, err := s.confRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conference: %w", err)
	}
	return c, nil
}

func (s *paymentService) Checkout(ctx context.Context, userID, slug string) (*domain.CheckoutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.conference(ctx, slug)
	if err != nil {
		return nil, err
	}
	m, err := s.membershipRepo.GetByUserAndConference(ctx, userID, c.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMembershipRequired
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if m.IsPaid {
		return nil, domain.ErrAlreadyPaid
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	tier, amount := s.pricing.PriceFor(user.Occupation)
	p := &domain.Payment{
		UserID:       userID,
		ConferenceID: c.ID,
		AmountCents:  amount,
		Currency:     s.pricing.Currency,
		Tier:         tier,
		UpdatedAt:    time.Now(),
	}
	if err := s.paymentRepo.Upsert(ctx, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyPaid) {
			return nil, err
		}
		return nil, fmt.Errorf("save payment: %w", err)
	}

	order, err := s.gateway.CreateOrder(ctx, domain.OrderRequest{
		ReferenceID: p.ID,
		Description: "Registration fee: " + c.Name,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		RequestID:   uuid.NewString(),
	})
	if err != nil {
		s.fail(ctx, p, "create order", err)
		return nil, unavailable(err)
	}
	if err := s.paymentRepo.SetOrder(ctx, p.ID, order.ID); err != nil {
		s.fail(ctx, p, "record order", err)
		if errors.Is(err, domain.ErrDuplicatePayment) {
			return nil, err
		}
		return nil, fmt.Errorf("record order: %w", err)
	}
	orderID := order.ID
	p.ProviderOrderID = &orderID
	s.logger.InfoContext(ctx, "checkout started", "payment_id", p.ID, "order_id", order.ID, "tier", tier, "amount_cents", amount)
	return &domain.CheckoutResult{Payment: p, ApproveURL: order.ApproveURL}, nil
}

func (s *paymentService) fail(ctx context.Context, p *domain.Payment, step string, cause error) {
	s.logger.ErrorContext(ctx, "payment failed", "payment_id", p.ID, "step", step, "err", cause)
	if err := s.paymentRepo.MarkFailed(ctx, p.ID); err != nil {
		s.logger.ErrorContext(ctx, "mark payment failed", "payment_id", p.ID, "err", err)
		return
	}
	p.Status = domain.PaymentFailed
}

func (s *paymentService) ownPayment(ctx context.Context, userID, orderID string) (*domain.Payment, error) {
	p, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// complete marks the payment completed and grants conference access in one transaction.
func (s *paymentService) complete(ctx context.Context, p *domain.Payment, captureID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if captureID != "" && p.ProviderCaptureID == nil {
			if err := s.paymentRepo.SetCapture(ctx, p.ID, captureID); err != nil {
				return fmt.Errorf("record capture: %w", err)
			}
		}
		applied, err := s.paymentRepo.MarkCompleted(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if err := s.membershipRepo.MarkPaid(ctx, p.UserID, p.ConferenceID); err != nil {
			return fmt.Errorf("mark membership paid: %w", err)
		}
		if applied {
			s.logger.InfoContext(ctx, "payment completed", "payment_id", p.ID, "user_id", p.UserID, "conference_id", p.ConferenceID)
		}
		return nil
	})
}

func (s *paymentService) CompleteReturn(ctx context.Context, userID, orderID string) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.ownPayment(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentCompleted {
		return p, nil
	}

	order, err := s.gateway.CaptureOrder(ctx, orderID)
	if errors.Is(err, domain.ErrOrderAlreadyCaptured) {
		order, err = s.gateway.GetOrder(ctx, orderID)
	}
	if err != nil {
		s.fail(ctx, p, "capture order", err)
		return nil, unavailable(err)
	}

	switch {
	case order.CaptureStatus == domain.OrderStatusCompleted || (order.CaptureStatus == "" && order.Status == domain.OrderStatusCompleted):
		if err := s.complete(ctx, p, order.CaptureID); err != nil {
			return nil, err
		}
	case order.CaptureStatus == domain.OrderStatusPending:
		if order.CaptureID != "" && p.ProviderCaptureID == nil {
			if err := s.paymentRepo.SetCapture(ctx, p.ID, order.CaptureID); err != nil {
				return nil, fmt.Errorf("record capture: %w", err)
			}
		}
	default:
		s.fail(ctx, p, "capture order", fmt.Errorf("order %s status %s capture %s", order.ID, order.Status, order.CaptureStatus))
	}
	return s.reload(ctx, orderID)
}

func (s *paymentService) reload(ctx context.Context, orderID string) (*domain.Payment, error) {
	p, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *paymentService) Cancel(ctx context.Context, userID, orderID string) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.ownPayment(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.MarkCancelled(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("cancel payment: %w", err)
	}
	return s.reload(ctx, orderID)
}

func (s *paymentService) Status(ctx context.Context, userID, slug string) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.conference(ctx, slug)
	if err != nil {
		return nil, err
	}
	p, err := s.paymentRepo.GetByUserAndConference(ctx, userID, c.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// paymentForEvent finds the payment a webhook refers to, by capture id first and then by order id.
func (s *paymentService) paymentForEvent(ctx context.Context, ev *domain.WebhookEvent) (*domain.Payment, error) {
	if ev.ResourceID != "" {
		p, err := s.paymentRepo.GetByCaptureID(ctx, ev.ResourceID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.RelatedOrder != "" {
		return s.paymentRepo.GetByOrderID(ctx, ev.RelatedOrder)
	}
	return nil, domain.ErrNotFound
}

func (s *paymentService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ev, err := s.gateway.VerifyWebhook(ctx, headers, body)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookSignature) {
			return err
		}
		return unavailable(err)
	}
	log := s.logger.With("event_id", ev.ID, "event_type", ev.EventType, "resource_id", ev.ResourceID)

	switch ev.EventType {
	case domain.EventCaptureCompleted, domain.EventCaptureDenied:
	default:
		log.InfoContext(ctx, "webhook ignored")
		return nil
	}

	p, err := s.paymentForEvent(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.WarnContext(ctx, "webhook for unknown payment")
			return nil
		}
		return fmt.Errorf("find payment: %w", err)
	}

	if ev.EventType == domain.EventCaptureCompleted {
		return s.complete(ctx, p, ev.ResourceID)
	}
	if p.Status == domain.PaymentCompleted {
		log.WarnContext(ctx, "capture denied after completion ignored", "payment_id", p.ID)
		return nil
	}
	if err := s.paymentRepo.MarkFailed(ctx, p.ID); err != nil {
		return fmt.Errorf("fail payment: %w", err)
	}
	log.InfoContext(ctx, "payment denied", "payment_id", p.ID)
	return nil
}
