package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cmt/internal/domain"
)

type membershipService struct {
	confRepo       domain.ConferenceRepository
	membershipRepo domain.MembershipRepository
	contextTimeout time.Duration
}

// NewMembershipService creates a MembershipService.
func NewMembershipService(confRepo domain.ConferenceRepository, membershipRepo domain.MembershipRepository, timeout time.Duration) domain.MembershipService {
	return &membershipService{confRepo: confRepo, membershipRepo: membershipRepo, contextTimeout: timeout}
}

func (s *membershipService) conference(ctx context.Context, slug string) (*domain.Conference, error) {
	c, err := s.confRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conference: %w", err)
	}
	return c, nil
}

func (s *membershipService) Register(ctx context.Context, userID, slug, role1, role2 string) (*domain.Membership, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.conference(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	roles, err := domain.RoleSetFromSlots(role1, role2)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.membershipRepo.GetByUserAndConference(ctx, userID, c.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("get membership: %w", err)
	}

	m := &domain.Membership{
		UserID:       userID,
		ConferenceID: c.ID,
		Roles:        roles,
		Status:       domain.MembershipPending,
		CreatedAt:    time.Now(),
	}
	if err := s.membershipRepo.Create(ctx, m); err != nil {
		if errors.Is(err, domain.ErrAlreadyMember) {
			// Lost a race with a concurrent registration.
			existing, getErr := s.membershipRepo.GetByUserAndConference(ctx, userID, c.ID)
			if getErr != nil {
				return nil, false, fmt.Errorf("get membership: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create membership: %w", err)
	}
	return m, true, nil
}

func (s *membershipService) GetMine(ctx context.Context, userID, slug string) (*domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.conference(ctx, slug)
	if err != nil {
		return nil, err
	}
	m, err := s.membershipRepo.GetByUserAndConference(ctx, userID, c.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (s *membershipService) ListMine(ctx context.Context, userID string) ([]*domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ms, err := s.membershipRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if ms == nil {
		ms = []*domain.Membership{}
	}
	return ms, nil
}

func (s *membershipService) Withdraw(ctx context.Context, userID, slug string) (*domain.Membership, error) {
	m, err := s.GetMine(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	m.Status = domain.MembershipWithdrawn
	if err := s.membershipRepo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update membership: %w", err)
	}
	return m, nil
}

func (s *membershipService) ListForConference(ctx context.Context, viewer domain.Viewer, slug string) ([]*domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.conference(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !viewer.IsChair(c.ID) {
		return nil, domain.ErrForbidden
	}
	ms, err := s.membershipRepo.ListByConferenceID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if ms == nil {
		ms = []*domain.Membership{}
	}
	return ms, nil
}

func (s *membershipService) UpdateByChair(ctx context.Context, viewer domain.Viewer, slug, membershipID string, upd domain.MembershipUpdate) (*domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.conference(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !viewer.IsChair(c.ID) {
		return nil, domain.ErrForbidden
	}
	m, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if m.ConferenceID != c.ID {
		return nil, domain.ErrNotFound
	}
	if upd.Roles != nil {
		if upd.Roles.Empty() {
			return nil, domain.NewValidationError("roles must not be empty")
		}
		m.Roles = *upd.Roles
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, domain.NewValidationError(fmt.Sprintf("unknown status %q", *upd.Status))
		}
		m.Status = *upd.Status
	}
	if err := s.membershipRepo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update membership: %w", err)
	}
	return m, nil
}
