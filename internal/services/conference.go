package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cmt/internal/domain"
)

type conferenceService struct {
	confRepo       domain.ConferenceRepository
	contextTimeout time.Duration
}

// NewConferenceService creates a ConferenceService.
func NewConferenceService(confRepo domain.ConferenceRepository, timeout time.Duration) domain.ConferenceService {
	return &conferenceService{confRepo: confRepo, contextTimeout: timeout}
}

func (s *conferenceService) List(ctx context.Context, params domain.PaginationParams) ([]*domain.Conference, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	confs, total, err := s.confRepo.List(ctx, params.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list conferences: %w", err)
	}
	if confs == nil {
		confs = []*domain.Conference{}
	}
	return confs, total, nil
}

func (s *conferenceService) getBySlug(ctx context.Context, slug string) (*domain.Conference, error) {
	c, err := s.confRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conference: %w", err)
	}
	return c, nil
}

func (s *conferenceService) GetBySlug(ctx context.Context, slug string) (*domain.ConferenceWithTracks, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	tracks, err := s.confRepo.ListTracks(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	if tracks == nil {
		tracks = []*domain.Track{}
	}
	return &domain.ConferenceWithTracks{Conference: c, Tracks: tracks}, nil
}

func validateConference(c *domain.Conference) error {
	var msgs []string
	if c.Name == "" {
		msgs = append(msgs, "name is required")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		msgs = append(msgs, "start_date and end_date are required")
	} else if c.EndDate.Before(c.StartDate) {
		msgs = append(msgs, "start_date must not be after end_date")
	}
	if len(msgs) > 0 {
		return domain.NewValidationError(msgs...)
	}
	return nil
}

func (s *conferenceService) Create(ctx context.Context, viewer domain.Viewer, in domain.ConferenceInput) (*domain.Conference, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !viewer.IsStaff() {
		return nil, domain.ErrForbidden
	}
	now := time.Now()
	c := &domain.Conference{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Location:    strings.TrimSpace(in.Location),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateConference(c); err != nil {
		return nil, err
	}
	if slug := strings.TrimSpace(in.Slug); slug != "" {
		c.Slug = Slugify(slug)
	} else {
		c.Slug = Slugify(c.Name)
		c.SlugAuto = true
	}
	if err := s.confRepo.Create(ctx, c); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create conference: %w", err)
	}
	return c, nil
}

func (s *conferenceService) Update(ctx context.Context, viewer domain.Viewer, slug string, upd domain.ConferenceUpdate) (*domain.Conference, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !viewer.IsChair(c.ID) {
		return nil, domain.ErrForbidden
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name != c.Name && c.SlugAuto {
			c.Slug = Slugify(name)
		}
		c.Name = name
	}
	if upd.Description != nil {
		c.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Location != nil {
		c.Location = strings.TrimSpace(*upd.Location)
	}
	if upd.StartDate != nil {
		c.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		c.EndDate = *upd.EndDate
	}
	if err := validateConference(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now()
	if err := s.confRepo.Update(ctx, c); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update conference: %w", err)
	}
	return c, nil
}

func (s *conferenceService) AddTrack(ctx context.Context, viewer domain.Viewer, slug, name string) (*domain.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !viewer.IsChair(c.ID) {
		return nil, domain.ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	t := &domain.Track{ConferenceID: c.ID, Name: name}
	if err := s.confRepo.CreateTrack(ctx, t); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create track: %w", err)
	}
	return t, nil
}

func (s *conferenceService) RemoveTrack(ctx context.Context, viewer domain.Viewer, slug, trackID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.getBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !viewer.IsChair(c.ID) {
		return domain.ErrForbidden
	}
	t, err := s.confRepo.GetTrackByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get track: %w", err)
	}
	if t.ConferenceID != c.ID {
		return domain.ErrNotFound
	}
	if err := s.confRepo.DeleteTrack(ctx, t.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete track: %w", err)
	}
	return nil
}
