package domain

import (
	"context"
	"time"
)

// Conference represents a conference that users register for and submit papers to.
// swagger:model Conference
type Conference struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    string    `json:"location"`
	// SlugAuto is true when Slug was derived from Name and should follow renames.
	SlugAuto  bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Track is a topical track within one conference.
// swagger:model Track
type Track struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conference_id"`
	Name         string `json:"name"`
}

// ConferenceWithTracks bundles a conference with its tracks.
type ConferenceWithTracks struct {
	Conference *Conference `json:"conference"`
	Tracks     []*Track    `json:"tracks"`
}

// ConferenceInput is used to create a conference.
type ConferenceInput struct {
	Name        string
	Slug        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Location    string
}

// ConferenceUpdate carries optional changes; nil fields are left unchanged.
type ConferenceUpdate struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Location    *string
}

// ConferenceRepository defines storage operations for conferences and their tracks.
type ConferenceRepository interface {
	Create(ctx context.Context, c *Conference) error
	GetByID(ctx context.Context, id string) (*Conference, error)
	GetBySlug(ctx context.Context, slug string) (*Conference, error)
	List(ctx context.Context, params PaginationParams) ([]*Conference, int, error)
	Update(ctx context.Context, c *Conference) error

	CreateTrack(ctx context.Context, t *Track) error
	GetTrackByID(ctx context.Context, id string) (*Track, error)
	ListTracks(ctx context.Context, conferenceID string) ([]*Track, error)
	DeleteTrack(ctx context.Context, id string) error
}

// ConferenceService defines conference and track management.
type ConferenceService interface {
	List(ctx context.Context, params PaginationParams) ([]*Conference, int, error)
	GetBySlug(ctx context.Context, slug string) (*ConferenceWithTracks, error)
	Create(ctx context.Context, viewer Viewer, in ConferenceInput) (*Conference, error)
	Update(ctx context.Context, viewer Viewer, slug string, upd ConferenceUpdate) (*Conference, error)
	AddTrack(ctx context.Context, viewer Viewer, slug, name string) (*Track, error)
	RemoveTrack(ctx context.Context, viewer Viewer, slug, trackID string) error
}
