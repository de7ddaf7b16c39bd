package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/domain"
)

// CreateConferenceRequest is the request body for POST /conferences.
// Dates use the YYYY-MM-DD format. Slug is derived from name when empty.
type CreateConferenceRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" example:"2025-06-10"`
	EndDate     string `json:"end_date" example:"2025-06-13"`
	Location    string `json:"location"`
}

// Validate implements Validator.
func (c CreateConferenceRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "name is required")
	}
	if _, err := time.Parse(time.DateOnly, c.StartDate); err != nil {
		errs = append(errs, "start_date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(time.DateOnly, c.EndDate); err != nil {
		errs = append(errs, "end_date must be YYYY-MM-DD")
	}
	return errs
}

// UpdateConferenceRequest is the request body for PATCH /conferences/{slug}. All fields are optional.
type UpdateConferenceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date" example:"2025-06-10"`
	EndDate     *string `json:"end_date" example:"2025-06-13"`
	Location    *string `json:"location"`
}

// Validate implements Validator.
func (u UpdateConferenceRequest) Validate() []string {
	var errs []string
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		errs = append(errs, "name cannot be empty")
	}
	for field, v := range map[string]*string{"start_date": u.StartDate, "end_date": u.EndDate} {
		if v == nil {
			continue
		}
		if _, err := time.Parse(time.DateOnly, *v); err != nil {
			errs = append(errs, field+" must be YYYY-MM-DD")
		}
	}
	return errs
}

// CreateTrackRequest is the request body for POST /conferences/{slug}/tracks.
type CreateTrackRequest struct {
	Name string `json:"name"`
}

// Validate implements Validator.
func (t CreateTrackRequest) Validate() []string {
	if strings.TrimSpace(t.Name) == "" {
		return []string{"name is required"}
	}
	return nil
}

// ListConferencesResponse is the data of GET /conferences.
type ListConferencesResponse struct {
	Conferences []*domain.Conference   `json:"conferences"`
	Pagination  helpers.PaginationMeta `json:"pagination"`
}

// ConferenceController handles conferences and their tracks.
type ConferenceController struct {
	Logger  *slog.Logger
	Service domain.ConferenceService
}

func NewConferenceController(logger *slog.Logger, svc domain.ConferenceService) *ConferenceController {
	return &ConferenceController{Logger: logger, Service: svc}
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func parseOptionalDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseDate(*s)
	return &t
}

// List godoc
// @Summary List conferences
// @Description Lists conferences ordered by start date. Public.
// @Tags conferences
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse{data=controllers.ListConferencesResponse}
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /conferences [get]
func (c *ConferenceController) List(w http.ResponseWriter, r *http.Request) {
	params := helpers.ParsePagination(r)
	confs, total, err := c.Service.List(r.Context(), params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ListConferencesResponse{
		Conferences: confs,
		Pagination:  helpers.NewPaginationMeta(params, total),
	})
}

// Get godoc
// @Summary Get a conference
// @Description Returns the conference and its tracks. Public.
// @Tags conferences
// @Produce json
// @Param slug path string true "Conference slug"
// @Success 200 {object} helpers.APIResponse{data=domain.ConferenceWithTracks}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug} [get]
func (c *ConferenceController) Get(w http.ResponseWriter, r *http.Request) {
	conf, err := c.Service.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, conf)
}

// Create godoc
// @Summary Create a conference
// @Description Staff only.
// @Tags conferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateConferenceRequest true "Conference"
// @Success 201 {object} helpers.APIResponse{data=domain.Conference}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /conferences [post]
func (c *ConferenceController) Create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req CreateConferenceRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	conf, err := c.Service.Create(r.Context(), viewer, domain.ConferenceInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		StartDate:   parseDate(req.StartDate),
		EndDate:     parseDate(req.EndDate),
		Location:    req.Location,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, conf)
}

// Update godoc
// @Summary Update a conference
// @Description Chair of the conference or staff. A derived slug follows a rename.
// @Tags conferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Param body body UpdateConferenceRequest true "Fields to update"
// @Success 200 {object} helpers.APIResponse{data=domain.Conference}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug} [patch]
func (c *ConferenceController) Update(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req UpdateConferenceRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	conf, err := c.Service.Update(r.Context(), viewer, r.PathValue("slug"), domain.ConferenceUpdate{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   parseOptionalDate(req.StartDate),
		EndDate:     parseOptionalDate(req.EndDate),
		Location:    req.Location,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, conf)
}

// AddTrack godoc
// @Summary Add a track
// @Description Chair of the conference or staff.
// @Tags conferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Param body body CreateTrackRequest true "Track"
// @Success 201 {object} helpers.APIResponse{data=domain.Track}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /conferences/{slug}/tracks [post]
func (c *ConferenceController) AddTrack(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req CreateTrackRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	track, err := c.Service.AddTrack(r.Context(), viewer, r.PathValue("slug"), req.Name)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, track)
}

// RemoveTrack godoc
// @Summary Remove a track
// @Description Chair of the conference or staff.
// @Tags conferences
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Param trackID path string true "Track ID"
// @Success 204
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug}/tracks/{trackID} [delete]
func (c *ConferenceController) RemoveTrack(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := c.Service.RemoveTrack(r.Context(), viewer, r.PathValue("slug"), r.PathValue("trackID")); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
