package controllers

import (
	"log/slog"
	"net/http"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/delivery/http/middleware"
	"cmt/internal/domain"
)

// RegisterRequest is the request body for POST /conferences/{slug}/memberships.
// Empty role1 means Author and empty role2 means N/A.
type RegisterRequest struct {
	Role1 string `json:"role1" enums:"Author,Reviewer,Chair"`
	Role2 string `json:"role2" enums:"Author,Reviewer,Chair,N/A"`
}

// UpdateMembershipRequest is the request body for PATCH /conferences/{slug}/memberships/{membershipID}.
type UpdateMembershipRequest struct {
	Roles  *[]string `json:"roles"`
	Status *string   `json:"status" enums:"Pending,Accepted,Rejected,Withdrawn"`
}

// Validate implements Validator.
func (u UpdateMembershipRequest) Validate() []string {
	var errs []string
	if u.Roles != nil {
		if _, err := domain.ParseRoleNames(*u.Roles); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if u.Status != nil && !domain.MembershipStatus(*u.Status).Valid() {
		errs = append(errs, "unknown status")
	}
	return errs
}

// MembershipResponse is a membership with its paid-access flag.
type MembershipResponse struct {
	*domain.Membership
	HasAccess bool `json:"has_conference_access"`
}

func membershipResponse(m *domain.Membership) MembershipResponse {
	return MembershipResponse{Membership: m, HasAccess: m.HasConferenceAccess()}
}

func membershipResponses(ms []*domain.Membership) []MembershipResponse {
	out := make([]MembershipResponse, len(ms))
	for i, m := range ms {
		out[i] = membershipResponse(m)
	}
	return out
}

// MembershipController handles conference registration and chair management of members.
type MembershipController struct {
	Logger  *slog.Logger
	Service domain.MembershipService
}

func NewMembershipController(logger *slog.Logger, svc domain.MembershipService) *MembershipController {
	return &MembershipController{Logger: logger, Service: svc}
}

// Register godoc
// @Summary Register for a conference
// @Description Creates the caller's membership with up to two roles. Returns 201 when created and 200 with the existing membership otherwise.
// @Tags memberships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Param body body RegisterRequest true "Roles"
// @Success 200 {object} helpers.APIResponse{data=controllers.MembershipResponse}
// @Success 201 {object} helpers.APIResponse{data=controllers.MembershipResponse}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug}/memberships [post]
func (c *MembershipController) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	m, created, err := c.Service.Register(r.Context(), userID, r.PathValue("slug"), req.Role1, req.Role2)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	helpers.WriteJSONSuccess(w, status, membershipResponse(m))
}

// GetMine godoc
// @Summary Get my membership
// @Tags memberships
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Success 200 {object} helpers.APIResponse{data=controllers.MembershipResponse}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug}/memberships/me [get]
func (c *MembershipController) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	m, err := c.Service.GetMine(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, membershipResponse(m))
}

// ListMine godoc
// @Summary List my memberships
// @Tags memberships
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=[]controllers.MembershipResponse}
// @Router /memberships [get]
func (c *MembershipController) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	ms, err := c.Service.ListMine(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, membershipResponses(ms))
}

// Withdraw godoc
// @Summary Withdraw from a conference
// @Description Sets the caller's membership status to Withdrawn.
// @Tags memberships
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Success 200 {object} helpers.APIResponse{data=controllers.MembershipResponse}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug}/memberships/me [delete]
func (c *MembershipController) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	m, err := c.Service.Withdraw(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, membershipResponse(m))
}

// List godoc
// @Summary List conference members
// @Description Chair of the conference or staff.
// @Tags memberships
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Success 200 {object} helpers.APIResponse{data=[]controllers.MembershipResponse}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /conferences/{slug}/memberships [get]
func (c *MembershipController) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ms, err := c.Service.ListForConference(r.Context(), viewer, r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, membershipResponses(ms))
}

// Update godoc
// @Summary Update a member
// @Description Chair of the conference or staff. Changes roles and/or status.
// @Tags memberships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Param membershipID path string true "Membership ID"
// @Param body body UpdateMembershipRequest true "Changes"
// @Success 200 {object} helpers.APIResponse{data=controllers.MembershipResponse}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug}/memberships/{membershipID} [patch]
func (c *MembershipController) Update(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req UpdateMembershipRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	var upd domain.MembershipUpdate
	if req.Roles != nil {
		roles, _ := domain.ParseRoleNames(*req.Roles)
		upd.Roles = &roles
	}
	if req.Status != nil {
		status := domain.MembershipStatus(*req.Status)
		upd.Status = &status
	}
	m, err := c.Service.UpdateByChair(r.Context(), viewer, r.PathValue("slug"), r.PathValue("membershipID"), upd)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, membershipResponse(m))
}
