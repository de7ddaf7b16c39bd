package controllers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/domain"
)

// AssignReviewerRequest is the request body for POST /submissions/{submissionID}/reviewers.
type AssignReviewerRequest struct {
	MembershipID string `json:"membership_id"`
}

// Validate implements Validator.
func (a AssignReviewerRequest) Validate() []string {
	if strings.TrimSpace(a.MembershipID) == "" {
		return []string{"membership_id is required"}
	}
	return nil
}

// ReplaceReviewersRequest is the request body for PUT /submissions/{submissionID}/reviewers.
type ReplaceReviewersRequest struct {
	MembershipIDs []string `json:"membership_ids"`
}

// Validate implements Validator.
func (rr ReplaceReviewersRequest) Validate() []string {
	if rr.MembershipIDs == nil {
		return []string{"membership_ids is required"}
	}
	return nil
}

// SaveReviewRequest is the request body for PUT /assignments/{assignmentID}/review.
type SaveReviewRequest struct {
	Comment        string                `json:"comment"`
	Recommendation domain.Recommendation `json:"recommendation" enums:"PENDING,ACCEPT,REJECT,REVISE"`
	Submit         bool                  `json:"submit"`
}

// Validate implements Validator.
func (s SaveReviewRequest) Validate() []string {
	if s.Recommendation != "" && !s.Recommendation.Valid() {
		return []string{"recommendation must be PENDING, ACCEPT, REJECT or REVISE"}
	}
	return nil
}

// AmendRecommendationRequest is the request body for PATCH /assignments/{assignmentID}/review.
type AmendRecommendationRequest struct {
	Recommendation domain.Recommendation `json:"recommendation" enums:"ACCEPT,REJECT,REVISE"`
}

// Validate implements Validator.
func (a AmendRecommendationRequest) Validate() []string {
	if !a.Recommendation.Decisive() {
		return []string{"recommendation must be ACCEPT, REJECT or REVISE"}
	}
	return nil
}

// ReviewController handles reviewer assignment, reviewing and dashboards.
type ReviewController struct {
	Logger  *slog.Logger
	Service domain.ReviewService
}

func NewReviewController(logger *slog.Logger, svc domain.ReviewService) *ReviewController {
	return &ReviewController{Logger: logger, Service: svc}
}

// EligibleReviewers godoc
// @Summary List eligible reviewers
// @Description Reviewers of the conference who are not authors of the paper and not the caller. Chair or staff.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Success 200 {object} helpers.APIResponse{data=[]domain.Membership}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /submissions/{submissionID}/eligible-reviewers [get]
func (c *ReviewController) EligibleReviewers(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ms, err := c.Service.EligibleReviewers(r.Context(), viewer, r.PathValue("submissionID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ms)
}

// ListAssignments godoc
// @Summary List assigned reviewers
// @Description Assignments of the submission with their reviews. Chair or staff.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Success 200 {object} helpers.APIResponse{data=[]domain.ReviewerAssignment}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /submissions/{submissionID}/reviewers [get]
func (c *ReviewController) ListAssignments(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	as, err := c.Service.ListAssignments(r.Context(), viewer, r.PathValue("submissionID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, as)
}

// Assign godoc
// @Summary Assign a reviewer
// @Description Assigns an eligible reviewer membership. Assigning the same reviewer twice returns 409. Chair or staff.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Param body body AssignReviewerRequest true "Reviewer membership"
// @Success 201 {object} helpers.APIResponse{data=domain.ReviewerAssignment}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /submissions/{submissionID}/reviewers [post]
func (c *ReviewController) Assign(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req AssignReviewerRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	a, err := c.Service.Assign(r.Context(), viewer, r.PathValue("submissionID"), strings.TrimSpace(req.MembershipID))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, a)
}

// Replace godoc
// @Summary Replace reviewers
// @Description Makes the assigned set match membership_ids. Reviewers who already submitted a review are retained. Chair or staff.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Param body body ReplaceReviewersRequest true "Target reviewer memberships"
// @Success 200 {object} helpers.APIResponse{data=domain.ReplaceResult}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /submissions/{submissionID}/reviewers [put]
func (c *ReviewController) Replace(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req ReplaceReviewersRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	res, err := c.Service.ReplaceReviewers(r.Context(), viewer, r.PathValue("submissionID"), req.MembershipIDs)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// Unassign godoc
// @Summary Unassign a reviewer
// @Description Removes the assignment. If the reviewer already submitted a review, confirm=true is required and the review is deleted. Chair or staff.
// @Tags reviews
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Param membershipID path string true "Reviewer membership ID"
// @Param confirm query bool false "Confirm deletion of a submitted review"
// @Success 204
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /submissions/{submissionID}/reviewers/{membershipID} [delete]
func (c *ReviewController) Unassign(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := c.Service.Unassign(r.Context(), viewer, r.PathValue("submissionID"), r.PathValue("membershipID"), confirm); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChairDashboard godoc
// @Summary Chair dashboard
// @Description Submissions of the conference grouped by track with review progress. Chair or staff.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Success 200 {object} helpers.APIResponse{data=domain.ChairDashboard}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /conferences/{slug}/dashboard [get]
func (c *ReviewController) ChairDashboard(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	d, err := c.Service.ChairDashboard(r.Context(), viewer, r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, d)
}

// ReviewerDashboard godoc
// @Summary Reviewer dashboard
// @Description The caller's pending and submitted assignments with completion rate.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=domain.ReviewerDashboard}
// @Router /reviews/assigned [get]
func (c *ReviewController) ReviewerDashboard(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	d, err := c.Service.ReviewerDashboard(r.Context(), viewer)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, d)
}

// Received godoc
// @Summary Reviews received
// @Description Submitted reviews on the caller's papers, without reviewer identity.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=domain.ReceivedReviews}
// @Router /reviews/received [get]
func (c *ReviewController) Received(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	rr, err := c.Service.ReceivedReviews(r.Context(), viewer)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rr)
}

// GetAssignment godoc
// @Summary Get an assignment
// @Description The assigned reviewer's view of the paper and their review.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param assignmentID path string true "Assignment ID"
// @Success 200 {object} helpers.APIResponse{data=domain.AssignmentDetail}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /assignments/{assignmentID} [get]
func (c *ReviewController) GetAssignment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	d, err := c.Service.GetAssignment(r.Context(), viewer, r.PathValue("assignmentID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, d)
}

// SaveReview godoc
// @Summary Save or submit a review
// @Description Saves a draft, or submits it when submit is true. Submitting requires ACCEPT, REJECT or REVISE and updates the paper status.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param assignmentID path string true "Assignment ID"
// @Param body body SaveReviewRequest true "Review"
// @Success 200 {object} helpers.APIResponse{data=domain.Review}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /assignments/{assignmentID}/review [put]
func (c *ReviewController) SaveReview(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req SaveReviewRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Recommendation == "" {
		req.Recommendation = domain.RecommendationPending
	}
	rv, err := c.Service.SaveReview(r.Context(), viewer, r.PathValue("assignmentID"), domain.ReviewInput{
		Comment:        req.Comment,
		Recommendation: req.Recommendation,
		Submit:         req.Submit,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rv)
}

// AmendRecommendation godoc
// @Summary Change a submitted recommendation
// @Description Changes the recommendation of a submitted review and updates the paper status. The comment cannot change.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param assignmentID path string true "Assignment ID"
// @Param body body AmendRecommendationRequest true "Recommendation"
// @Success 200 {object} helpers.APIResponse{data=domain.Review}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /assignments/{assignmentID}/review [patch]
func (c *ReviewController) AmendRecommendation(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req AmendRecommendationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	rv, err := c.Service.AmendRecommendation(r.Context(), viewer, r.PathValue("assignmentID"), req.Recommendation)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rv)
}
