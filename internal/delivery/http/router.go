package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"cmt/internal/delivery/http/controllers"
	"cmt/internal/delivery/http/middleware"
	"cmt/internal/domain"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Auth       *controllers.AuthController
	User       *controllers.UserController
	Conference *controllers.ConferenceController
	Membership *controllers.MembershipController
	Submission *controllers.SubmissionController
	Review     *controllers.ReviewController
	Payment    *controllers.PaymentController
	Health     *controllers.HealthController
}

// RouterConfig holds what the router needs besides the controllers.
type RouterConfig struct {
	Verifier       domain.TokenVerifier
	Viewers        middleware.ViewerLoader
	WebhookLimiter *middleware.RateLimiter
	Logger         *slog.Logger
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(c Controllers, cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(cfg.Verifier, cfg.Logger)
	loadViewer := middleware.RequireViewer(cfg.Viewers, cfg.Logger)
	viewer := func(h http.HandlerFunc) http.HandlerFunc { return authed(loadViewer(h)) }

	// Public
	mux.HandleFunc("GET /healthz", c.Health.Healthz)
	mux.HandleFunc("POST /auth/signup", c.Auth.SignUp)
	mux.HandleFunc("POST /auth/login", c.Auth.Login)
	mux.HandleFunc("GET /conferences", c.Conference.List)
	mux.HandleFunc("GET /conferences/{slug}", c.Conference.Get)
	mux.HandleFunc("POST /payments/webhook", cfg.WebhookLimiter.Wrap(c.Payment.Webhook))

	// Users
	mux.HandleFunc("GET /users/me", authed(c.User.GetMe))
	mux.HandleFunc("PATCH /users/me", authed(c.User.UpdateMe))

	// Conferences and tracks
	mux.HandleFunc("POST /conferences", viewer(c.Conference.Create))
	mux.HandleFunc("PATCH /conferences/{slug}", viewer(c.Conference.Update))
	mux.HandleFunc("POST /conferences/{slug}/tracks", viewer(c.Conference.AddTrack))
	mux.HandleFunc("DELETE /conferences/{slug}/tracks/{trackID}", viewer(c.Conference.RemoveTrack))

	// Memberships
	mux.HandleFunc("GET /memberships", authed(c.Membership.ListMine))
	mux.HandleFunc("POST /conferences/{slug}/memberships", authed(c.Membership.Register))
	mux.HandleFunc("GET /conferences/{slug}/memberships/me", authed(c.Membership.GetMine))
	mux.HandleFunc("DELETE /conferences/{slug}/memberships/me", authed(c.Membership.Withdraw))
	mux.HandleFunc("GET /conferences/{slug}/memberships", viewer(c.Membership.List))
	mux.HandleFunc("PATCH /conferences/{slug}/memberships/{membershipID}", viewer(c.Membership.Update))

	// Submissions
	mux.HandleFunc("POST /conferences/{slug}/submissions", viewer(c.Submission.Create))
	mux.HandleFunc("GET /submissions", viewer(c.Submission.ListMine))
	mux.HandleFunc("GET /submissions/{submissionID}", viewer(c.Submission.Get))
	mux.HandleFunc("GET /submissions/{submissionID}/file", viewer(c.Submission.Download))
	mux.HandleFunc("PATCH /submissions/{submissionID}", viewer(c.Submission.Update))
	mux.HandleFunc("DELETE /submissions/{submissionID}", viewer(c.Submission.Delete))

	// Reviewer assignment (chair)
	mux.HandleFunc("GET /conferences/{slug}/dashboard", viewer(c.Review.ChairDashboard))
	mux.HandleFunc("GET /submissions/{submissionID}/eligible-reviewers", viewer(c.Review.EligibleReviewers))
	mux.HandleFunc("GET /submissions/{submissionID}/reviewers", viewer(c.Review.ListAssignments))
	mux.HandleFunc("POST /submissions/{submissionID}/reviewers", viewer(c.Review.Assign))
	mux.HandleFunc("PUT /submissions/{submissionID}/reviewers", viewer(c.Review.Replace))
	mux.HandleFunc("DELETE /submissions/{submissionID}/reviewers/{membershipID}", viewer(c.Review.Unassign))

	// Reviewing
	mux.HandleFunc("GET /reviews/assigned", viewer(c.Review.ReviewerDashboard))
	mux.HandleFunc("GET /reviews/received", viewer(c.Review.Received))
	mux.HandleFunc("GET /assignments/{assignmentID}", viewer(c.Review.GetAssignment))
	mux.HandleFunc("PUT /assignments/{assignmentID}/review", viewer(c.Review.SaveReview))
	mux.HandleFunc("PATCH /assignments/{assignmentID}/review", viewer(c.Review.AmendRecommendation))

	// Payments
	mux.HandleFunc("GET /conferences/{slug}/payment", authed(c.Payment.Status))
	mux.HandleFunc("POST /conferences/{slug}/payment/checkout", authed(c.Payment.Checkout))
	mux.HandleFunc("POST /payments/{orderID}/complete", authed(c.Payment.Complete))
	mux.HandleFunc("POST /payments/{orderID}/cancel", authed(c.Payment.Cancel))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
