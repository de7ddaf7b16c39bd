package controllers

import (
	"io"
	"log/slog"
	"net/http"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/delivery/http/middleware"
	"cmt/internal/domain"
)

// maxWebhookBody bounds provider notifications.
const maxWebhookBody = 64 << 10

// WebhookAck is the data of a processed webhook.
type WebhookAck struct {
	Received bool `json:"received"`
}

// PaymentController handles registration fee checkout and provider notifications.
type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
}

func NewPaymentController(logger *slog.Logger, svc domain.PaymentService) *PaymentController {
	return &PaymentController{Logger: logger, Service: svc}
}

// Checkout godoc
// @Summary Start fee checkout
// @Description Prices the caller's registration by occupation, creates a provider order and returns the approval URL to redirect the payer to.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Success 201 {object} helpers.APIResponse{data=domain.CheckoutResult}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 503 {object} helpers.APIResponse "error.code: service_unavailable"
// @Router /conferences/{slug}/payment/checkout [post]
func (c *PaymentController) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	res, err := c.Service.Checkout(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, res)
}

// Status godoc
// @Summary Get my fee payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Success 200 {object} helpers.APIResponse{data=domain.Payment}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /conferences/{slug}/payment [get]
func (c *PaymentController) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	p, err := c.Service.Status(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// Complete godoc
// @Summary Complete an approved order
// @Description Called after the payer returns from the provider. Captures the order; a completed capture marks the membership paid.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param orderID path string true "Provider order ID"
// @Success 200 {object} helpers.APIResponse{data=domain.Payment}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 503 {object} helpers.APIResponse "error.code: service_unavailable"
// @Router /payments/{orderID}/complete [post]
func (c *PaymentController) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	p, err := c.Service.CompleteReturn(r.Context(), userID, r.PathValue("orderID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// Cancel godoc
// @Summary Cancel a pending order
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param orderID path string true "Provider order ID"
// @Success 200 {object} helpers.APIResponse{data=domain.Payment}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /payments/{orderID}/cancel [post]
func (c *PaymentController) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	p, err := c.Service.Cancel(r.Context(), userID, r.PathValue("orderID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// Webhook godoc
// @Summary Payment provider webhook
// @Description Receives provider notifications. The signature is verified with the provider before the event is applied. Unknown orders and event types are acknowledged.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} helpers.APIResponse{data=controllers.WebhookAck}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 503 {object} helpers.APIResponse "error.code: service_unavailable"
// @Router /payments/webhook [post]
func (c *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "could not read body")
		return
	}
	if err := c.Service.HandleWebhook(r.Context(), r.Header, body); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, WebhookAck{Received: true})
}
