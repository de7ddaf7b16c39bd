// Package paypal implements domain.PaymentGateway against the PayPal REST API
// (Orders v2 and webhook signature verification).
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cmt/internal/domain"
)

// Config holds credentials and redirect targets for the gateway.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
	BrandName    string
}

// tokenLeeway refreshes the access token slightly before PayPal expires it.
const tokenLeeway = time.Minute

// APIError is a non-2xx PayPal response.
type APIError struct {
	Status  int
	Name    string
	Message string
	Issue   string
}

func (e *APIError) Error() string {
	if e.Issue != "" {
		return fmt.Sprintf("paypal: %d %s (%s): %s", e.Status, e.Name, e.Issue, e.Message)
	}
	return fmt.Sprintf("paypal: %d %s: %s", e.Status, e.Name, e.Message)
}

type client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient returns a PayPal gateway. A nil httpClient uses a client with a 15 second timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) domain.PaymentGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &client{cfg: cfg, http: httpClient, logger: logger, now: time.Now}
}

func (c *client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.send(req, &out); err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("fetch access token: empty token")
	}
	c.token = out.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenLeeway)
	return c.token, nil
}

// send executes req and decodes a JSON body into out, mapping non-2xx responses to *APIError.
func (c *client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Name    string `json:"name"`
			Message string `json:"message"`
			Error   string `json:"error"`
			Details []struct {
				Issue string `json:"issue"`
			} `json:"details"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Name, apiErr.Message = payload.Name, payload.Message
			if apiErr.Name == "" {
				apiErr.Name = payload.Error
			}
			if len(payload.Details) > 0 {
				apiErr.Issue = payload.Details[0].Issue
			}
		}
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *client) call(ctx context.Context, method, path string, in any, header http.Header, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// formatAmount renders cents as a decimal string with two fraction digits.
func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      amount `json:"amount"`
}

type applicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
	UserAction         string `json:"user_action"`
	ShippingPreference string `json:"shipping_preference"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Links         []link `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o *orderResponse) toOrder() *domain.Order {
	order := &domain.Order{ID: o.ID, Status: o.Status}
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			order.ApproveURL = l.Href
			break
		}
	}
	for _, pu := range o.PurchaseUnits {
		if caps := pu.Payments.Captures; len(caps) > 0 {
			order.CaptureID = caps[0].ID
			order.CaptureStatus = caps[0].Status
			break
		}
	}
	return order
}

func (c *client) CreateOrder(ctx context.Context, in domain.OrderRequest) (*domain.Order, error) {
	req := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: in.ReferenceID,
			Description: in.Description,
			Amount:      amount{CurrencyCode: in.Currency, Value: formatAmount(in.AmountCents)},
		}},
		ApplicationContext: applicationContext{
			BrandName:          c.cfg.BrandName,
			ReturnURL:          c.cfg.ReturnURL,
			CancelURL:          c.cfg.CancelURL,
			UserAction:         "PAY_NOW",
			ShippingPreference: "NO_SHIPPING",
		},
	}
	header := http.Header{}
	if in.RequestID != "" {
		header.Set("PayPal-Request-Id", in.RequestID)
	}
	var out orderResponse
	if err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", req, header, &out); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order := out.toOrder()
	if order.ApproveURL == "" {
		return nil, fmt.Errorf("create order %s: response has no approve link", order.ID)
	}
	c.logger.InfoContext(ctx, "paypal order created", "order_id", order.ID, "reference_id", in.ReferenceID)
	return order, nil
}

func (c *client) CaptureOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out orderResponse
	header := http.Header{"Prefer": {"return=representation"}}
	err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{}, header, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Issue == "ORDER_ALREADY_CAPTURED" {
			return nil, domain.ErrOrderAlreadyCaptured
		}
		return nil, fmt.Errorf("capture order %s: %w", orderID, err)
	}
	return out.toOrder(), nil
}

func (c *client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out orderResponse
	if err := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return out.toOrder(), nil
}

// Webhook transmission headers forwarded to verify-webhook-signature.
const (
	headerAuthAlgo         = "Paypal-Auth-Algo"
	headerCertURL          = "Paypal-Cert-Url"
	headerTransmissionID   = "Paypal-Transmission-Id"
	headerTransmissionSig  = "Paypal-Transmission-Sig"
	headerTransmissionTime = "Paypal-Transmission-Time"
)

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type webhookPayload struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (c *client) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	if c.cfg.WebhookID == "" {
		return nil, fmt.Errorf("%w: webhook id is not configured", domain.ErrWebhookSignature)
	}
	vr := verifyRequest{
		AuthAlgo:         headers.Get(headerAuthAlgo),
		CertURL:          headers.Get(headerCertURL),
		TransmissionID:   headers.Get(headerTransmissionID),
		TransmissionSig:  headers.Get(headerTransmissionSig),
		TransmissionTime: headers.Get(headerTransmissionTime),
		WebhookID:        c.cfg.WebhookID,
	}
	if vr.AuthAlgo == "" || vr.CertURL == "" || vr.TransmissionID == "" || vr.TransmissionSig == "" || vr.TransmissionTime == "" {
		return nil, fmt.Errorf("%w: missing transmission headers", domain.ErrWebhookSignature)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not JSON", domain.ErrWebhookSignature)
	}
	vr.WebhookEvent = body

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", vr, nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, fmt.Errorf("%w: %v", domain.ErrWebhookSignature, err)
		}
		return nil, fmt.Errorf("verify webhook: %w", err)
	}
	if out.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("%w: status %q", domain.ErrWebhookSignature, out.VerificationStatus)
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookSignature, err)
	}
	return &domain.WebhookEvent{
		ID:           p.ID,
		EventType:    p.EventType,
		ResourceID:   p.Resource.ID,
		RelatedOrder: p.Resource.SupplementaryData.RelatedIDs.OrderID,
	}, nil
}
