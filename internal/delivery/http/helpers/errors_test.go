package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt/internal/domain"
)

func TestWriteServiceError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", domain.NewValidationError("title is required", "file is required"), http.StatusBadRequest, ErrCodeBadRequest, "title is required; file is required"},
		{"wrapped validation", fmt.Errorf("create: %w", domain.NewValidationError("bad")), http.StatusBadRequest, ErrCodeBadRequest, "bad"},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials"},
		{"not eligible", domain.ErrNotEligible, http.StatusBadRequest, ErrCodeBadRequest, ""},
		{"webhook signature", domain.ErrWebhookSignature, http.StatusBadRequest, ErrCodeBadRequest, ""},
		{"not found", fmt.Errorf("get submission: %w", domain.ErrNotFound), http.StatusNotFound, ErrCodeNotFound, ""},
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, ""},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, ""},
		{"membership required", domain.ErrMembershipRequired, http.StatusForbidden, ErrCodeForbidden, ""},
		{"duplicate assignment", domain.ErrDuplicateAssignment, http.StatusConflict, ErrCodeConflict, ""},
		{"locked", domain.ErrSubmissionLocked, http.StatusConflict, ErrCodeConflict, ""},
		{"payment unavailable", fmt.Errorf("%w: timeout", domain.ErrPaymentUnavailable), http.StatusServiceUnavailable, ErrCodeServiceUnavailable, ""},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, ErrCodeInternalError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			WriteServiceError(rr, req, logger, tt.err)

			require.Equal(t, tt.wantStatus, rr.Code)
			var envelope APIResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
			require.NotNil(t, envelope.Error)
			assert.Nil(t, envelope.Data)
			assert.Equal(t, tt.wantCode, envelope.Error.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, envelope.Error.Message)
			}
		})
	}
}

type validatedBody struct {
	Name string `json:"name"`
}

func (b validatedBody) Validate() []string {
	if strings.TrimSpace(b.Name) == "" {
		return []string{"name is required"}
	}
	return nil
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{"valid", `{"name":"ICSE"}`, true},
		{"missing field", `{"name":" "}`, false},
		{"unknown field", `{"name":"x","extra":1}`, false},
		{"malformed", `{`, false},
		{"too large", `{"name":"` + strings.Repeat("a", MaxJSONBody) + `"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tt.body))
			var dest validatedBody
			ok := DecodeAndValidate(rr, req, &dest)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			}
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		want  domain.PaginationParams
	}{
		{"", domain.PaginationParams{Page: 1, PageSize: domain.DefaultPageSize}},
		{"page=3&page_size=5", domain.PaginationParams{Page: 3, PageSize: 5}},
		{"page=0&page_size=-1", domain.PaginationParams{Page: 1, PageSize: domain.DefaultPageSize}},
		{"page=x&page_size=1000", domain.PaginationParams{Page: 1, PageSize: domain.MaxPageSize}},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/conferences?"+tt.query, nil)
		assert.Equal(t, tt.want, ParsePagination(req), tt.query)
	}
}

func TestNewPaginationMeta(t *testing.T) {
	tests := []struct {
		params domain.PaginationParams
		total  int
		want   PaginationMeta
	}{
		{domain.PaginationParams{Page: 2, PageSize: 10}, 21, PaginationMeta{Page: 2, PageSize: 10, Total: 21, TotalPages: 3, HasNext: true}},
		{domain.PaginationParams{Page: 3, PageSize: 10}, 21, PaginationMeta{Page: 3, PageSize: 10, Total: 21, TotalPages: 3}},
		{domain.PaginationParams{}, 0, PaginationMeta{Page: 1, PageSize: domain.DefaultPageSize}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewPaginationMeta(tt.params, tt.total))
	}
}
