package controllers

import (
	"net/http"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/delivery/http/middleware"
	"cmt/internal/domain"
)

// requireViewer returns the request viewer or writes 401.
func requireViewer(w http.ResponseWriter, r *http.Request) (domain.Viewer, bool) {
	v, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return nil, false
	}
	return v, true
}
