package helpers

import (
	"net/http"
	"strconv"

	"cmt/internal/domain"
)

// ParsePagination reads page and page_size from the query string.
// Missing or malformed values fall back to the first page and the default size.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return domain.PaginationParams{Page: page, PageSize: size}.Normalize()
}

// PaginationMeta describes the returned page of a list response.
type PaginationMeta struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginationMeta builds the metadata for params over total rows.
func NewPaginationMeta(params domain.PaginationParams, total int) PaginationMeta {
	params = params.Normalize()
	pages := params.TotalPages(total)
	return PaginationMeta{
		Page:       params.Page,
		PageSize:   params.PageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    params.Page < pages,
	}
}
