package domain

// Page size limits for list queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams selects one page of a list. Page is 1-based.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Normalize clamps Page to at least 1 and PageSize to [1, MaxPageSize]. An unset size becomes DefaultPageSize.
func (p PaginationParams) Normalize() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows before the page.
func (p PaginationParams) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns how many pages of this size hold total rows.
func (p PaginationParams) TotalPages(total int) int {
	size := p.Normalize().PageSize
	return (total + size - 1) / size
}
