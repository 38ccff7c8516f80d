package services

import "github.com/tutorhub/apiserver/types"

const (
	DefaultPageSize = 6
	MaxPageSize     = 100
)

// paginate clamps page into [1, totalPages] (1 when there are no results)
// and returns the page metadata with the row offset to read from.
func paginate(total, page, limit int) (types.Pagination, int) {
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	totalPages := (total + limit - 1) / limit
	current := min(page, totalPages)
	if current < 1 {
		current = 1
	}

	return types.Pagination{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: current,
		Limit:       limit,
		HasNext:     current < totalPages,
		HasPrev:     current > 1,
	}, (current - 1) * limit
}
