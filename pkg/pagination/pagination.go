// Package pagination converts 1-based page requests into storage windows.
package pagination

import "math"

const (
	// DefaultPage is used when a request names no page.
	DefaultPage = 1
	// DefaultLimit is used when a request names no limit.
	DefaultLimit = 10
	// MaxLimit caps page size; request validation enforces it.
	MaxLimit = 100
	// MaxPage keeps (page-1)*MaxLimit well inside int; request validation
	// enforces it.
	MaxPage = math.MaxInt32
)

// Window is the offset/limit pair handed to a store query.
type Window struct {
	Offset int
	Limit  int
}

// NewWindow returns {(page-1)*limit, limit}. It does no bounds checking:
// callers validate page in [1, MaxPage] and limit in [1, MaxLimit] first.
func NewWindow(page, limit int) Window {
	return Window{Offset: (page - 1) * limit, Limit: limit}
}

// Pages returns ceil(total/limit), and 0 when there is nothing to page.
func Pages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}

// Meta is the pagination block returned alongside list responses.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewMeta builds the pagination block for the requested page and the total
// number of matching rows.
func NewMeta(page, limit int, total int64) Meta {
	return Meta{Page: page, Limit: limit, Total: total, Pages: Pages(total, limit)}
}
