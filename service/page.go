package service

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page one slice of an owner-scoped listing, 1-based
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Total    int64
}

// TotalPages ceil(Total/PageSize)
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// normalizePage clamps page to >= 1 and size to [1, maxPageSize], defaulting to defaultPageSize
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func offset(page, size int) int {
	return (page - 1) * size
}
