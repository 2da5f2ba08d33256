package core

// PageBounds returns the [start, end) slice bounds of a 1-based page over n
// items. Pages below 1 are treated as the first page; a non-positive limit
// yields an empty range.
func PageBounds(n, page, limit int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || n <= 0 {
		return 0, 0
	}
	start = (page - 1) * limit
	if start >= n || start < 0 {
		return n, n
	}
	end = start + limit
	if end > n || end < start {
		end = n
	}
	return start, end
}

// Paginate returns a copy of one page of items.
func Paginate[T any](items []T, page, limit int) []T {
	start, end := PageBounds(len(items), page, limit)
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
