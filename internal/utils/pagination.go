// Package utils holds small helpers shared by the transport and service
// layers for reading and bounding paging parameters.
package utils

import "strconv"

// MaxPageSize caps every paged listing.
const MaxPageSize = 100

// AtoiDefault parses s as an int, returning def when s is empty or not a
// valid integer. Surrounding spaces are not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageBounds normalizes a 1-based page and its size. Pages below 1 become 1;
// non-positive sizes take def, and sizes above MaxPageSize are capped.
func PageBounds(page, pageSize, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = def
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
