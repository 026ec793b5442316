// Package utils holds small helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a decimal int, returning def when s is empty or
// not a valid integer.
func AtoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage parses 1-based page and page size query values. page defaults to
// 1; size defaults to defSize and is capped at maxSize.
func ClampPage(page, size string, defSize, maxSize int) (int, int) {
	p := max(AtoiDefault(page, 1), 1)
	s := min(max(AtoiDefault(size, defSize), 1), maxSize)
	return p, s
}
