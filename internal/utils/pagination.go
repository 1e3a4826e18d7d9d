// Package utils provides small, generic helpers for parsing request input.
// They carry no domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts s to an int, returning def when s is empty or not a
// valid integer.
//
//	n := utils.AtoiDefault("42", 0) // 42
//	n = utils.AtoiDefault("x", 5)   // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseID parses a positive decimal int64 identifier. Surrounding spaces are
// ignored.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ClampPage bounds page to >= 1 and pageSize to [1, maxSize], using
// defSize when pageSize is not positive.
func ClampPage(page, pageSize, defSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
