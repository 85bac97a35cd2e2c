package db

import "strings"

// IsUniqueViolation reports whether the error is a unique constraint
// violation, in either the Postgres or the sqlite phrasing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
