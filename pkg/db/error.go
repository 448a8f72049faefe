package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// duplicateMarkers are driver messages for unique violations that reach us
// untranslated: postgres 23505, mysql 1062, sqlite 2067.
var duplicateMarkers = []string{
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique constraint violation.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
