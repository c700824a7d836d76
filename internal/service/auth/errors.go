package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("already exists")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDelivery             = errors.New("could not deliver email")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrInvalidResetToken    = errors.New("token is invalid or expired")
)

// ValidationError carries per-field messages. It matches ErrValidation,
// and ErrConflict as well when a uniqueness rule failed.
type ValidationError struct {
	Fields   map[string]string
	Conflict bool
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.Conflict && target == ErrConflict)
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
