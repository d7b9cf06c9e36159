package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Error is the API error carried from services to handlers. Status maps the
// taxonomy onto HTTP: Forbidden 403, NotFound 404, ValidationError 422,
// InvalidOperation 400.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func New(message string, status int) *Error {
	return &Error{Message: message, Status: status}
}

var (
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrForbidden           = New("forbidden", http.StatusForbidden)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	InActiveUserError      = errors.New("user inactive")
)

// Forbidden covers authorization failures: not a member, not admin, not the
// sender.
func Forbidden(message string) *Error {
	return New(message, http.StatusForbidden)
}

// NotFound covers absent or soft-deleted entities.
func NotFound(message string) *Error {
	return New(message, http.StatusNotFound)
}

// Validation covers malformed input such as a kind/body/media mismatch or a
// cross-conversation reply.
func Validation(message string) *Error {
	return New(message, http.StatusUnprocessableEntity)
}

// InvalidOperation covers operations not legal for the entity's state, such
// as editing a non-text message or mutating private-conversation membership.
func InvalidOperation(message string) *Error {
	return New(message, http.StatusBadRequest)
}

// IsUniqueConstraint reports whether err is a unique-constraint rejection.
// Engines use it to turn a lost insert race into the idempotent outcome
// instead of surfacing the conflict.
func IsUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

// GetUniqueContraintError translates a storage error into an API error,
// mapping unique-constraint rejections to 409.
func GetUniqueContraintError(err error) *Error {
	if IsUniqueConstraint(err) {
		return New("resource already exists", http.StatusConflict)
	}
	return ErrInternalServerError
}
