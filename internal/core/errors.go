package core

import "errors"

// Error codes surfaced to clients.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodeMessageNotFound  = "message_not_found"
	ErrCodeForbidden        = "forbidden"
	ErrCodeConflict         = "conflict"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeBadRequest       = "bad_request"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrNotAuthor       = errors.New("can only delete own messages")
	ErrConnectionGone  = errors.New("connection no longer registered")
)

// Error wraps a code and human-readable message for client delivery.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *Error) Unwrap() error {
	return e.cause
}

func validationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

func notFoundError(code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

func forbiddenError(msg string) *Error {
	return &Error{Code: ErrCodeForbidden, Message: msg, cause: ErrNotAuthor}
}

// storeError marks a failed durable-store call. The triggering operation is
// aborted wholesale; the caller may retry.
func storeError(op string, cause error) *Error {
	return &Error{Code: ErrCodeStoreUnavailable, Message: op + " failed", cause: cause}
}
