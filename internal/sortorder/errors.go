package sortorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/loadorder/internal/ir"
)

// Error represents a sort order failure with a stable code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SortOrderID identifies the affected sort order, if any.
	SortOrderID ir.SortOrderID

	// VarietyID identifies the variety involved, if any.
	VarietyID ir.VarietyID

	// Key is the missing item key for ItemNotFound.
	Key string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes sort order errors.
type ErrorCode string

const (
	// ErrCodeLockTimeout indicates the Manager lock was not acquired in time.
	ErrCodeLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// ErrCodeCancelled indicates the caller cancelled before anything was written.
	ErrCodeCancelled ErrorCode = "OPERATION_CANCELLED"

	// ErrCodeUnknownVariety indicates a variety id that is not registered.
	ErrCodeUnknownVariety ErrorCode = "UNKNOWN_VARIETY"

	// ErrCodeItemNotFound indicates a key absent from the current order.
	ErrCodeItemNotFound ErrorCode = "ITEM_NOT_FOUND"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.SortOrderID != "" && e.Key != "":
		return fmt.Sprintf("%s: %s (sort_order=%s, key=%s)", e.Code, e.Message, e.SortOrderID, e.Key)
	case e.VarietyID != "":
		return fmt.Sprintf("%s: %s (variety=%s)", e.Code, e.Message, e.VarietyID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsLockTimeout returns true if the error is a lock timeout.
// Uses errors.As to handle wrapped errors.
func IsLockTimeout(err error) bool { return hasCode(err, ErrCodeLockTimeout) }

// IsCancelled returns true if the operation was cancelled by the caller.
func IsCancelled(err error) bool { return hasCode(err, ErrCodeCancelled) }

// IsUnknownVariety returns true if the error names an unregistered variety.
func IsUnknownVariety(err error) bool { return hasCode(err, ErrCodeUnknownVariety) }

// IsItemNotFound returns true if the error names a key absent from the order.
func IsItemNotFound(err error) bool { return hasCode(err, ErrCodeItemNotFound) }

// NewLockTimeoutError creates an Error for an expired lock wait.
func NewLockTimeoutError(timeout time.Duration) *Error {
	return &Error{
		Code:    ErrCodeLockTimeout,
		Message: fmt.Sprintf("sort order lock not acquired within %s", timeout),
	}
}

// NewCancelledError creates an Error wrapping the context's error.
func NewCancelledError(cause error) *Error {
	return &Error{
		Code:    ErrCodeCancelled,
		Message: "operation cancelled",
		Err:     cause,
	}
}

// NewUnknownVarietyError creates an Error for an unregistered variety id.
func NewUnknownVarietyError(id ir.VarietyID) *Error {
	return &Error{
		Code:      ErrCodeUnknownVariety,
		Message:   "variety is not registered",
		VarietyID: id,
	}
}

// NewItemNotFoundError creates an Error for a key missing from a sort order.
func NewItemNotFoundError(sortOrder ir.SortOrderID, key string) *Error {
	return &Error{
		Code:        ErrCodeItemNotFound,
		Message:     "item not in sort order",
		SortOrderID: sortOrder,
		Key:         key,
	}
}
