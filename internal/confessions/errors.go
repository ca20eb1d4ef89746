package confessions

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every input validation failure.
	ErrValidation = errors.New("confessions: validation failed")
	// ErrNotFound indicates that the vote or comment target does not exist.
	ErrNotFound = errors.New("confessions: not found")
	// ErrDuplicateVote indicates that the caller already cast this vote.
	ErrDuplicateVote = errors.New("confessions: duplicate vote")

	ErrMissingRequiredField = newValidationError("missing required field")
	ErrYearOutOfRange       = newValidationError("year out of range")
	ErrInvalidDepartment    = newValidationError("invalid department")
	ErrInvalidGender        = newValidationError("invalid gender")
	ErrConfessionTooLong    = newValidationError(fmt.Sprintf("text exceeds %d characters", MaxConfessionLength))
	ErrEmptyComment         = newValidationError("comment text required")
	ErrInvalidConfessionID  = newValidationError("invalid confession id")
	ErrInvalidCommentID     = newValidationError("invalid comment id")
	ErrInvalidVoterID       = newValidationError("invalid voter id")
	ErrInvalidDirection     = newValidationError("invalid vote direction")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ValidationError carries a caller-facing message for rejected input.
type ValidationError struct {
	Message string
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ServiceError tags a failure with a stable operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
