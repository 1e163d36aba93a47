// Package shared contains common domain types, errors, events, and ID
// helpers used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrAlreadyResolved = errors.New("already resolved")
	ErrExpired         = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrOptimisticLock = errors.New("optimistic lock failure")

	// Persistence errors
	ErrPersistence = errors.New("persistence failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "person", "activity", "link"
	Op      string // Operation that failed, e.g., "Create", "Approve"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Person domain errors
var (
	ErrPersonNotFound      = NewDomainError("person", "Find", ErrNotFound, "person not found")
	ErrStudentNotFound     = NewDomainError("person", "Find", ErrNotFound, "student not found")
	ErrPersonAlreadyExists = NewDomainError("person", "Create", ErrAlreadyExists, "person already exists")
	ErrRoleMismatch        = NewDomainError("person", "Validate", ErrInvalidInput, "referenced person has a different role")
	ErrDanglingReference   = NewDomainError("person", "Validate", ErrInvalidEntity, "reference to a non-existent person")
	ErrInvalidRole         = NewDomainError("person", "Validate", ErrInvalidInput, "invalid role")
	ErrMissingProfileName  = NewDomainError("person", "Validate", ErrEmptyValue, "profile name is required")
)

// Activity domain errors
var (
	ErrActivityNotFound     = NewDomainError("activity", "Find", ErrNotFound, "activity not found")
	ErrAssignmentNotFound   = NewDomainError("activity", "FindAssignment", ErrNotFound, "assignment not found")
	ErrDuplicateAssignment  = NewDomainError("activity", "Assign", ErrAlreadyExists, "student already has an assignment for this activity")
	ErrNotActivityOwner     = NewDomainError("activity", "Authorize", ErrUnauthorized, "caller does not own this activity")
	ErrEmptyAssigneeList    = NewDomainError("activity", "Assign", ErrEmptyValue, "no students to assign")
	ErrSubmissionEmpty      = NewDomainError("activity", "Submit", ErrEmptyValue, "submission content is required")
	ErrFeedbackContentEmpty = NewDomainError("activity", "AddFeedback", ErrEmptyValue, "feedback content is required")
)

// Case and support plan errors
var (
	ErrCaseNotFound        = NewDomainError("casefile", "Find", ErrNotFound, "case not found")
	ErrSupportPlanNotFound = NewDomainError("casefile", "FindPlan", ErrNotFound, "support plan not found")
	ErrInvalidCaseStatus   = NewDomainError("casefile", "UpdateStatus", ErrStateTransition, "invalid case status")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrEmptyRecipient       = NewDomainError("notification", "Validate", ErrEmptyValue, "recipient is required")
)

// Link request domain errors
var (
	ErrLinkRequestNotFound  = NewDomainError("link", "Find", ErrNotFound, "link request not found")
	ErrLinkRequestResolved  = NewDomainError("link", "Transition", ErrAlreadyResolved, "link request already resolved")
	ErrLinkAlreadyActive    = NewDomainError("link", "Approve", ErrAlreadyExists, "parent is already linked to this student")
	ErrLinkReviewerRole     = NewDomainError("link", "Authorize", ErrForbidden, "reviewer role cannot resolve link requests")
	ErrLinkRelationshipType = NewDomainError("link", "Validate", ErrInvalidInput, "invalid relationship")
)

// Sync aggregator errors
var (
	ErrParentNotLinked = NewDomainError("sync", "Authorize", ErrForbidden, "parent is not linked to this student")
	ErrNoLinkedStudent = NewDomainError("sync", "Refresh", ErrNotFound, "parent has no linked students")
)

// Persistence layer errors
var (
	ErrSnapshotCorrupt = NewDomainError("snapshot", "Decode", ErrInvalidFormat, "snapshot payload is not valid JSON")
	ErrSnapshotWrite   = NewDomainError("snapshot", "Write", ErrPersistence, "snapshot write failed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyResolved checks if the error hit a terminal state machine state.
func IsAlreadyResolved(err error) bool {
	return errors.Is(err, ErrAlreadyResolved)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrOptimisticLock)
}
