package domain

import "fmt"

// Error types for consistent error handling across the ledger.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input). Never retried.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrIntegrity indicates a request that would break a ledger invariant,
// such as deleting the last account.
type ErrIntegrity struct {
	Rule string
}

func (e *ErrIntegrity) Error() string {
	return fmt.Sprintf("integrity violation: %s", e.Rule)
}

// ErrExternalService indicates a failure in a persistence backend or other
// external collaborator.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates invalid or missing credentials.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrNotConfigured is returned by a backend that lacks its endpoint or
// credentials. Such a backend fails closed.
type ErrNotConfigured struct {
	Backend string
	Missing []string
}

func (e *ErrNotConfigured) Error() string {
	return fmt.Sprintf("%s backend not configured: missing %v", e.Backend, e.Missing)
}

// ErrCascadeInconsistency reports an account delete whose transaction
// cascade did not complete together with it.
type ErrCascadeInconsistency struct {
	AccountID      string
	AccountDeleted bool
	Err            error
}

func (e *ErrCascadeInconsistency) Error() string {
	return fmt.Sprintf("cascade delete of account %s incomplete (account deleted=%t): %v",
		e.AccountID, e.AccountDeleted, e.Err)
}

func (e *ErrCascadeInconsistency) Unwrap() error {
	return e.Err
}
