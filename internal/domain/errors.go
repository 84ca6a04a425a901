package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when an admin operation is attempted without an
// authenticated user.
var ErrUnauthorized = errors.New("unauthorized")

// ErrAgentNotProvisioned is returned when an update is attempted on a record
// that has no remote agent id.
var ErrAgentNotProvisioned = errors.New("receptionist has no provisioned agent")

// ValidationError reports a malformed or missing request field. Validation
// errors are raised before any collaborator is called.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing record. The public lookup path returns the
// same error for inactive and nonexistent slugs.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ConflictError reports a uniqueness violation, e.g. two creates racing on the
// same slug.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.Key)
}

// ProviderError reports a failed call to the remote agent provider.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("agent provider %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("agent provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFound reports whether the provider answered 404, meaning the remote
// agent no longer exists.
func (e *ProviderError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// StorageError reports a failed record store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
