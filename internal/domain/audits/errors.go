package audits

import "errors"

var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown tracking id.
	ErrNotFound = errors.New("audit not found")
	// ErrCollaborator marks a failed or timed-out call to an external service.
	ErrCollaborator = errors.New("collaborator unavailable")
	// ErrCorruptedData marks a stored analysis that no longer decodes.
	ErrCorruptedData = errors.New("stored analysis is corrupted")
	// ErrNotReady marks an operation that needs a ready audit.
	ErrNotReady = errors.New("audit not ready")
	// ErrInFlight marks a running audit whose completion is claimed by
	// another delivery; the caller should retry after the lease.
	ErrInFlight = errors.New("audit completion in progress")
)
