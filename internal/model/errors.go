package model

import "errors"

// Sentinel error kinds for the memory subsystems, checked with errors.Is.
var (
	// ErrNotFound indicates a missing key, record, parent thought, or
	// snapshot.
	ErrNotFound = errors.New("not found")

	// ErrNotCoupled indicates an external-memory operation while no
	// external store is coupled.
	ErrNotCoupled = errors.New("external memory not coupled")

	// ErrPermissionDenied indicates a workspace-external path without a
	// covering grant.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCorruptSnapshot indicates a history entry that is unreadable or
	// fails its hash check.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrGeneration indicates a failure of the generation collaborator.
	ErrGeneration = errors.New("generation failed")

	// ErrStorage indicates an I/O failure in the persistence layer.
	// Storage errors are recoverable; callers may retry.
	ErrStorage = errors.New("storage failure")
)
