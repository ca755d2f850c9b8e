package domain

import "errors"

var (
	// ErrNotFound is returned when a delete or update target is absent.
	ErrNotFound = errors.New("custom command not found")
	// ErrInsufficientPrivilege is returned by the authorization gate.
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	// ErrRateLimitExceeded is returned when a community exhausted its mutation window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrEmptyResponse guards the registry from storing a macro without text.
	ErrEmptyResponse = errors.New("custom command response cannot be empty")
	// ErrDuplicateName guards the registry from inserting a name twice.
	ErrDuplicateName = errors.New("custom command already exists")
	// ErrPersistenceTimeout is returned when a commit did not finish in time.
	ErrPersistenceTimeout = errors.New("persistence commit timed out")
	// ErrPersistenceFailure is returned when a commit did not durably apply.
	ErrPersistenceFailure = errors.New("persistence commit failed")
	// ErrUnknownRole is returned when a role name cannot be resolved to a tier.
	ErrUnknownRole = errors.New("unknown role")
)
