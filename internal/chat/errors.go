package chat

import "errors"

var (
	// ErrNotFound is returned for unknown users, messages, or partners.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when a non-sender edits or deletes a message.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidRequest is returned for malformed or incomplete input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable is returned when the durable store or a collaborator fails.
	ErrUnavailable = errors.New("service unavailable")
)
