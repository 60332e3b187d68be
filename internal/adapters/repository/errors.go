package repository

import "errors"

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrNotAttendee   = errors.New("user has not joined the event")
)
