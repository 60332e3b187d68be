package service

import "errors"

// ErrNotStarted is returned by operations that need the refresh pipeline
// before Start was called.
var ErrNotStarted = errors.New("service not started")

// ErrStopped is returned by Start once Stop has closed the cache.
var ErrStopped = errors.New("service stopped")
