package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openoutings/outings/internal/adapters/mq/queue"
	"github.com/openoutings/outings/internal/adapters/repository"
	service "github.com/openoutings/outings/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("backpressure")
)

// NewKind reports a failure of op that has no further cause.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind classifies err under kind: "op: kind: err".
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Wrap prefixes err with op.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps an error to the status code and code string sent to clients.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidRecord):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotAttendee):
		return http.StatusForbidden, "not_attendee"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
