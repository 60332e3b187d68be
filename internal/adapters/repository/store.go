// Package repository stores profiles, events and attendance and maps them
// onto the scorer input types.
package repository

import (
	"context"

	"github.com/openoutings/outings/internal/domain/model"
)

// Store provides read/write access to the records the scorers consume.
type Store interface {
	// UpsertProfile validates and stores a profile. Invalid rows fail with
	// ErrInvalidRecord.
	UpsertProfile(ctx context.Context, p ProfileRow) error
	// UpsertEvent validates and stores an event.
	UpsertEvent(ctx context.Context, e EventRow) error

	// AddAttendee records that userID joined eventID. Both must exist.
	AddAttendee(ctx context.Context, eventID, userID string) error
	// RemoveAttendee is a no-op when the user had not joined.
	RemoveAttendee(ctx context.Context, eventID, userID string) error

	Profile(ctx context.Context, id string) (model.UserForMatching, error)
	Event(ctx context.Context, id string) (model.EventForScoring, error)
	// Events returns every stored event ordered by id.
	Events(ctx context.Context) ([]model.EventForScoring, error)

	// CoAttendees returns the requester and the other attendees of eventID
	// that have a profile, ordered by id. It fails with ErrNotAttendee if
	// the requester has not joined the event.
	CoAttendees(ctx context.Context, eventID, userID string) (model.UserForMatching, []model.UserForMatching, error)

	// Count returns the number of stored profiles and events.
	Count(ctx context.Context) (profiles, events int)
}
