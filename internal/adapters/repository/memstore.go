package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/pkg/metrics"
)

// MemoryStore is a mutex-guarded, in-memory Store.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]ProfileRow
	events    map[string]EventRow
	attendees map[string]map[string]struct{} // eventID -> userIDs
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles:  make(map[string]ProfileRow),
		events:    make(map[string]EventRow),
		attendees: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, p ProfileRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = p.clone()
	if err := p.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_profile")
		return err
	}

	s.mu.Lock()
	s.profiles[p.ID] = p
	s.mu.Unlock()
	s.updateCounts()
	return nil
}

func (s *MemoryStore) UpsertEvent(ctx context.Context, e EventRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_event")
		return err
	}
	e.Interests = append([]string(nil), e.Interests...)

	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
	s.updateCounts()
	return nil
}

func (s *MemoryStore) AddAttendee(ctx context.Context, eventID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}
	if _, ok := s.profiles[userID]; !ok {
		return fmt.Errorf("%w: profile %q", ErrNotFound, userID)
	}
	set, ok := s.attendees[eventID]
	if !ok {
		set = make(map[string]struct{})
		s.attendees[eventID] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}
	delete(s.attendees[eventID], userID)
	return nil
}

func (s *MemoryStore) Profile(ctx context.Context, id string) (model.UserForMatching, error) {
	if err := ctx.Err(); err != nil {
		return model.UserForMatching{}, err
	}
	s.mu.RLock()
	p, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.UserForMatching{}, fmt.Errorf("%w: profile %q", ErrNotFound, id)
	}
	return p.ForMatching(s.now()), nil
}

func (s *MemoryStore) Event(ctx context.Context, id string) (model.EventForScoring, error) {
	if err := ctx.Err(); err != nil {
		return model.EventForScoring{}, err
	}
	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.EventForScoring{}, fmt.Errorf("%w: event %q", ErrNotFound, id)
	}
	return e.ForScoring(), nil
}

func (s *MemoryStore) Events(ctx context.Context) ([]model.EventForScoring, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.EventForScoring, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.ForScoring())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CoAttendees(ctx context.Context, eventID, userID string) (model.UserForMatching, []model.UserForMatching, error) {
	if err := ctx.Err(); err != nil {
		return model.UserForMatching{}, nil, err
	}
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return model.UserForMatching{}, nil, fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}
	req, ok := s.profiles[userID]
	if !ok {
		return model.UserForMatching{}, nil, fmt.Errorf("%w: profile %q", ErrNotFound, userID)
	}
	set := s.attendees[eventID]
	if _, joined := set[userID]; !joined {
		return model.UserForMatching{}, nil, fmt.Errorf("%w: %q in %q", ErrNotAttendee, userID, eventID)
	}

	others := make([]model.UserForMatching, 0, len(set))
	for id := range set {
		if id == userID {
			continue
		}
		p, ok := s.profiles[id]
		if !ok {
			continue
		}
		others = append(others, p.ForMatching(now))
	}
	sort.Slice(others, func(i, j int) bool { return others[i].ID < others[j].ID })
	return req.ForMatching(now), others, nil
}

func (s *MemoryStore) Count(_ context.Context) (profiles, events int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), len(s.events)
}

func (s *MemoryStore) updateCounts() {
	p, e := s.Count(context.Background())
	metrics.UpdateRecordCounts(p, e)
}
