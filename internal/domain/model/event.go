// Package model contains domain models passed between layers.
package model

import "time"

// EventForScoring is the similarity scorer's view of an event.
type EventForScoring struct {
	ID        string    `json:"id"`
	Interests []string  `json:"interests"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
}

// HasLocation reports whether both coordinates are set.
func (e EventForScoring) HasLocation() bool {
	return e.Lat != nil && e.Lng != nil
}

// ScoredEvent is a ranked event recommendation.
type ScoredEvent struct {
	Event           EventForScoring `json:"event"`
	SimilarityScore float64         `json:"similarity_score"`
	Reason          string          `json:"reason"`
	DistanceKm      *float64        `json:"distance_km,omitempty"` // nil unless both events have coordinates
	DistanceLabel   string          `json:"distance_label,omitempty"`
}

// RefreshJob asks the workers to recompute recommendations for an event.
type RefreshJob struct {
	JobID     string    // unique id, for logs
	EventID   string    // event whose similar list is rebuilt; also the dedupe key
	Requested time.Time // enqueue time, for latency metrics
}

// RankScore returns the value recommendations are ordered by.
func (s ScoredEvent) RankScore() float64 { return s.SimilarityScore }

// RankID breaks score ties.
func (s ScoredEvent) RankID() string { return s.Event.ID }
