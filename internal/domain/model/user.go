// Package model contains domain models passed between layers.
package model

import "strings"

// Gender is a closed category used for buddy gender preferences.
type Gender string

// Known gender categories. GenderAny is the "no preference" sentinel.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
	GenderAny    Gender = "any"
)

// Normalize lower-cases g and maps the empty value to GenderAny.
func (g Gender) Normalize() Gender {
	n := Gender(strings.ToLower(strings.TrimSpace(string(g))))
	if n == "" {
		return GenderAny
	}
	return n
}

// IsAny reports whether g expresses no preference.
func (g Gender) IsAny() bool {
	return g.Normalize() == GenderAny
}

// BuddyPreferences holds a user's buddy matching settings.
type BuddyPreferences struct {
	Enabled         bool   `json:"enabled"`
	PreferredAgeMin *int   `json:"preferred_age_min,omitempty"`
	PreferredAgeMax *int   `json:"preferred_age_max,omitempty"`
	PreferredGender Gender `json:"preferred_gender"`
}

// HasAgeWindow reports whether at least one age bound is declared.
func (p *BuddyPreferences) HasAgeWindow() bool {
	return p != nil && (p.PreferredAgeMin != nil || p.PreferredAgeMax != nil)
}

// AcceptsAge reports whether age falls inside the declared window.
// A missing bound is unbounded on that side.
func (p *BuddyPreferences) AcceptsAge(age int) bool {
	if p == nil {
		return true
	}
	if p.PreferredAgeMin != nil && age < *p.PreferredAgeMin {
		return false
	}
	if p.PreferredAgeMax != nil && age > *p.PreferredAgeMax {
		return false
	}
	return true
}

// Disabled reports whether matching was explicitly switched off.
func (p *BuddyPreferences) Disabled() bool {
	return p != nil && !p.Enabled
}

// UserForMatching is the scorer's view of a user.
type UserForMatching struct {
	ID          string            `json:"id"`
	Gender      *string           `json:"gender,omitempty"`
	Age         *int              `json:"age,omitempty"`
	Interests   []string          `json:"interests"`
	Preferences *BuddyPreferences `json:"preferences,omitempty"`
}

// PotentialMatch is a ranked buddy candidate.
type PotentialMatch struct {
	User               UserForMatching `json:"user"`
	CompatibilityScore float64         `json:"compatibility_score"`
	Reasons            []string        `json:"reasons"`
}

// RankScore returns the value matches are ordered by.
func (m PotentialMatch) RankScore() float64 { return m.CompatibilityScore }

// RankID breaks score ties.
func (m PotentialMatch) RankID() string { return m.User.ID }
