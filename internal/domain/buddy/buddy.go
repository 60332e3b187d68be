// Package buddy ranks co-attendees of an event as potential buddies for a
// requesting user.
//
// Every function here is pure: inputs are never mutated and missing data
// degrades to a neutral score instead of an error.
package buddy

import (
	"math"
	"strings"

	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/internal/domain/scoring"
)

// Default weights; they sum to 100.
const (
	DefaultInterestsWeight        = 50
	DefaultAgeCompatibilityWeight = 30
	DefaultGenderPreferenceWeight = 20
)

// Tunable neutral factors. They were tuned by hand and carry no deeper
// meaning than "do not punish incomplete profiles".
const (
	// UnknownAgeFactor applies when either age is unknown.
	UnknownAgeFactor = 0.5
	// NoAgePreferenceFactor applies when ages are known but nobody declared a window.
	NoAgePreferenceFactor = 0.7
)

// Reason strings.
const (
	ReasonSimilarAge       = "similar age"
	ReasonGenderPreference = "matches your gender preference"
	ReasonFallback         = "potential match"
)

const (
	similarAgeYears    = 5
	maxInterestReasons = 3
	scorerName         = "buddy"
)

// Weights is the maximum contribution of each dimension to the total score.
type Weights struct {
	Interests        float64 `json:"interests" koanf:"interests"`
	AgeCompatibility float64 `json:"age_compatibility" koanf:"age"`
	GenderPreference float64 `json:"gender_preference" koanf:"gender"`
}

// DefaultWeights returns the 50/30/20 weight set.
func DefaultWeights() Weights {
	return Weights{
		Interests:        DefaultInterestsWeight,
		AgeCompatibility: DefaultAgeCompatibilityWeight,
		GenderPreference: DefaultGenderPreferenceWeight,
	}
}

// Validate rejects negative or non-finite weights with an *scoring.InvalidWeightError.
func (w Weights) Validate() error {
	if err := scoring.CheckWeight(scorerName, "interests", w.Interests); err != nil {
		return err
	}
	if err := scoring.CheckWeight(scorerName, "age_compatibility", w.AgeCompatibility); err != nil {
		return err
	}
	return scoring.CheckWeight(scorerName, "gender_preference", w.GenderPreference)
}

// Max is the highest total a candidate can reach under w.
func (w Weights) Max() float64 {
	return w.Interests + w.AgeCompatibility + w.GenderPreference
}

// InterestScore is the Jaccard similarity of the two interest sets scaled by
// the interests weight. Two users without declared interests score 0.
func InterestScore(a, b []string, w Weights) float64 {
	return scoring.Jaccard(a, b) * w.Interests
}

// AgeScore checks each side's declared age window against the other's age.
func AgeScore(u1, u2 model.UserForMatching, w Weights) float64 {
	if u1.Age == nil || u2.Age == nil {
		return w.AgeCompatibility * UnknownAgeFactor
	}

	var checks, passed int
	if u1.Preferences.HasAgeWindow() {
		checks++
		if u1.Preferences.AcceptsAge(*u2.Age) {
			passed++
		}
	}
	if u2.Preferences.HasAgeWindow() {
		checks++
		if u2.Preferences.AcceptsAge(*u1.Age) {
			passed++
		}
	}

	if checks == 0 {
		return w.AgeCompatibility * NoAgePreferenceFactor
	}
	return float64(passed) / float64(checks) * w.AgeCompatibility
}

// GenderScore checks each side's preferred gender against the other's gender.
// A side preferring "any", or facing an unknown gender, performs no check.
// With no checks at all the full weight is granted.
func GenderScore(u1, u2 model.UserForMatching, w Weights) float64 {
	var checks, passed int
	if applies, ok := genderCheck(u1.Preferences, u2.Gender); applies {
		checks++
		if ok {
			passed++
		}
	}
	if applies, ok := genderCheck(u2.Preferences, u1.Gender); applies {
		checks++
		if ok {
			passed++
		}
	}

	if checks == 0 {
		return w.GenderPreference
	}
	return float64(passed) / float64(checks) * w.GenderPreference
}

// genderCheck reports whether pref constrains gender, and if so whether gender satisfies it.
func genderCheck(pref *model.BuddyPreferences, gender *string) (applies, ok bool) {
	if pref == nil || pref.PreferredGender.IsAny() || gender == nil {
		return false, false
	}
	g := strings.TrimSpace(*gender)
	if g == "" {
		return false, false
	}
	return true, strings.EqualFold(string(pref.PreferredGender.Normalize()), g)
}

// CompatibilityScore sums the interest, age and gender terms.
func CompatibilityScore(u1, u2 model.UserForMatching, w Weights) float64 {
	return InterestScore(u1.Interests, u2.Interests, w) +
		AgeScore(u1, u2, w) +
		GenderScore(u1, u2, w)
}

// Eligible reports whether candidate may be shown to requester at all.
func Eligible(requester, candidate model.UserForMatching) bool {
	if requester.Preferences.Disabled() || candidate.Preferences.Disabled() {
		return false
	}
	if candidate.Preferences.HasAgeWindow() && requester.Age != nil &&
		!candidate.Preferences.AcceptsAge(*requester.Age) {
		return false
	}
	if requester.Preferences.HasAgeWindow() && candidate.Age != nil &&
		!requester.Preferences.AcceptsAge(*candidate.Age) {
		return false
	}
	return true
}

// FilterByPreferences keeps the candidates for which Eligible holds.
func FilterByPreferences(requester model.UserForMatching, candidates []model.UserForMatching) []model.UserForMatching {
	out := make([]model.UserForMatching, 0, len(candidates))
	for _, c := range candidates {
		if Eligible(requester, c) {
			out = append(out, c)
		}
	}
	return out
}

// Reasons explains a match in a few short strings.
func Reasons(requester, candidate model.UserForMatching) []string {
	var reasons []string

	shared := scoring.SharedTags(requester.Interests, candidate.Interests)
	if len(shared) > maxInterestReasons {
		shared = shared[:maxInterestReasons]
	}
	reasons = append(reasons, shared...)

	if requester.Age != nil && candidate.Age != nil &&
		math.Abs(float64(*requester.Age-*candidate.Age)) <= similarAgeYears {
		reasons = append(reasons, ReasonSimilarAge)
	}

	if applies, ok := genderCheck(requester.Preferences, candidate.Gender); applies && ok {
		reasons = append(reasons, ReasonGenderPreference)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonFallback)
	}
	return reasons
}

// FindPotentialMatches drops the requester and ineligible candidates, scores
// the rest and returns them best first. Ties are ordered by user id.
func FindPotentialMatches(requester model.UserForMatching, candidates []model.UserForMatching, w Weights) []model.PotentialMatch {
	pool := make([]model.UserForMatching, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != requester.ID {
			pool = append(pool, c)
		}
	}

	eligible := FilterByPreferences(requester, pool)
	matches := make([]model.PotentialMatch, 0, len(eligible))
	for _, c := range eligible {
		matches = append(matches, model.PotentialMatch{
			User:               c,
			CompatibilityScore: CompatibilityScore(requester, c, w),
			Reasons:            Reasons(requester, c),
		})
	}

	scoring.SortRanked(matches)
	return matches
}
