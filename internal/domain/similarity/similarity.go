// Package similarity recommends events that resemble a reference event by
// shared interest tags, distance and start time.
package similarity

import (
	"math"
	"strings"
	"time"

	"github.com/openoutings/outings/internal/domain/geo"
	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/internal/domain/scoring"
)

// Default weights. They live on their own scale, unrelated to buddy weights.
const (
	DefaultInterestsWeight = 5
	DefaultLocationWeight  = 3
	DefaultTimeWeight      = 2
)

// MissingLocationScore is returned as-is, unscaled by the location weight,
// when either event has no coordinates.
const MissingLocationScore = 0.5

// Distance tiers in kilometres.
const (
	VeryCloseKm = 5.0
	NearbyKm    = 10.0
	AreaKm      = 25.0
)

// Day tiers.
const (
	SameTimeDays  = 7
	SameMonthDays = 30
)

// Reason labels.
const (
	ReasonVeryClose = "very close by"
	ReasonNearby    = "nearby location"
	ReasonInArea    = "in your area"
	ReasonSameTime  = "around the same time"
	ReasonFallback  = "similar event"

	// ReasonSeparator joins reason parts.
	ReasonSeparator = " · "
)

const (
	maxInterestReasons = 2
	scorerName         = "similarity"
	day                = 24 * time.Hour
)

var proximitySteps = []scoring.Step{
	{Max: VeryCloseKm, Factor: 1},
	{Max: NearbyKm, Factor: 0.66},
	{Max: AreaKm, Factor: 0.33},
}

var recencySteps = []scoring.Step{
	{Max: SameTimeDays, Factor: 1},
	{Max: SameMonthDays, Factor: 0.5},
}

// farFutureFactor keeps time proximity contributing something at any distance.
const farFutureFactor = 0.25

// Weights is the maximum contribution of each dimension.
type Weights struct {
	Interests float64 `json:"interests" koanf:"interests"`
	Location  float64 `json:"location" koanf:"location"`
	Time      float64 `json:"time" koanf:"time"`
}

// DefaultWeights returns the 5/3/2 weight set.
func DefaultWeights() Weights {
	return Weights{
		Interests: DefaultInterestsWeight,
		Location:  DefaultLocationWeight,
		Time:      DefaultTimeWeight,
	}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	if err := scoring.CheckWeight(scorerName, "interests", w.Interests); err != nil {
		return err
	}
	if err := scoring.CheckWeight(scorerName, "location", w.Location); err != nil {
		return err
	}
	return scoring.CheckWeight(scorerName, "time", w.Time)
}

// InterestScore is the share of the reference event's tags that the candidate
// also carries, scaled by the interests weight. The denominator is the
// reference's tag count only, so the score is not symmetric.
func InterestScore(ref, cand model.EventForScoring, w Weights) float64 {
	refTags := scoring.UniqueTags(ref.Interests)
	if len(refTags) == 0 {
		return 0
	}
	shared := len(scoring.SharedTags(refTags, cand.Interests))
	return float64(shared) / float64(len(refTags)) * w.Interests
}

// ProximityFactor maps an unrounded distance onto the location tiers.
func ProximityFactor(km float64) float64 {
	return scoring.StepFactor(proximitySteps, km, 0)
}

// LocationScore scores the distance between the two events.
func LocationScore(ref, cand model.EventForScoring, w Weights) float64 {
	km, ok := distance(ref, cand)
	if !ok {
		return MissingLocationScore
	}
	return ProximityFactor(km) * w.Location
}

// DaysApart is the whole number of days between the two start instants.
func DaysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d / day)
}

// RecencyFactor maps a day difference onto the time tiers.
func RecencyFactor(days int) float64 {
	return scoring.StepFactor(recencySteps, float64(days), farFutureFactor)
}

// TimeScore scores how close the two events start.
func TimeScore(ref, cand model.EventForScoring, w Weights) float64 {
	return RecencyFactor(DaysApart(ref.StartsAt, cand.StartsAt)) * w.Time
}

// SimilarityScore sums the three terms. The total is not capped.
func SimilarityScore(ref, cand model.EventForScoring, w Weights) float64 {
	return InterestScore(ref, cand, w) + LocationScore(ref, cand, w) + TimeScore(ref, cand, w)
}

// SimilarityReason explains why cand was recommended for ref.
func SimilarityReason(ref, cand model.EventForScoring) string {
	var parts []string

	shared := scoring.SharedTags(ref.Interests, cand.Interests)
	if len(shared) > maxInterestReasons {
		shared = shared[:maxInterestReasons]
	}
	if len(shared) > 0 {
		parts = append(parts, strings.Join(shared, ", "))
	}

	if km, ok := distance(ref, cand); ok {
		switch {
		case km <= VeryCloseKm:
			parts = append(parts, ReasonVeryClose)
		case km <= NearbyKm:
			parts = append(parts, ReasonNearby)
		case km <= AreaKm:
			parts = append(parts, ReasonInArea)
		}
	}

	if DaysApart(ref.StartsAt, cand.StartsAt) <= SameTimeDays {
		parts = append(parts, ReasonSameTime)
	}

	if len(parts) == 0 {
		return ReasonFallback
	}
	return strings.Join(parts, ReasonSeparator)
}

// RankSimilar scores candidates against ref, best first, ties by id. The
// reference itself is skipped. limit <= 0 means no limit.
func RankSimilar(ref model.EventForScoring, candidates []model.EventForScoring, w Weights, limit int) []model.ScoredEvent {
	out := make([]model.ScoredEvent, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == ref.ID {
			continue
		}
		se := model.ScoredEvent{
			Event:           c,
			SimilarityScore: SimilarityScore(ref, c, w),
			Reason:          SimilarityReason(ref, c),
		}
		if km, ok := distance(ref, c); ok {
			d := geo.TravelDistanceKm(*ref.Lat, *ref.Lng, *c.Lat, *c.Lng)
			se.DistanceKm = &d
			se.DistanceLabel = geo.FormatDistance(km)
		}
		out = append(out, se)
	}

	scoring.SortRanked(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func distance(ref, cand model.EventForScoring) (float64, bool) {
	km, ok := geo.Distance(geo.Point{Lat: ref.Lat, Lng: ref.Lng}, geo.Point{Lat: cand.Lat, Lng: cand.Lng})
	if !ok || math.IsNaN(km) {
		return 0, false
	}
	return km, true
}
