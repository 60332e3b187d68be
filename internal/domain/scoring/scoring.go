// Package scoring holds the primitives shared by the buddy and event
// similarity scorers: interest-set arithmetic, threshold tiers and weight
// validation.
package scoring

import (
	"math"
	"sort"
)

// UniqueTags returns tags with duplicates removed, keeping first-seen order.
func UniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SharedTags returns the tags present in both a and b, in a's order.
func SharedTags(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	var out []string
	for _, t := range UniqueTags(a) {
		if _, ok := inB[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Empty input on either side yields 0.
func Jaccard(a, b []string) float64 {
	ua, ub := UniqueTags(a), UniqueTags(b)
	if len(ua) == 0 || len(ub) == 0 {
		return 0
	}
	shared := len(SharedTags(ua, ub))
	union := len(ua) + len(ub) - shared
	return float64(shared) / float64(union)
}

// Step maps every value up to and including Max onto Factor.
type Step struct {
	Max    float64
	Factor float64
}

// StepFactor returns the factor of the first step whose Max is >= v.
// Steps must be sorted by Max ascending; values past the last step get beyond.
func StepFactor(steps []Step, v, beyond float64) float64 {
	for _, s := range steps {
		if v <= s.Max {
			return s.Factor
		}
	}
	return beyond
}

// Ranked is implemented by scored results that can be ordered.
type Ranked interface {
	RankScore() float64
	RankID() string
}

// SortRanked orders items by score descending, then id ascending.
func SortRanked[T Ranked](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].RankScore(), items[j].RankScore()
		if si != sj {
			return si > sj
		}
		return items[i].RankID() < items[j].RankID()
	})
}

// validWeight reports whether w is a finite, non-negative weight.
func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}
