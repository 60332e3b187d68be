package buddy

import (
	"fmt"

	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/internal/domain/scoring"
)

// ErrInvalidWeight is returned by NewScorer for a negative or non-finite weight.
var ErrInvalidWeight = scoring.ErrInvalidWeight

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights replaces the default weight set.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// Scorer bundles a validated weight set with the package functions.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer builds a Scorer. It fails if any weight is negative or not finite.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, fmt.Errorf("new buddy scorer: %w", err)
	}
	return s, nil
}

// Weights returns the weight set in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Compatibility scores u2 for u1.
func (s *Scorer) Compatibility(u1, u2 model.UserForMatching) float64 {
	return CompatibilityScore(u1, u2, s.weights)
}

// FindPotentialMatches ranks candidates for requester.
func (s *Scorer) FindPotentialMatches(requester model.UserForMatching, candidates []model.UserForMatching) []model.PotentialMatch {
	return FindPotentialMatches(requester, candidates, s.weights)
}
