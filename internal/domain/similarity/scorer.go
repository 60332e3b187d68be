package similarity

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

// Scorer bundles a validated weight set. Safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer builds a Scorer, rejecting invalid weights.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, fmt.Errorf("new similarity scorer: %w", err)
	}
	return s, nil
}

// Weights returns the weight set in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Score returns the similarity of cand to ref.
func (s *Scorer) Score(ref, cand model.EventForScoring) float64 {
	return SimilarityScore(ref, cand, s.weights)
}

// Rank returns up to limit candidates most similar to ref.
func (s *Scorer) Rank(ref model.EventForScoring, candidates []model.EventForScoring, limit int) []model.ScoredEvent {
	return RankSimilar(ref, candidates, s.weights, limit)
}
