package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidWeight is the sentinel kind for rejected scorer weights.
var ErrInvalidWeight = errors.New("invalid weight")

// InvalidWeightError describes which weight was rejected.
type InvalidWeightError struct {
	Scorer string
	Field  string
	Value  float64
}

func (e *InvalidWeightError) Error() string {
	return fmt.Sprintf("%s: weight %q must be a finite non-negative number, got %v", e.Scorer, e.Field, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidWeight.
func (e *InvalidWeightError) Unwrap() error { return ErrInvalidWeight }

// CheckWeight returns an *InvalidWeightError when value is negative, NaN or infinite.
func CheckWeight(scorer, field string, value float64) error {
	if validWeight(value) {
		return nil
	}
	return &InvalidWeightError{Scorer: scorer, Field: field, Value: value}
}
