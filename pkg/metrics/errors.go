package metrics

import (
	"errors"
)

// ErrInvalidOption is returned by Configure for unusable options.
var ErrInvalidOption = errors.New("invalid metrics option")
