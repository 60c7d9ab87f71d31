package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches every InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("scoring: invalid input")

// InvalidInputError reports a malformed listing. It is always a caller bug
// and must not be retried.
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "listing" {
		return "scoring: invalid listing: " + e.Reason
	}
	return fmt.Sprintf("scoring: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
