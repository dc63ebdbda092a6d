package scenario

import (
	"errors"
	"fmt"

	"github.com/san-kum/galaxysim/internal/config"
)

// ErrSamplingExhausted indicates a rejection sampler hit MaxAttempts without
// accepting a point.
var ErrSamplingExhausted = errors.New("scenario: rejection sampling exhausted")

// SamplingError reports the slot whose sampler gave up.
type SamplingError struct {
	Kind     config.Kind
	Slot     int
	Attempts int
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("scenario: %s slot %d: no point accepted after %d draws", e.Kind, e.Slot, e.Attempts)
}

func (e *SamplingError) Unwrap() error {
	return ErrSamplingExhausted
}
