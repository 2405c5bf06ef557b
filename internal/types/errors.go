package types

import (
	"fmt"
	"strings"
)

// DataUnavailableError is returned when a price source exhausted its retries.
type DataUnavailableError struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable for %s after %d attempt(s): %v", e.Symbol, e.Attempts, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// DeliveryFailedError is returned when the notification endpoint exhausted its retries.
type DeliveryFailedError struct {
	Attempts int
	Err      error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryFailedError) Unwrap() error { return e.Err }

// MisconfiguredError lists the required settings that are missing.
type MisconfiguredError struct {
	Missing []string
}

func (e *MisconfiguredError) Error() string {
	return fmt.Sprintf("misconfigured: %s must be set", strings.Join(e.Missing, " and "))
}
