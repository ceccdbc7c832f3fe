package trading

import (
	"errors"
	"fmt"
)

var (
	// ErrTickInFlight is returned when a tick arrives while the previous
	// one is still running. The tick is dropped.
	ErrTickInFlight = errors.New("tick already in flight")

	// ErrMarketClosed is returned when a tick is skipped because the
	// market is closed. It is not a failure.
	ErrMarketClosed = errors.New("market closed")

	// ErrStopped is returned when a fetch resolved after the loop stopped;
	// its result is discarded.
	ErrStopped = errors.New("loop stopped")
)

// FetchError wraps a transient collaborator failure. The tick that hit it
// returns to idle; the next tick retries naturally.
type FetchError struct {
	Op  string // history, latest, clock, account, order
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
