package engine

import (
	"errors"
	"fmt"
)

// ErrCycleBusy is returned by Tick when the previous tick of the same pair
// has not finished yet. Nothing is fetched or mutated.
var ErrCycleBusy = errors.New("engine: cycle already running")

// FetchError wraps a price feed failure. The cycle that produced it was
// aborted before touching the history.
type FetchError struct {
	Pair string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("engine: fetch %s: %v", e.Pair, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err came from the price feed.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
