// Package fetcher retrieves the raw status messages the tracked target posts
// to its remote channel.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukydev/geolock/internal/models"
)

// ErrFetch matches every *FetchError via errors.Is.
var ErrFetch = errors.New("fetch failed")

// Fetcher returns the most recent messages of a channel, newest first.
// An empty result is not an error.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Message, error)
}

// FetchError reports a network, auth or API failure talking to the message source.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: fetch failed with status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("%s: fetch failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) true for any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
