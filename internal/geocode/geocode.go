// Package geocode resolves coordinates to human-readable addresses.
//
// The Resolver interface is the seam to the external service. Nominatim is the
// production adapter; Breaker adds circuit breaking around any Resolver, and
// Pool moves the slow, blocking lookups off the caller's goroutine.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukydev/geolock/internal/models"
)

// Resolver maps a coordinate to an address.
type Resolver interface {
	Reverse(ctx context.Context, c models.Coordinate) (models.ResolvedAddress, error)
}

// Kind classifies a resolution failure.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindRateLimited Kind = "rate_limited"
	KindNoResult    Kind = "no_result"
	KindUnavailable Kind = "unavailable"
)

// ErrResolution matches every *ResolutionError via errors.Is.
var ErrResolution = errors.New("resolution failed")

// ResolutionError reports that a coordinate could not be resolved.
type ResolutionError struct {
	Kind       Kind
	Coordinate models.Coordinate
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Coordinate, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Coordinate, e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrResolution) true for any ResolutionError.
func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// KindOf returns the kind of a resolution failure, or "" for other errors.
func KindOf(err error) Kind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
