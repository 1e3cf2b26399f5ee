package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/ukydev/geolock/internal/models"
)

type fix struct {
	coord models.Coordinate
	at    time.Time
}

// Store holds the process-wide current coordinate. Replace swaps the whole
// value atomically, so readers never observe a latitude from one fix paired with
// the longitude of another. One writer, any number of readers.
type Store struct {
	current atomic.Pointer[fix]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the latest coordinate, if any has been stored yet.
func (s *Store) Current() (models.Coordinate, bool) {
	f := s.current.Load()
	if f == nil {
		return models.Coordinate{}, false
	}
	return f.coord, true
}

// Replace publishes c as the current coordinate.
func (s *Store) Replace(c models.Coordinate) {
	s.current.Store(&fix{coord: c, at: time.Now().UTC()})
}

// Clear drops the current coordinate. Readers see none until the next Replace.
func (s *Store) Clear() {
	s.current.Store(nil)
}

// UpdatedAt returns when the current coordinate was stored, or the zero time.
func (s *Store) UpdatedAt() time.Time {
	f := s.current.Load()
	if f == nil {
		return time.Time{}
	}
	return f.at
}
