package models

import (
	"strconv"
	"time"
)

// Coordinate represents the last-known position of the tracked target.
// Values are immutable once constructed; a new fix replaces the whole value.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate creates a coordinate from a latitude/longitude pair.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Latitude: lat, Longitude: lon}
}

// Valid reports whether both values fall inside the geographic range.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String renders the coordinate in the broadcast line format.
func (c Coordinate) String() string {
	return "Latitude=" + formatDegrees(c.Latitude) + ", Longitude=" + formatDegrees(c.Longitude)
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ResolvedAddress is a human-readable address derived from a coordinate.
type ResolvedAddress struct {
	Address    string     `json:"address"`
	Coordinate Coordinate `json:"coordinate"`
	ResolvedAt time.Time  `json:"resolved_at"`
}
