// Package parser extracts coordinates from the free-form status messages the
// tracked target posts.
//
// A location message carries the marker "Location:" followed by comma separated
// key=value components, for example:
//
//	Status update. Location: Latitude=40.7128, Longitude=-74.0060
//
// Only the Latitude and Longitude keys are interpreted; everything else is ignored.
package parser

import (
	"strconv"
	"strings"

	"github.com/ukydev/geolock/internal/models"
)

const (
	// Marker identifies a location message. Matching is case-sensitive.
	Marker = "Location:"

	keyLatitude  = "Latitude"
	keyLongitude = "Longitude"
)

// ContainsMarker reports whether raw looks like a location message.
func ContainsMarker(raw string) bool {
	return strings.Contains(raw, Marker)
}

// Parse returns the coordinate carried by raw. The boolean is false when raw is
// not a location message or when either component is missing or not numeric.
// Values are not range checked.
func Parse(raw string) (models.Coordinate, bool) {
	idx := strings.Index(raw, Marker)
	if idx < 0 {
		return models.Coordinate{}, false
	}
	payload := raw[idx+len(Marker):]

	var (
		lat, lon         float64
		haveLat, haveLon bool
	)
	for _, component := range strings.Split(payload, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(component), "=")
		if !ok {
			continue
		}
		switch key {
		case keyLatitude:
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return models.Coordinate{}, false
			}
			lat, haveLat = v, true
		case keyLongitude:
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return models.Coordinate{}, false
			}
			lon, haveLon = v, true
		}
	}
	if !haveLat || !haveLon {
		return models.Coordinate{}, false
	}
	return models.NewCoordinate(lat, lon), true
}
