package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/geolock/internal/models"
)

func TestParse_WithoutMarker(t *testing.T) {
	inputs := []string{
		"",
		"hello there",
		"Latitude=40.7128, Longitude=-74.0060",
		"location: Latitude=40.7128, Longitude=-74.0060",
		"LOCATION: Latitude=1, Longitude=2",
	}
	for _, raw := range inputs {
		coord, ok := Parse(raw)
		assert.False(t, ok, "input %q", raw)
		assert.Equal(t, models.Coordinate{}, coord)
		assert.False(t, ContainsMarker(raw))
	}
}

func TestParse_ValidMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		lat  float64
		lon  float64
	}{
		{
			name: "status update",
			raw:  "Status update. Location: Latitude=40.7128, Longitude=-74.0060",
			lat:  40.7128,
			lon:  -74.0060,
		},
		{
			name: "reversed order",
			raw:  "Location: Longitude=151.2093, Latitude=-33.8688",
			lat:  -33.8688,
			lon:  151.2093,
		},
		{
			name: "extra components",
			raw:  "Location: Accuracy=12, Latitude=51.5074, Battery=88%, Longitude=-0.1278, Source=gps",
			lat:  51.5074,
			lon:  -0.1278,
		},
		{
			name: "no spaces",
			raw:  "Location:Latitude=1.5,Longitude=2.25",
			lat:  1.5,
			lon:  2.25,
		},
		{
			name: "out of range passes through",
			raw:  "Location: Latitude=123.4, Longitude=-999",
			lat:  123.4,
			lon:  -999,
		},
		{
			name: "duplicate key keeps the last value",
			raw:  "Location: Latitude=1, Longitude=2, Latitude=3",
			lat:  3,
			lon:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, ok := Parse(tt.raw)
			assert.True(t, ok)
			assert.Equal(t, tt.lat, coord.Latitude)
			assert.Equal(t, tt.lon, coord.Longitude)
		})
	}
}

func TestParse_IncompleteMessages(t *testing.T) {
	inputs := []string{
		"Location: Longitude=-74.0060",
		"Location: Latitude=40.7128",
		"Location: Latitude=north, Longitude=-74.0060",
		"Location: Latitude=40.7128, Longitude=",
		"Location: latitude=40.7128, longitude=-74.0060",
		"Location:",
		"Location: Lat=40.7128, Lon=-74.0060",
	}
	for _, raw := range inputs {
		_, ok := Parse(raw)
		assert.False(t, ok, "input %q", raw)
		assert.True(t, ContainsMarker(raw))
	}
}

func TestParse_ScenarioLine(t *testing.T) {
	coord, ok := Parse("Status update. Location: Latitude=40.7128, Longitude=-74.0060")
	assert.True(t, ok)
	assert.Equal(t, "Latitude=40.7128, Longitude=-74.006", coord.String())
}
