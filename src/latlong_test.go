package jt9decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridSquareEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		grid      string
		expectErr bool
		minLat    float64
		maxLat    float64
		minLon    float64
		maxLon    float64
	}{
		{
			name:      "2 character grid",
			grid:      "BL",
			expectErr: false,
			minLat:    15.0,
			maxLat:    35.0,
			minLon:    -160.0,
			maxLon:    -140.0,
		},
		{
			name:      "4 character grid",
			grid:      "BL11",
			expectErr: false,
			minLat:    20.49,
			maxLat:    21.51,
			minLon:    -157.01,
			maxLon:    -156.99,
		},
		{
			name:      "6 character grid",
			grid:      "BL11BH",
			expectErr: false,
			minLat:    21.31,
			maxLat:    21.32,
			minLon:    -157.88,
			maxLon:    -157.87,
		},
		{
			name:      "lowercase should work",
			grid:      "bl11bh",
			expectErr: false,
			minLat:    21.31,
			maxLat:    21.32,
			minLon:    -157.88,
			maxLon:    -157.87,
		},
		{ //nolint: exhaustruct
			name:      "odd number of characters fails",
			grid:      "BL1",
			expectErr: true,
		},
		{ //nolint: exhaustruct
			name:      "empty string fails",
			grid:      "",
			expectErr: true,
		},
		{ //nolint: exhaustruct
			name:      "too many pairs fails",
			grid:      "BL11BH16OO66XX",
			expectErr: true,
		},
		{ //nolint: exhaustruct
			name:      "invalid first character",
			grid:      "ZZ11",
			expectErr: true,
		},
		{ //nolint: exhaustruct
			name:      "invalid second pair character",
			grid:      "BLA1",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ll, err := GridToLatLng(tt.grid)

			if tt.expectErr {
				assert.Error(t, err, "should return error for invalid input")
			} else {
				require.NoError(t, err, "should not return error for valid input")
				assert.GreaterOrEqual(t, ll.Lat.Degrees(), tt.minLat, "latitude should be >= min")
				assert.LessOrEqual(t, ll.Lat.Degrees(), tt.maxLat, "latitude should be <= max")
				assert.GreaterOrEqual(t, ll.Lng.Degrees(), tt.minLon, "longitude should be >= min")
				assert.LessOrEqual(t, ll.Lng.Degrees(), tt.maxLon, "longitude should be <= max")
			}
		})
	}
}

func TestIsGrid4(t *testing.T) {
	for _, s := range []string{"FN20", "IL18", "AA00", "RR99", "IO91"} {
		assert.True(t, IsGrid4(s), s)
	}

	for _, s := range []string{"RR73", "FN2", "FN200", "SN20", "fn20", "F N2", "-12", "73", "R-07"} {
		assert.False(t, IsGrid4(s), s)
	}
}

func TestDistanceAndBearing(t *testing.T) {
	var fn20, _ = GridToLatLng("FN20")
	var io91, _ = GridToLatLng("IO91")
	var il18, _ = GridToLatLng("IL18")

	assert.InDelta(t, 40.5, fn20.Lat.Degrees(), 1e-9)
	assert.InDelta(t, -75.0, fn20.Lng.Degrees(), 1e-9)

	assert.InDelta(t, 5593.3, DistanceKm(fn20, io91), 1.0)
	assert.InDelta(t, 51.05, BearingDeg(fn20, io91), 0.1)

	assert.InDelta(t, 5381.1, DistanceKm(fn20, il18), 1.0)
	assert.InDelta(t, 85.37, BearingDeg(fn20, il18), 0.1)

	assert.InDelta(t, 0.0, DistanceKm(fn20, fn20), 1e-6)

	// Back the other way is roughly west.
	var back = BearingDeg(il18, fn20)
	assert.Greater(t, back, 270.0)
	assert.Less(t, back, 330.0)
}
