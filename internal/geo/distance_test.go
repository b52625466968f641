package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_IdenticalPointsIsZero(t *testing.T) {
	points := []Point{
		{Lat: 9.0579, Lon: 7.4951},
		{Lat: 90, Lon: 0},
		{Lat: -90, Lon: 180},
		{Lat: 0, Lon: -180},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, Distance(p.Lat, p.Lon, p.Lat, p.Lon))
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 9.0579, Lon: 7.4951}, {Lat: 9.0580, Lon: 7.4952}},
		{{Lat: 9.0579, Lon: 7.4951}, {Lat: 9.20, Lon: 7.70}},
		{{Lat: 55.75, Lon: 37.61}, {Lat: -33.86, Lon: 151.21}},
		{{Lat: 89.9, Lon: 10}, {Lat: -89.9, Lon: -170}},
	}
	for _, pair := range pairs {
		ab := pair[0].DistanceTo(pair[1])
		ba := pair[1].DistanceTo(pair[0])
		assert.InDelta(t, ab, ba, 1e-6)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
		delta    float64
	}{
		{
			name:     "abuja neighbours",
			a:        Point{Lat: 9.0579, Lon: 7.4951},
			b:        Point{Lat: 9.0580, Lon: 7.4952},
			expected: 15.6,
			delta:    0.5,
		},
		{
			name:     "abuja far away",
			a:        Point{Lat: 9.0579, Lon: 7.4951},
			b:        Point{Lat: 9.20, Lon: 7.70},
			expected: 27500,
			delta:    500,
		},
		{
			name:     "one degree of longitude on equator",
			a:        Point{Lat: 0, Lon: 0},
			b:        Point{Lat: 0, Lon: 1},
			expected: 111195,
			delta:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.DistanceTo(tt.b), tt.delta)
		})
	}
}

func TestDistance_AntipodalAndPolarAreStable(t *testing.T) {
	halfCircumference := math.Pi * EarthRadiusMeters

	d := Distance(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, halfCircumference, d, 1)

	d = Distance(90, 0, -90, 0)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, halfCircumference, d, 1)

	d = Distance(90, 0, 90, 123)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestDistance_MonotonicWithSeparation(t *testing.T) {
	prev := 0.0
	for lon := 0.5; lon <= 180; lon += 0.5 {
		d := Distance(0, 0, 0, lon)
		assert.Greater(t, d, prev)
		prev = d
	}
}
