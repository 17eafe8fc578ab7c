// Package geotrack derives distance and speed statistics from recorded GPS tracks.
package geotrack

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrInsufficientData indicates the track cannot be analysed.
var ErrInsufficientData = errors.New("insufficient gps data")

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0088

var world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// Point is a single GPS fix.
type Point struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary holds the statistics of an analysed track.
type Summary struct {
	DistanceKm      float64       `json:"distance_km"`
	Duration        time.Duration `json:"duration"`
	AverageSpeedKmh float64       `json:"average_speed_kmh"`
	MaxSpeedKmh     float64       `json:"max_speed_kmh"`
	Points          int           `json:"points"`
}

// DurationHours returns the track duration in hours.
func (s Summary) DurationHours() float64 {
	return s.Duration.Hours()
}

// Analyze computes the summary of an ordered track. Timestamps must be strictly increasing.
func Analyze(points []Point) (Summary, error) {
	if len(points) < 2 {
		return Summary{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(points))
	}

	for i, p := range points {
		if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) || !world.Contains(p.toOrb()) {
			return Summary{}, fmt.Errorf("%w: point %d has invalid coordinates", ErrInsufficientData, i)
		}
	}

	var distance, maxSpeed float64
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		elapsed := cur.Timestamp.Sub(prev.Timestamp)
		if elapsed <= 0 {
			return Summary{}, fmt.Errorf("%w: timestamps not increasing at point %d", ErrInsufficientData, i)
		}

		segment := Haversine(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		distance += segment
		if speed := segment / elapsed.Hours(); speed > maxSpeed {
			maxSpeed = speed
		}
	}

	duration := points[len(points)-1].Timestamp.Sub(points[0].Timestamp)

	return Summary{
		DistanceKm:      distance,
		Duration:        duration,
		AverageSpeedKmh: distance / duration.Hours(),
		MaxSpeedKmh:     maxSpeed,
		Points:          len(points),
	}, nil
}

// Haversine returns the great-circle distance in kilometres between two coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	// orb measures on the equatorial radius; rescale to the mean radius.
	meters := geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
	return meters / orb.EarthRadius * EarthRadiusKm
}

func (p Point) toOrb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
