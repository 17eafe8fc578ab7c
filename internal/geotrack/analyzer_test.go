package geotrack

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeRejectsSinglePoint(t *testing.T) {
	_, err := Analyze([]Point{{Latitude: 12.97, Longitude: 77.59, Timestamp: time.Now()}})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeRejectsEmptyTrack(t *testing.T) {
	_, err := Analyze(nil)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeRejectsNonMonotonicTimestamps(t *testing.T) {
	start := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	points := []Point{
		{Latitude: 0, Longitude: 0, Timestamp: start},
		{Latitude: 0, Longitude: 0.01, Timestamp: start.Add(2 * time.Minute)},
		{Latitude: 0, Longitude: 0.02, Timestamp: start.Add(time.Minute)},
	}

	_, err := Analyze(points)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeRejectsDuplicateTimestamps(t *testing.T) {
	start := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	points := []Point{
		{Latitude: 0, Longitude: 0, Timestamp: start},
		{Latitude: 0, Longitude: 0.01, Timestamp: start},
	}

	_, err := Analyze(points)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeRejectsInvalidCoordinates(t *testing.T) {
	start := time.Now()
	points := []Point{
		{Latitude: 91, Longitude: 0, Timestamp: start},
		{Latitude: 0, Longitude: 0, Timestamp: start.Add(time.Minute)},
	}

	_, err := Analyze(points)
	require.ErrorIs(t, err, ErrInsufficientData)

	points[0] = Point{Latitude: 0, Longitude: -180.5, Timestamp: start}
	_, err = Analyze(points)
	require.ErrorIs(t, err, ErrInsufficientData)

	points[0] = Point{Latitude: math.NaN(), Longitude: 0, Timestamp: start}
	_, err = Analyze(points)
	require.ErrorIs(t, err, ErrInsufficientData)

	points[0] = Point{Latitude: -90, Longitude: 180, Timestamp: start}
	_, err = Analyze(points)
	require.NoError(t, err)
}

func TestAnalyzeComputesSummary(t *testing.T) {
	start := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	// One degree of longitude on the equator is ~111.2 km; 0.01 deg is ~1.112 km.
	points := []Point{
		{Latitude: 0, Longitude: 0, Timestamp: start},
		{Latitude: 0, Longitude: 0.01, Timestamp: start.Add(6 * time.Minute)},
		{Latitude: 0, Longitude: 0.02, Timestamp: start.Add(9 * time.Minute)},
	}

	summary, err := Analyze(points)
	require.NoError(t, err)

	segment := Haversine(0, 0, 0, 0.01)
	require.InDelta(t, 1.112, segment, 0.001)
	require.InDelta(t, 2*segment, summary.DistanceKm, 1e-9)
	require.Equal(t, 9*time.Minute, summary.Duration)
	require.InDelta(t, 2*segment/0.15, summary.AverageSpeedKmh, 1e-6)
	require.InDelta(t, segment/0.05, summary.MaxSpeedKmh, 1e-6)
	require.Equal(t, 3, summary.Points)
	require.InDelta(t, 0.15, summary.DurationHours(), 1e-9)
}

func TestHaversineIsSymmetric(t *testing.T) {
	d1 := Haversine(12.9716, 77.5946, 13.0827, 80.2707)
	d2 := Haversine(13.0827, 80.2707, 12.9716, 77.5946)
	require.InDelta(t, d1, d2, 1e-9)
	require.InDelta(t, 290, d1, 5)
	require.Zero(t, Haversine(10, 10, 10, 10))
}

func TestHaversineUsesMeanEarthRadius(t *testing.T) {
	require.InDelta(t, math.Pi/2*EarthRadiusKm, Haversine(0, 0, 0, 90), 1e-6)
	require.InDelta(t, math.Pi*EarthRadiusKm, Haversine(90, 0, -90, 0), 1e-6)
}
