package dto

import (
	"time"

	"github.com/noah-isme/green-campus-api/internal/geotrack"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/verification"
)

// TrackAnalyzeRequest asks for a summary of raw GPS points.
type TrackAnalyzeRequest struct {
	Points []TrackPointRequest `json:"points" validate:"required,dive"`
}

// VerifyRequest optionally attaches a GPS track to a verification run.
type VerifyRequest struct {
	Track []TrackPointRequest `json:"track" validate:"omitempty,dive"`
}

// TrackSummaryResponse serializes an analyzed track.
type TrackSummaryResponse struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationSeconds int64   `json:"duration_seconds"`
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
	MaxSpeedKmh     float64 `json:"max_speed_kmh"`
	Points          int     `json:"points"`
}

// CheckResponse serializes a single verification rule outcome.
type CheckResponse struct {
	Name      string   `json:"name"`
	Source    string   `json:"source,omitempty"`
	Bound     string   `json:"bound"`
	Measured  *float64 `json:"measured,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Result    string   `json:"result"`
	Message   string   `json:"message"`
}

// VerificationResponse serializes a verdict.
type VerificationResponse struct {
	ActivityID string                `json:"activity_id"`
	Result     string                `json:"result"`
	Score      float64               `json:"score"`
	Checks     []CheckResponse       `json:"checks"`
	Track      *TrackSummaryResponse `json:"track,omitempty"`
}

// VerificationLogResponse serializes a stored log row.
type VerificationLogResponse struct {
	ID               uint                   `json:"id"`
	VerificationType string                 `json:"verification_type"`
	Result           string                 `json:"result"`
	Score            *float64               `json:"score,omitempty"`
	Details          map[string]interface{} `json:"details"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ToPoints converts request points into analyzer input.
func ToPoints(points []TrackPointRequest) []geotrack.Point {
	converted := make([]geotrack.Point, 0, len(points))
	for _, p := range points {
		converted = append(converted, geotrack.Point{Latitude: p.Latitude, Longitude: p.Longitude, Timestamp: p.Timestamp})
	}
	return converted
}

// NewTrackSummaryResponse converts an analyzer summary.
func NewTrackSummaryResponse(summary geotrack.Summary) TrackSummaryResponse {
	return TrackSummaryResponse{
		DistanceKm:      summary.DistanceKm,
		DurationSeconds: int64(summary.Duration.Seconds()),
		AverageSpeedKmh: summary.AverageSpeedKmh,
		MaxSpeedKmh:     summary.MaxSpeedKmh,
		Points:          summary.Points,
	}
}

// NewVerificationResponse converts an engine verdict.
func NewVerificationResponse(activityID string, verdict verification.Verdict, track *geotrack.Summary) VerificationResponse {
	checks := make([]CheckResponse, 0, len(verdict.Checks))
	for _, check := range verdict.Checks {
		checks = append(checks, CheckResponse{
			Name:      check.Name,
			Source:    check.Source,
			Bound:     check.Bound,
			Measured:  check.Measured,
			Threshold: check.Limit,
			Result:    string(check.Result),
			Message:   check.Message,
		})
	}

	response := VerificationResponse{
		ActivityID: activityID,
		Result:     string(verdict.Result),
		Score:      verdict.Score,
		Checks:     checks,
	}
	if track != nil {
		summary := NewTrackSummaryResponse(*track)
		response.Track = &summary
	}
	return response
}

// NewVerificationLogResponses converts stored log rows.
func NewVerificationLogResponses(entries []models.VerificationLog) []VerificationLogResponse {
	responses := make([]VerificationLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, VerificationLogResponse{
			ID:               entry.ID,
			VerificationType: entry.VerificationType,
			Result:           string(entry.Result),
			Score:            entry.Score,
			Details:          entry.Details,
			CreatedAt:        entry.CreatedAt,
		})
	}
	return responses
}
