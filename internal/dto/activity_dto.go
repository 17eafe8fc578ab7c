package dto

import (
	"time"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// TrackPointRequest is a single GPS fix supplied by the client.
type TrackPointRequest struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// ActivitySubmitRequest captures a new sustainability activity.
type ActivitySubmitRequest struct {
	ActivityType    string              `json:"activity_type" validate:"required,oneof=cycling energy assignments workshops"`
	Title           string              `json:"title" validate:"required,max=200"`
	Description     string              `json:"description" validate:"omitempty,max=5000"`
	EvidenceNote    string              `json:"evidence_note" validate:"omitempty,max=2000"`
	Location        string              `json:"location" validate:"omitempty,max=200"`
	StartLatitude   *float64            `json:"start_latitude" validate:"omitempty,gte=-90,lte=90"`
	StartLongitude  *float64            `json:"start_longitude" validate:"omitempty,gte=-180,lte=180"`
	EndLatitude     *float64            `json:"end_latitude" validate:"omitempty,gte=-90,lte=90"`
	EndLongitude    *float64            `json:"end_longitude" validate:"omitempty,gte=-180,lte=180"`
	DistanceKm      *float64            `json:"distance_km" validate:"omitempty,gte=0"`
	DurationMinutes *int                `json:"duration_minutes" validate:"omitempty,gt=0"`
	EnergySavedKwh  *float64            `json:"energy_saved_kwh" validate:"omitempty,gte=0"`
	ActivityDate    *time.Time          `json:"activity_date"`
	Track           []TrackPointRequest `json:"track" validate:"omitempty,dive"`
}

// ActivityReviewRequest records a reviewer decision.
type ActivityReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Notes    string `json:"notes" validate:"omitempty,max=2000"`
}

// ActivityNotesRequest replaces the verification notes of an activity.
type ActivityNotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// ActivityListRequest defines filters for listing activities.
type ActivityListRequest struct {
	Page         int
	PageSize     int
	StudentID    *uint
	Status       string
	ActivityType string
}

// ActivityResponse serializes an activity.
type ActivityResponse struct {
	ID                string     `json:"id"`
	StudentID         uint       `json:"student_id"`
	ActivityType      string     `json:"activity_type"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	EvidenceURL       string     `json:"evidence_url,omitempty"`
	EvidenceNote      string     `json:"evidence_note,omitempty"`
	Location          string     `json:"location,omitempty"`
	DistanceKm        *float64   `json:"distance_km,omitempty"`
	DurationMinutes   *int       `json:"duration_minutes,omitempty"`
	EnergySavedKwh    *float64   `json:"energy_saved_kwh,omitempty"`
	Status            string     `json:"status"`
	VerifiedBy        *uint      `json:"verified_by,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	ActivityDate      time.Time  `json:"activity_date"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ActivityListResponse wraps a paginated activity listing.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// ActivityReviewResponse reports the review outcome and any credits awarded.
type ActivityReviewResponse struct {
	Activity ActivityResponse     `json:"activity"`
	Award    *TransactionResponse `json:"award,omitempty"`
}

// NewActivityResponse converts the model into its API representation.
func NewActivityResponse(activity models.Activity) ActivityResponse {
	return ActivityResponse{
		ID:                activity.ID,
		StudentID:         activity.StudentID,
		ActivityType:      string(activity.ActivityType),
		Title:             activity.Title,
		Description:       activity.Description,
		EvidenceURL:       activity.EvidenceURL,
		EvidenceNote:      activity.EvidenceNote,
		Location:          activity.Location,
		DistanceKm:        activity.DistanceKm,
		DurationMinutes:   activity.DurationMinutes,
		EnergySavedKwh:    activity.EnergySavedKwh,
		Status:            string(activity.Status),
		VerifiedBy:        activity.VerifiedBy,
		VerificationNotes: activity.VerificationNotes,
		ActivityDate:      activity.ActivityDate,
		ReviewedAt:        activity.ReviewedAt,
		CreatedAt:         activity.CreatedAt,
		UpdatedAt:         activity.UpdatedAt,
	}
}

// EvidenceResponse describes a stored evidence file.
type EvidenceResponse struct {
	ActivityID string `json:"activity_id"`
	URL        string `json:"url"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	Checksum   string `json:"checksum"`
}
