package models

import (
	"time"

	"gorm.io/datatypes"
)

// VerificationResult is the outcome of a single verification check or verdict.
type VerificationResult string

const (
	VerificationPassed  VerificationResult = "passed"
	VerificationFailed  VerificationResult = "failed"
	VerificationWarning VerificationResult = "warning"
)

// TrackPoint is one timestamped GPS fix stored with the tracking data.
type TrackPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// GPSTrackingData holds the recorded track and derived totals for an activity.
type GPSTrackingData struct {
	ID                uint                            `gorm:"primaryKey" json:"id"`
	ActivityID        string                          `gorm:"type:varchar(36);uniqueIndex;not null" json:"activity_id"`
	Points            datatypes.JSONSlice[TrackPoint] `gorm:"type:json" json:"points"`
	TotalDistanceKm   float64                         `json:"total_distance_km"`
	AverageSpeedKmh   float64                         `json:"average_speed_kmh"`
	MaxSpeedKmh       float64                         `json:"max_speed_kmh"`
	DurationSeconds   int64                           `json:"duration_seconds"`
	VerificationScore *float64                        `json:"verification_score"`
	IsVerified        bool                            `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt         time.Time                       `json:"created_at"`
	UpdatedAt         time.Time                       `json:"updated_at"`
}

// TableName keeps the table name readable.
func (GPSTrackingData) TableName() string {
	return "gps_tracking_data"
}

// VerificationLog is an append-only audit entry for one check run against an activity.
type VerificationLog struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	ActivityID       string             `gorm:"type:varchar(36);index;not null" json:"activity_id"`
	VerificationType string             `gorm:"size:50;not null" json:"verification_type"`
	Result           VerificationResult `gorm:"size:20;not null" json:"result"`
	Details          datatypes.JSONMap  `gorm:"type:json" json:"details"`
	Score            *float64           `json:"score"`
	CreatedAt        time.Time          `json:"created_at"`
}
