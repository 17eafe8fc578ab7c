package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidValue indicates a value outside one of the enumerations below.
var ErrInvalidValue = errors.New("invalid value")

// ActivityType enumerates the sustainability activities students can log.
type ActivityType string

const (
	ActivityTypeCycling     ActivityType = "cycling"
	ActivityTypeEnergy      ActivityType = "energy"
	ActivityTypeAssignments ActivityType = "assignments"
	ActivityTypeWorkshops   ActivityType = "workshops"
)

// ParseActivityType validates the raw value against the known activity types.
func ParseActivityType(raw string) (ActivityType, error) {
	switch t := ActivityType(raw); t {
	case ActivityTypeCycling, ActivityTypeEnergy, ActivityTypeAssignments, ActivityTypeWorkshops:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown activity type %q", ErrInvalidValue, raw)
	}
}

// RequiresManualReview reports whether the type is verified by a reviewer rather than by measurements.
func (t ActivityType) RequiresManualReview() bool {
	return t == ActivityTypeAssignments || t == ActivityTypeWorkshops
}

// ActivityStatus tracks the review state of an activity.
type ActivityStatus string

const (
	ActivityStatusPending  ActivityStatus = "pending"
	ActivityStatusApproved ActivityStatus = "approved"
	ActivityStatusRejected ActivityStatus = "rejected"
)

// ParseActivityStatus validates the raw value against the known statuses.
func ParseActivityStatus(raw string) (ActivityStatus, error) {
	switch s := ActivityStatus(raw); s {
	case ActivityStatusPending, ActivityStatusApproved, ActivityStatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown activity status %q", ErrInvalidValue, raw)
	}
}

// Activity is a single sustainability action submitted by a student.
type Activity struct {
	ID                string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	StudentID         uint           `gorm:"not null;index" json:"student_id"`
	ActivityType      ActivityType   `gorm:"size:20;not null;index" json:"activity_type"`
	Title             string         `gorm:"size:200;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	EvidenceURL       string         `gorm:"size:512" json:"evidence_url"`
	EvidenceNote      string         `gorm:"type:text" json:"evidence_note"`
	Location          string         `gorm:"size:200" json:"location"`
	StartLatitude     *float64       `json:"start_latitude"`
	StartLongitude    *float64       `json:"start_longitude"`
	EndLatitude       *float64       `json:"end_latitude"`
	EndLongitude      *float64       `json:"end_longitude"`
	DistanceKm        *float64       `json:"distance_km"`
	DurationMinutes   *int           `json:"duration_minutes"`
	EnergySavedKwh    *float64       `json:"energy_saved_kwh"`
	Status            ActivityStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	VerifiedBy        *uint          `json:"verified_by"`
	VerificationNotes string         `gorm:"type:text" json:"verification_notes"`
	ActivityDate      time.Time      `gorm:"not null" json:"activity_date"`
	ReviewedAt        *time.Time     `json:"reviewed_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Student           Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the identifier and the initial status.
func (a *Activity) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ActivityStatusPending
	}
	return nil
}

// IsFinal reports whether the activity has left the pending state.
func (a Activity) IsFinal() bool {
	return a.Status == ActivityStatusApproved || a.Status == ActivityStatusRejected
}

// CanTransitionTo reports whether the review status change is permitted.
func (a Activity) CanTransitionTo(next ActivityStatus) bool {
	return a.Status == ActivityStatusPending && (next == ActivityStatusApproved || next == ActivityStatusRejected)
}
