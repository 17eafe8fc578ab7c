package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// VerificationRepository persists GPS tracks and the append-only verification log.
type VerificationRepository interface {
	SaveTrack(ctx context.Context, track *models.GPSTrackingData) error
	GetTrack(ctx context.Context, activityID string) (models.GPSTrackingData, error)
	AppendLogs(ctx context.Context, entries []models.VerificationLog) error
	ListLogs(ctx context.Context, activityID string) ([]models.VerificationLog, error)
}

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository constructs the verification repository.
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// SaveTrack stores the track for an activity, replacing an earlier analysis of the same activity.
func (r *verificationRepository) SaveTrack(ctx context.Context, track *models.GPSTrackingData) error {
	if track.ID != 0 {
		return r.db.WithContext(ctx).Save(track).Error
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"points",
			"total_distance_km",
			"average_speed_kmh",
			"max_speed_kmh",
			"duration_seconds",
			"verification_score",
			"is_verified",
			"updated_at",
		}),
	}).Create(track).Error
}

func (r *verificationRepository) GetTrack(ctx context.Context, activityID string) (models.GPSTrackingData, error) {
	var track models.GPSTrackingData
	if err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).First(&track).Error; err != nil {
		return models.GPSTrackingData{}, err
	}

	return track, nil
}

// AppendLogs inserts new log rows. Logs have no update or delete path.
func (r *verificationRepository) AppendLogs(ctx context.Context, entries []models.VerificationLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *verificationRepository) ListLogs(ctx context.Context, activityID string) ([]models.VerificationLog, error) {
	var entries []models.VerificationLog
	if err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
