package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// ActivityFilter narrows activity queries.
type ActivityFilter struct {
	Page         int
	PageSize     int
	StudentID    *uint
	Status       *models.ActivityStatus
	ActivityType *models.ActivityType
}

// ActivityRepository defines data operations for submitted activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	GetByID(ctx context.Context, id string) (models.Activity, error)
	GetForUpdate(ctx context.Context, id string) (models.Activity, error)
	List(ctx context.Context, filter ActivityFilter) ([]models.Activity, int64, error)
	UpdateReview(ctx context.Context, activity *models.Activity) error
	UpdatePending(ctx context.Context, id string, updates map[string]interface{}) error
	UpdateNotes(ctx context.Context, id, notes string) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository instantiates the repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(activity).Error
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&activity).Error; err != nil {
		return models.Activity{}, err
	}

	return activity, nil
}

func (r *activityRepository) GetForUpdate(ctx context.Context, id string) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&activity).Error; err != nil {
		return models.Activity{}, err
	}

	return activity, nil
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]models.Activity, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Activity{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.ActivityType != nil {
		query = query.Where("activity_type = ?", *filter.ActivityType)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var activities []models.Activity
	if err := query.Order("created_at DESC").Find(&activities).Error; err != nil {
		return nil, 0, err
	}

	return activities, total, nil
}

// UpdateReview moves a pending activity to its final status. Finalized rows are never matched.
func (r *activityRepository) UpdateReview(ctx context.Context, activity *models.Activity) error {
	result := r.db.WithContext(ctx).Model(&models.Activity{}).
		Where("id = ?", activity.ID).
		Where("status = ?", models.ActivityStatusPending).
		Updates(map[string]interface{}{
			"status":             activity.Status,
			"verified_by":        activity.VerifiedBy,
			"verification_notes": activity.VerificationNotes,
			"reviewed_at":        activity.ReviewedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// UpdatePending applies field updates only while the activity is still pending.
func (r *activityRepository) UpdatePending(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Activity{}).
		Where("id = ?", id).
		Where("status = ?", models.ActivityStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *activityRepository) UpdateNotes(ctx context.Context, id, notes string) error {
	result := r.db.WithContext(ctx).Model(&models.Activity{}).
		Where("id = ?", id).
		Update("verification_notes", notes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}
