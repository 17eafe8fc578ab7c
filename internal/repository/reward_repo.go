package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// RewardFilter narrows catalog queries.
type RewardFilter struct {
	Page       int
	PageSize   int
	Category   string
	ActiveOnly bool
}

// RedemptionFilter narrows redemption queries.
type RedemptionFilter struct {
	Page      int
	PageSize  int
	StudentID *uint
	Status    *models.RedemptionStatus
}

// RewardRepository stores the reward catalog and redemptions.
type RewardRepository interface {
	Create(ctx context.Context, reward *models.Reward) error
	GetByID(ctx context.Context, id uint) (models.Reward, error)
	LockByID(ctx context.Context, id uint) (models.Reward, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	List(ctx context.Context, filter RewardFilter) ([]models.Reward, int64, error)
	ClaimSlot(ctx context.Context, id uint) (bool, error)
	ReleaseSlot(ctx context.Context, id uint) error
	CreateRedemption(ctx context.Context, redemption *models.RewardRedemption) error
	GetRedemption(ctx context.Context, id uint) (models.RewardRedemption, error)
	LockRedemption(ctx context.Context, id uint) (models.RewardRedemption, error)
	UpdateRedemption(ctx context.Context, redemption *models.RewardRedemption, from models.RedemptionStatus) error
	ListRedemptions(ctx context.Context, filter RedemptionFilter) ([]models.RewardRedemption, int64, error)
}

type rewardRepository struct {
	db *gorm.DB
}

// NewRewardRepository constructs the reward repository.
func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

func (r *rewardRepository) GetByID(ctx context.Context, id uint) (models.Reward, error) {
	var reward models.Reward
	if err := r.db.WithContext(ctx).First(&reward, id).Error; err != nil {
		return models.Reward{}, err
	}

	return reward, nil
}

func (r *rewardRepository) LockByID(ctx context.Context, id uint) (models.Reward, error) {
	var reward models.Reward
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reward, id).Error; err != nil {
		return models.Reward{}, err
	}

	return reward, nil
}

func (r *rewardRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Reward{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *rewardRepository) List(ctx context.Context, filter RewardFilter) ([]models.Reward, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Reward{})

	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rewards []models.Reward
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("cost_credits ASC").
		Order("id ASC").
		Find(&rewards).Error; err != nil {
		return nil, 0, err
	}

	return rewards, total, nil
}

// ClaimSlot increments current_redemptions unless the cap is already reached.
func (r *rewardRepository) ClaimSlot(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("id = ?", id).
		Where("max_redemptions IS NULL OR current_redemptions < max_redemptions").
		Update("current_redemptions", gorm.Expr("current_redemptions + 1"))
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// ReleaseSlot gives a redemption slot back, never going below zero.
func (r *rewardRepository) ReleaseSlot(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("id = ?", id).
		Where("current_redemptions > 0").
		Update("current_redemptions", gorm.Expr("current_redemptions - 1")).Error
}

func (r *rewardRepository) CreateRedemption(ctx context.Context, redemption *models.RewardRedemption) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(redemption).Error
}

func (r *rewardRepository) GetRedemption(ctx context.Context, id uint) (models.RewardRedemption, error) {
	var redemption models.RewardRedemption
	if err := r.db.WithContext(ctx).Preload("Reward").First(&redemption, id).Error; err != nil {
		return models.RewardRedemption{}, err
	}

	return redemption, nil
}

func (r *rewardRepository) LockRedemption(ctx context.Context, id uint) (models.RewardRedemption, error) {
	var redemption models.RewardRedemption
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&redemption, id).Error; err != nil {
		return models.RewardRedemption{}, err
	}

	return redemption, nil
}

// UpdateRedemption persists a status change only if the row is still in the from status.
func (r *rewardRepository) UpdateRedemption(ctx context.Context, redemption *models.RewardRedemption, from models.RedemptionStatus) error {
	result := r.db.WithContext(ctx).Model(&models.RewardRedemption{}).
		Where("id = ?", redemption.ID).
		Where("status = ?", from).
		Updates(map[string]interface{}{
			"status":       redemption.Status,
			"notes":        redemption.Notes,
			"reviewed_at":  redemption.ReviewedAt,
			"fulfilled_at": redemption.FulfilledAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *rewardRepository) ListRedemptions(ctx context.Context, filter RedemptionFilter) ([]models.RewardRedemption, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RewardRedemption{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var redemptions []models.RewardRedemption
	if err := paginate(query, filter.Page, filter.PageSize).
		Preload("Reward").
		Order("redeemed_at DESC").
		Order("id DESC").
		Find(&redemptions).Error; err != nil {
		return nil, 0, err
	}

	return redemptions, total, nil
}
