package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

// RewardService manages the reward catalog.
type RewardService interface {
	Create(ctx context.Context, req dto.RewardCreateRequest, actor Actor) (dto.RewardResponse, error)
	Update(ctx context.Context, id uint, req dto.RewardUpdateRequest, actor Actor) (dto.RewardResponse, error)
	List(ctx context.Context, req dto.RewardListRequest) (dto.RewardListResponse, error)
}

type rewardService struct {
	repo      repository.RewardRepository
	audit     AuditRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewRewardService constructs the catalog service.
func NewRewardService(repo repository.RewardRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) RewardService {
	return &rewardService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "reward_service").Logger(),
	}
}

func (s *rewardService) Create(ctx context.Context, req dto.RewardCreateRequest, actor Actor) (dto.RewardResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RewardResponse{}, err
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	if name == "" {
		return dto.RewardResponse{}, fmt.Errorf("%w: reward name is empty after sanitization", ErrInvalidInput)
	}

	reward := models.Reward{
		Name:           name,
		Description:    strings.TrimSpace(s.sanitizer.Sanitize(req.Description)),
		Category:       strings.ToLower(strings.TrimSpace(req.Category)),
		CostCredits:    models.RoundCredits(req.CostCredits),
		IsActive:       true,
		MaxRedemptions: req.MaxRedemptions,
	}
	if req.IsActive != nil {
		reward.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, &reward); err != nil {
		return dto.RewardResponse{}, err
	}

	if s.audit != nil {
		if _, err := s.audit.Record(ctx, AuditEntry{
			Actor:      actor,
			Action:     "reward.create",
			EntityType: "reward",
			EntityID:   fmt.Sprintf("%d", reward.ID),
			Metadata:   map[string]interface{}{"cost_credits": reward.CostCredits},
		}); err != nil {
			s.logger.Warn().Err(err).Uint("reward_id", reward.ID).Msg("failed to audit reward creation")
		}
	}

	return dto.NewRewardResponse(reward), nil
}

// Update edits a catalog item. Existing redemptions keep the cost they were charged.
func (s *rewardService) Update(ctx context.Context, id uint, req dto.RewardUpdateRequest, actor Actor) (dto.RewardResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RewardResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(s.sanitizer.Sanitize(*req.Name))
		if name == "" {
			return dto.RewardResponse{}, fmt.Errorf("%w: reward name is empty after sanitization", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(s.sanitizer.Sanitize(*req.Description))
	}
	if req.Category != nil {
		updates["category"] = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.CostCredits != nil {
		updates["cost_credits"] = models.RoundCredits(*req.CostCredits)
	}
	if req.MaxRedemptions != nil {
		updates["max_redemptions"] = *req.MaxRedemptions
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return dto.RewardResponse{}, fmt.Errorf("%w: no reward fields to update", ErrInvalidInput)
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return dto.RewardResponse{}, mapNotFound(err, ErrRewardNotFound)
	}

	reward, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.RewardResponse{}, mapNotFound(err, ErrRewardNotFound)
	}

	if s.audit != nil {
		if _, err := s.audit.Record(ctx, AuditEntry{
			Actor:      actor,
			Action:     "reward.update",
			EntityType: "reward",
			EntityID:   fmt.Sprintf("%d", reward.ID),
			Metadata:   updates,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("reward_id", reward.ID).Msg("failed to audit reward update")
		}
	}

	s.logger.Info().Uint("reward_id", reward.ID).Int("fields", len(updates)).Msg("reward updated")
	return dto.NewRewardResponse(reward), nil
}

func (s *rewardService) List(ctx context.Context, req dto.RewardListRequest) (dto.RewardListResponse, error) {
	rewards, total, err := s.repo.List(ctx, repository.RewardFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Category:   strings.ToLower(strings.TrimSpace(req.Category)),
		ActiveOnly: true,
	})
	if err != nil {
		return dto.RewardListResponse{}, err
	}

	items := make([]dto.RewardResponse, 0, len(rewards))
	for _, reward := range rewards {
		items = append(items, dto.NewRewardResponse(reward))
	}

	return dto.RewardListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}
