package dto

import (
	"time"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// RewardCreateRequest adds an item to the catalog.
type RewardCreateRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Description    string  `json:"description" validate:"omitempty,max=2000"`
	Category       string  `json:"category" validate:"omitempty,max=100"`
	CostCredits    float64 `json:"cost_credits" validate:"gt=0"`
	MaxRedemptions *int    `json:"max_redemptions" validate:"omitempty,gt=0"`
	IsActive       *bool   `json:"is_active"`
}

// RewardUpdateRequest changes catalog fields. Omitted fields are left untouched.
type RewardUpdateRequest struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description    *string  `json:"description" validate:"omitempty,max=2000"`
	Category       *string  `json:"category" validate:"omitempty,max=100"`
	CostCredits    *float64 `json:"cost_credits" validate:"omitempty,gt=0"`
	MaxRedemptions *int     `json:"max_redemptions" validate:"omitempty,gt=0"`
	IsActive       *bool    `json:"is_active"`
}

// RewardListRequest defines filters for the catalog.
type RewardListRequest struct {
	Page     int
	PageSize int
	Category string
}

// RewardResponse serializes a catalog item.
type RewardResponse struct {
	ID                 uint    `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Category           string  `json:"category,omitempty"`
	CostCredits        float64 `json:"cost_credits"`
	IsActive           bool    `json:"is_active"`
	MaxRedemptions     *int    `json:"max_redemptions,omitempty"`
	CurrentRedemptions int     `json:"current_redemptions"`
	Available          bool    `json:"available"`
}

// RewardListResponse wraps a paginated catalog listing.
type RewardListResponse struct {
	Items      []RewardResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// RedemptionTransitionRequest moves a redemption along its lifecycle.
type RedemptionTransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected fulfilled"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

// RedemptionListRequest defines filters for listing redemptions.
type RedemptionListRequest struct {
	Page     int
	PageSize int
	Status   string
}

// RedemptionResponse serializes a redemption.
type RedemptionResponse struct {
	ID           uint            `json:"id"`
	StudentID    uint            `json:"student_id"`
	RewardID     uint            `json:"reward_id"`
	Reward       *RewardResponse `json:"reward,omitempty"`
	CreditsSpent float64         `json:"credits_spent"`
	Status       string          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	RedeemedAt   time.Time       `json:"redeemed_at"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty"`
	FulfilledAt  *time.Time      `json:"fulfilled_at,omitempty"`
}

// RedemptionListResponse wraps a paginated redemption listing.
type RedemptionListResponse struct {
	Items      []RedemptionResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// RedeemResponse reports a successful redemption and the debited wallet.
type RedeemResponse struct {
	Redemption RedemptionResponse `json:"redemption"`
	Wallet     WalletResponse     `json:"wallet"`
}

// NewRewardResponse converts a catalog item.
func NewRewardResponse(reward models.Reward) RewardResponse {
	return RewardResponse{
		ID:                 reward.ID,
		Name:               reward.Name,
		Description:        reward.Description,
		Category:           reward.Category,
		CostCredits:        reward.CostCredits,
		IsActive:           reward.IsActive,
		MaxRedemptions:     reward.MaxRedemptions,
		CurrentRedemptions: reward.CurrentRedemptions,
		Available:          reward.IsActive && !reward.CapReached(),
	}
}

// NewRedemptionResponse converts a redemption, embedding the reward when loaded.
func NewRedemptionResponse(redemption models.RewardRedemption) RedemptionResponse {
	response := RedemptionResponse{
		ID:           redemption.ID,
		StudentID:    redemption.StudentID,
		RewardID:     redemption.RewardID,
		CreditsSpent: redemption.CreditsSpent,
		Status:       string(redemption.Status),
		Notes:        redemption.Notes,
		RedeemedAt:   redemption.RedeemedAt,
		ReviewedAt:   redemption.ReviewedAt,
		FulfilledAt:  redemption.FulfilledAt,
	}
	if redemption.Reward.ID != 0 {
		reward := NewRewardResponse(redemption.Reward)
		response.Reward = &reward
	}
	return response
}
