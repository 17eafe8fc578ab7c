package models

import (
	"fmt"
	"time"
)

// Reward is a catalog item students can redeem credits for.
type Reward struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"size:200;not null" json:"name"`
	Description        string    `gorm:"type:text" json:"description"`
	Category           string    `gorm:"size:100;index" json:"category"`
	CostCredits        float64   `gorm:"not null" json:"cost_credits"`
	IsActive           bool      `gorm:"not null" json:"is_active"`
	MaxRedemptions     *int      `json:"max_redemptions"`
	CurrentRedemptions int       `gorm:"not null;default:0" json:"current_redemptions"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CapReached reports whether the reward has no redemptions left.
func (r Reward) CapReached() bool {
	return r.MaxRedemptions != nil && r.CurrentRedemptions >= *r.MaxRedemptions
}

// RedemptionStatus tracks a redemption through review and fulfilment.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionRejected  RedemptionStatus = "rejected"
)

var redemptionTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionPending:  {RedemptionApproved, RedemptionRejected},
	RedemptionApproved: {RedemptionFulfilled},
}

// ParseRedemptionStatus validates the raw value against the known statuses.
func ParseRedemptionStatus(raw string) (RedemptionStatus, error) {
	switch s := RedemptionStatus(raw); s {
	case RedemptionPending, RedemptionApproved, RedemptionFulfilled, RedemptionRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown redemption status %q", ErrInvalidValue, raw)
	}
}

// CanTransitionTo reports whether moving from s to next is a single permitted step.
func (s RedemptionStatus) CanTransitionTo(next RedemptionStatus) bool {
	for _, allowed := range redemptionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s RedemptionStatus) IsTerminal() bool {
	return len(redemptionTransitions[s]) == 0
}

// RewardRedemption links a student to a redeemed reward. CreditsSpent snapshots the cost at redemption time.
type RewardRedemption struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	StudentID    uint             `gorm:"not null;index" json:"student_id"`
	RewardID     uint             `gorm:"not null;index" json:"reward_id"`
	CreditsSpent float64          `gorm:"not null" json:"credits_spent"`
	Status       RedemptionStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Notes        string           `gorm:"type:text" json:"notes"`
	RedeemedAt   time.Time        `gorm:"autoCreateTime" json:"redeemed_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at"`
	FulfilledAt  *time.Time       `json:"fulfilled_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Reward       Reward           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"reward"`
}
