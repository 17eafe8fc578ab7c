package models

import (
	"fmt"
	"math"
	"time"
)

// WalletLevel is the gamification tier derived from a wallet's total credits.
type WalletLevel string

const (
	LevelSeed    WalletLevel = "Seed"
	LevelSapling WalletLevel = "Sapling"
	LevelGrove   WalletLevel = "Grove"
	LevelForest  WalletLevel = "Forest"
)

// TransactionType classifies a credit ledger entry.
type TransactionType string

const (
	TransactionEarned  TransactionType = "earned"
	TransactionSpent   TransactionType = "spent"
	TransactionBonus   TransactionType = "bonus"
	TransactionPenalty TransactionType = "penalty"
)

// ParseTransactionType validates the raw value against the known transaction types.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch t := TransactionType(raw); t {
	case TransactionEarned, TransactionSpent, TransactionBonus, TransactionPenalty:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown transaction type %q", ErrInvalidValue, raw)
	}
}

// CreditWallet tracks the running credit totals of a single student.
type CreditWallet struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	StudentID     uint        `gorm:"uniqueIndex;not null" json:"student_id"`
	TotalCredits  float64     `gorm:"not null;default:0" json:"total_credits"`
	CreditsEarned float64     `gorm:"not null;default:0" json:"credits_earned"`
	CreditsSpent  float64     `gorm:"not null;default:0" json:"credits_spent"`
	Level         WalletLevel `gorm:"size:50;not null;default:Seed" json:"level"`
	Version       int64       `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Student       Student     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Balanced reports whether total credits equal earned minus spent.
func (w CreditWallet) Balanced() bool {
	return math.Abs(w.TotalCredits-(w.CreditsEarned-w.CreditsSpent)) < 0.005
}

// CreditTransaction is an immutable ledger row. Amount carries the signed net effect on the wallet.
type CreditTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	WalletID        uint            `gorm:"not null;index" json:"wallet_id"`
	ActivityID      *string         `gorm:"type:varchar(36);uniqueIndex:idx_credit_tx_activity_type" json:"activity_id"`
	TransactionType TransactionType `gorm:"size:20;not null;uniqueIndex:idx_credit_tx_activity_type" json:"transaction_type"`
	Amount          float64         `gorm:"not null" json:"amount"`
	BalanceAfter    float64         `gorm:"not null" json:"balance_after"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RoundCredits rounds an amount to the two decimals stored by the ledger.
func RoundCredits(v float64) float64 {
	return math.Round(v*100) / 100
}
