package dto

import (
	"time"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// WalletResponse summarises a student's credit wallet.
type WalletResponse struct {
	ID            uint      `json:"id"`
	StudentID     uint      `json:"student_id"`
	TotalCredits  float64   `json:"total_credits"`
	CreditsEarned float64   `json:"credits_earned"`
	CreditsSpent  float64   `json:"credits_spent"`
	Level         string    `json:"level"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransactionResponse serializes a ledger entry.
type TransactionResponse struct {
	ID              uint      `json:"id"`
	WalletID        uint      `json:"wallet_id"`
	ActivityID      *string   `json:"activity_id,omitempty"`
	TransactionType string    `json:"transaction_type"`
	Amount          float64   `json:"amount"`
	BalanceAfter    float64   `json:"balance_after"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionListRequest defines filters for wallet history.
type TransactionListRequest struct {
	Page     int
	PageSize int
	Type     string
}

// TransactionListResponse wraps paginated wallet history.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// LeaderboardEntry ranks a wallet by total credits.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	StudentID    uint    `json:"student_id"`
	Name         string  `json:"name"`
	TotalCredits float64 `json:"total_credits"`
	Level        string  `json:"level"`
}

// AdjustRequest is an administrative bonus or penalty.
type AdjustRequest struct {
	Amount      float64 `json:"amount" validate:"required,ne=0"`
	Type        string  `json:"type" validate:"required,oneof=bonus penalty"`
	Description string  `json:"description" validate:"required,max=500"`
}

// WalletEventResponse is one ledger change pushed over the wallet stream.
type WalletEventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	WalletID   uint      `json:"wallet_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Balance    float64   `json:"balance"`
	Level      string    `json:"level,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LedgerResult is the outcome of a ledger mutation.
type LedgerResult struct {
	Wallet      WalletResponse      `json:"wallet"`
	Transaction TransactionResponse `json:"transaction"`
}

// NewWalletResponse converts the model into its API representation.
func NewWalletResponse(wallet models.CreditWallet) WalletResponse {
	return WalletResponse{
		ID:            wallet.ID,
		StudentID:     wallet.StudentID,
		TotalCredits:  wallet.TotalCredits,
		CreditsEarned: wallet.CreditsEarned,
		CreditsSpent:  wallet.CreditsSpent,
		Level:         string(wallet.Level),
		UpdatedAt:     wallet.UpdatedAt,
	}
}

// NewTransactionResponse converts a ledger entry.
func NewTransactionResponse(entry models.CreditTransaction) TransactionResponse {
	return TransactionResponse{
		ID:              entry.ID,
		WalletID:        entry.WalletID,
		ActivityID:      entry.ActivityID,
		TransactionType: string(entry.TransactionType),
		Amount:          entry.Amount,
		BalanceAfter:    entry.BalanceAfter,
		Description:     entry.Description,
		CreatedAt:       entry.CreatedAt,
	}
}
