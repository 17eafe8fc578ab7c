package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// ErrStaleWallet indicates the wallet changed between read and write.
var ErrStaleWallet = errors.New("wallet was modified concurrently")

// TransactionFilter narrows ledger history queries.
type TransactionFilter struct {
	Page     int
	PageSize int
	WalletID uint
	Type     *models.TransactionType
}

// WalletBalance is the reconciliation view of a wallet against its ledger.
type WalletBalance struct {
	WalletID      uint
	StudentID     uint
	TotalCredits  float64
	CreditsEarned float64
	CreditsSpent  float64
	LedgerSum     float64
}

// WalletRepository stores wallets and their append-only transactions.
type WalletRepository interface {
	GetByID(ctx context.Context, id uint) (models.CreditWallet, error)
	GetByStudentID(ctx context.Context, studentID uint) (models.CreditWallet, error)
	LockOrCreateForStudent(ctx context.Context, studentID uint) (models.CreditWallet, error)
	SaveTotals(ctx context.Context, wallet *models.CreditWallet) error
	AppendTransaction(ctx context.Context, entry *models.CreditTransaction) error
	HasTransactionForActivity(ctx context.Context, activityID string, kind models.TransactionType) (bool, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.CreditTransaction, int64, error)
	Top(ctx context.Context, limit int) ([]models.CreditWallet, error)
	Balances(ctx context.Context) ([]WalletBalance, error)
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository constructs the wallet repository.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetByID(ctx context.Context, id uint) (models.CreditWallet, error) {
	var wallet models.CreditWallet
	if err := r.db.WithContext(ctx).First(&wallet, id).Error; err != nil {
		return models.CreditWallet{}, err
	}

	return wallet, nil
}

func (r *walletRepository) GetByStudentID(ctx context.Context, studentID uint) (models.CreditWallet, error) {
	var wallet models.CreditWallet
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&wallet).Error; err != nil {
		return models.CreditWallet{}, err
	}

	return wallet, nil
}

// LockOrCreateForStudent returns the student's wallet row locked for update, creating it on first access.
func (r *walletRepository) LockOrCreateForStudent(ctx context.Context, studentID uint) (models.CreditWallet, error) {
	created := models.CreditWallet{StudentID: studentID, Level: models.LevelSeed}
	if err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "student_id"}}, DoNothing: true}).
		Create(&created).Error; err != nil {
		return models.CreditWallet{}, err
	}

	var wallet models.CreditWallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ?", studentID).
		First(&wallet).Error; err != nil {
		return models.CreditWallet{}, err
	}

	return wallet, nil
}

// SaveTotals writes the running totals guarded by the wallet version and bumps it.
func (r *walletRepository) SaveTotals(ctx context.Context, wallet *models.CreditWallet) error {
	result := r.db.WithContext(ctx).Model(&models.CreditWallet{}).
		Where("id = ?", wallet.ID).
		Where("version = ?", wallet.Version).
		Updates(map[string]interface{}{
			"total_credits":  wallet.TotalCredits,
			"credits_earned": wallet.CreditsEarned,
			"credits_spent":  wallet.CreditsSpent,
			"level":          wallet.Level,
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleWallet
	}

	wallet.Version++
	return nil
}

func (r *walletRepository) AppendTransaction(ctx context.Context, entry *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *walletRepository) HasTransactionForActivity(ctx context.Context, activityID string, kind models.TransactionType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("activity_id = ?", activityID).
		Where("transaction_type = ?", kind).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.CreditTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("wallet_id = ?", filter.WalletID)

	if filter.Type != nil {
		query = query.Where("transaction_type = ?", *filter.Type)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.CreditTransaction
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *walletRepository) Top(ctx context.Context, limit int) ([]models.CreditWallet, error) {
	if limit <= 0 {
		limit = 10
	}

	var wallets []models.CreditWallet
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Order("total_credits DESC").
		Order("id ASC").
		Limit(limit).
		Find(&wallets).Error; err != nil {
		return nil, err
	}

	return wallets, nil
}

// Balances returns every wallet with the sum of its ledger amounts.
func (r *walletRepository) Balances(ctx context.Context) ([]WalletBalance, error) {
	var balances []WalletBalance
	err := r.db.WithContext(ctx).
		Table("credit_wallets AS w").
		Select("w.id AS wallet_id, w.student_id, w.total_credits, w.credits_earned, w.credits_spent, COALESCE(SUM(t.amount), 0) AS ledger_sum").
		Joins("LEFT JOIN credit_transactions AS t ON t.wallet_id = w.id").
		Group("w.id, w.student_id, w.total_credits, w.credits_earned, w.credits_spent").
		Order("w.id ASC").
		Scan(&balances).Error
	if err != nil {
		return nil, err
	}

	return balances, nil
}
