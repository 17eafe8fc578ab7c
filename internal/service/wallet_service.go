package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

// WalletService answers read queries over wallets and the ledger.
type WalletService interface {
	GetWallet(ctx context.Context, studentID uint) (dto.WalletResponse, error)
	Transactions(ctx context.Context, studentID uint, req dto.TransactionListRequest) (dto.TransactionListResponse, error)
	Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error)
	HandleEvent(ctx context.Context, event events.Event)
}

type walletService struct {
	store  repository.Store
	locks  *KeyedLocker
	cache  *WalletCache
	logger zerolog.Logger
}

// NewWalletService constructs the wallet query service.
func NewWalletService(store repository.Store, locks *KeyedLocker, cache *WalletCache, logger zerolog.Logger) WalletService {
	if locks == nil {
		locks = NewKeyedLocker()
	}
	return &walletService{
		store:  store,
		locks:  locks,
		cache:  cache,
		logger: logger.With().Str("component", "wallet_service").Logger(),
	}
}

// GetWallet returns the student's wallet, creating an empty one on first access.
func (s *walletService) GetWallet(ctx context.Context, studentID uint) (dto.WalletResponse, error) {
	if cached, ok := s.cache.Get(ctx, studentID); ok {
		return cached, nil
	}

	// Held across read and Set so a concurrent mutation cannot invalidate in between.
	unlock := s.locks.Lock(studentLockKey(studentID))
	defer unlock()

	wallet, err := s.loadOrCreate(ctx, studentID)
	if err != nil {
		return dto.WalletResponse{}, err
	}

	response := dto.NewWalletResponse(wallet)
	s.cache.Set(ctx, response)
	return response, nil
}

func (s *walletService) Transactions(ctx context.Context, studentID uint, req dto.TransactionListRequest) (dto.TransactionListResponse, error) {
	wallet, err := s.walletFor(ctx, studentID)
	if err != nil {
		return dto.TransactionListResponse{}, err
	}

	filter := repository.TransactionFilter{Page: req.Page, PageSize: req.PageSize, WalletID: wallet.ID}
	if kind := strings.TrimSpace(req.Type); kind != "" {
		parsed, err := models.ParseTransactionType(kind)
		if err != nil {
			return dto.TransactionListResponse{}, err
		}
		filter.Type = &parsed
	}

	entries, total, err := s.store.Repos().Wallets.ListTransactions(ctx, filter)
	if err != nil {
		return dto.TransactionListResponse{}, err
	}

	items := make([]dto.TransactionResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewTransactionResponse(entry))
	}

	return dto.TransactionListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

func (s *walletService) Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	wallets, err := s.store.Repos().Wallets.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(wallets))
	for i, wallet := range wallets {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:         i + 1,
			StudentID:    wallet.StudentID,
			Name:         wallet.Student.Name,
			TotalCredits: wallet.TotalCredits,
			Level:        string(wallet.Level),
		})
	}
	return entries, nil
}

// HandleEvent drops cached summaries when another node changes a wallet.
func (s *walletService) HandleEvent(ctx context.Context, event events.Event) {
	if event.StudentID == 0 {
		return
	}
	s.cache.Invalidate(ctx, event.StudentID)
}

func (s *walletService) walletFor(ctx context.Context, studentID uint) (models.CreditWallet, error) {
	unlock := s.locks.Lock(studentLockKey(studentID))
	defer unlock()
	return s.loadOrCreate(ctx, studentID)
}

// loadOrCreate expects the caller to hold the student lock.
func (s *walletService) loadOrCreate(ctx context.Context, studentID uint) (models.CreditWallet, error) {
	repos := s.store.Repos()
	wallet, err := repos.Wallets.GetByStudentID(ctx, studentID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CreditWallet{}, err
	}

	if _, err := repos.Students.GetByID(ctx, studentID); err != nil {
		return models.CreditWallet{}, mapNotFound(err, ErrStudentNotFound)
	}

	err = s.store.Transaction(ctx, func(tx repository.Repositories) error {
		created, err := tx.Wallets.LockOrCreateForStudent(ctx, studentID)
		if err != nil {
			return err
		}
		wallet = created
		return nil
	})
	if err != nil {
		return models.CreditWallet{}, err
	}

	s.logger.Debug().Uint("student_id", studentID).Msg("wallet created")
	return wallet, nil
}
