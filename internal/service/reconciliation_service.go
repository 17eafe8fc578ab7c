package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/observability"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

const reconcileTolerance = 0.005

// WalletMismatch describes a wallet whose totals disagree with its ledger.
type WalletMismatch struct {
	WalletID     uint    `json:"wallet_id"`
	StudentID    uint    `json:"student_id"`
	TotalCredits float64 `json:"total_credits"`
	EarnedMinus  float64 `json:"earned_minus_spent"`
	LedgerSum    float64 `json:"ledger_sum"`
}

// ReconcileReport summarises a reconciliation run.
type ReconcileReport struct {
	Checked    int              `json:"checked"`
	Mismatches []WalletMismatch `json:"mismatches"`
	RanAt      time.Time        `json:"ran_at"`
}

// ReconciliationService compares every wallet against the sum of its transactions.
type ReconciliationService interface {
	Run(ctx context.Context) (ReconcileReport, error)
	Start(ctx context.Context) error
	Stop() error
}

type reconciliationService struct {
	wallets  repository.WalletRepository
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// NewReconciliationService constructs the reconciler. A non-positive interval disables scheduling.
func NewReconciliationService(wallets repository.WalletRepository, interval time.Duration, logger zerolog.Logger) ReconciliationService {
	return &reconciliationService{
		wallets:  wallets,
		interval: interval,
		logger:   logger.With().Str("component", "reconciliation_service").Logger(),
	}
}

func (s *reconciliationService) Run(ctx context.Context) (ReconcileReport, error) {
	balances, err := s.wallets.Balances(ctx)
	if err != nil {
		observability.ReconcileRuns().WithLabelValues("error").Inc()
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Checked: len(balances), Mismatches: []WalletMismatch{}, RanAt: time.Now().UTC()}
	for _, balance := range balances {
		derived := models.RoundCredits(balance.CreditsEarned - balance.CreditsSpent)
		ledger := models.RoundCredits(balance.LedgerSum)

		if math.Abs(balance.TotalCredits-derived) < reconcileTolerance && math.Abs(balance.TotalCredits-ledger) < reconcileTolerance {
			continue
		}

		mismatch := WalletMismatch{
			WalletID:     balance.WalletID,
			StudentID:    balance.StudentID,
			TotalCredits: balance.TotalCredits,
			EarnedMinus:  derived,
			LedgerSum:    ledger,
		}
		report.Mismatches = append(report.Mismatches, mismatch)
		observability.ReconcileMismatches().Inc()

		s.logger.Error().
			Uint("wallet_id", mismatch.WalletID).
			Uint("student_id", mismatch.StudentID).
			Float64("total_credits", mismatch.TotalCredits).
			Float64("earned_minus_spent", mismatch.EarnedMinus).
			Float64("ledger_sum", mismatch.LedgerSum).
			Msg("wallet does not reconcile with ledger")
	}

	outcome := "clean"
	if len(report.Mismatches) > 0 {
		outcome = "mismatch"
	}
	observability.ReconcileRuns().WithLabelValues(outcome).Inc()

	s.logger.Info().Int("checked", report.Checked).Int("mismatches", len(report.Mismatches)).Msg("ledger reconciliation finished")
	return report, nil
}

// Start schedules Run every interval until Stop is called or ctx is cancelled.
func (s *reconciliationService) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info().Msg("ledger reconciliation disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create reconciliation scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error().Err(err).Msg("ledger reconciliation failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info().Dur("interval", s.interval).Msg("ledger reconciliation scheduled")

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	return nil
}

func (s *reconciliationService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	return err
}
