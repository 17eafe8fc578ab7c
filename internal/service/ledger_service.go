package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/observability"
	"github.com/noah-isme/green-campus-api/internal/repository"
	"github.com/noah-isme/green-campus-api/internal/verification"
)

// LedgerService is the only writer of wallet totals for awards and manual adjustments.
type LedgerService interface {
	// Quote returns the credits an activity would earn if approved.
	Quote(ctx context.Context, activity models.Activity) (float64, error)
	Award(ctx context.Context, activityID string) (dto.LedgerResult, error)
	Adjust(ctx context.Context, walletID uint, amount float64, kind models.TransactionType, description string, actor Actor) (dto.LedgerResult, error)
}

type ledgerService struct {
	store  repository.Store
	rates  config.RateTable
	locks  *KeyedLocker
	events events.Publisher
	cache  *WalletCache
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewLedgerService constructs the ledger. locks must be shared with the redemption service.
func NewLedgerService(store repository.Store, rates config.RateTable, locks *KeyedLocker, publisher events.Publisher, cache *WalletCache, logger zerolog.Logger) LedgerService {
	if locks == nil {
		locks = NewKeyedLocker()
	}
	return &ledgerService{
		store:  store,
		rates:  rates,
		locks:  locks,
		events: publisher,
		cache:  cache,
		logger: logger.With().Str("component", "ledger_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/green-campus-api/internal/service/ledger"),
	}
}

func (s *ledgerService) Quote(ctx context.Context, activity models.Activity) (float64, error) {
	return s.awardAmount(ctx, s.store.Repos(), activity)
}

func (s *ledgerService) Award(ctx context.Context, activityID string) (dto.LedgerResult, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.award", trace.WithAttributes(attribute.String("activity.id", activityID)))
	defer span.End()

	activity, err := s.store.Repos().Activities.GetByID(ctx, activityID)
	if err != nil {
		return dto.LedgerResult{}, s.fail(span, "award", mapNotFound(err, ErrActivityNotFound))
	}

	unlock := s.locks.Lock(studentLockKey(activity.StudentID))
	defer unlock()

	var (
		wallet models.CreditWallet
		entry  models.CreditTransaction
	)
	err = s.store.Transaction(ctx, func(repos repository.Repositories) error {
		current, err := repos.Activities.GetForUpdate(ctx, activityID)
		if err != nil {
			return mapNotFound(err, ErrActivityNotFound)
		}
		if current.Status != models.ActivityStatusApproved {
			return ErrActivityNotApproved
		}

		awarded, err := repos.Wallets.HasTransactionForActivity(ctx, current.ID, models.TransactionEarned)
		if err != nil {
			return err
		}
		if awarded {
			return ErrDuplicateAward
		}

		amount, err := s.awardAmount(ctx, repos, current)
		if err != nil {
			return err
		}

		locked, err := repos.Wallets.LockOrCreateForStudent(ctx, current.StudentID)
		if err != nil {
			return err
		}
		wallet = locked

		applyWalletDelta(&wallet, amount, 0)
		if err := repos.Wallets.SaveTotals(ctx, &wallet); err != nil {
			return err
		}

		entry = models.CreditTransaction{
			WalletID:        wallet.ID,
			ActivityID:      &current.ID,
			TransactionType: models.TransactionEarned,
			Amount:          amount,
			BalanceAfter:    wallet.TotalCredits,
			Description:     fmt.Sprintf("Credits for %s activity: %s", current.ActivityType, current.Title),
		}
		if err := repos.Wallets.AppendTransaction(ctx, &entry); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAward
			}
			return err
		}

		activity = current
		return nil
	})
	if err != nil {
		return dto.LedgerResult{}, s.fail(span, "award", err)
	}

	observability.LedgerOperations().WithLabelValues("award", "success").Inc()
	observability.CreditsAwarded().WithLabelValues(string(activity.ActivityType)).Add(entry.Amount)
	span.SetStatus(codes.Ok, "awarded")

	s.afterCommit(ctx, events.Event{
		Type:      events.CreditAwarded,
		StudentID: wallet.StudentID,
		WalletID:  wallet.ID,
		Amount:    entry.Amount,
		Balance:   wallet.TotalCredits,
		Level:     string(wallet.Level),
		Reference: activity.ID,
	})

	s.logger.Info().
		Str("activity_id", activity.ID).
		Uint("student_id", wallet.StudentID).
		Float64("amount", entry.Amount).
		Str("level", string(wallet.Level)).
		Msg("credits awarded")

	return dto.LedgerResult{Wallet: dto.NewWalletResponse(wallet), Transaction: dto.NewTransactionResponse(entry)}, nil
}

func (s *ledgerService) Adjust(ctx context.Context, walletID uint, amount float64, kind models.TransactionType, description string, actor Actor) (dto.LedgerResult, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.adjust", trace.WithAttributes(
		attribute.Int("wallet.id", int(walletID)),
		attribute.String("adjustment.type", string(kind)),
	))
	defer span.End()

	magnitude := models.RoundCredits(math.Abs(amount))
	if (kind != models.TransactionBonus && kind != models.TransactionPenalty) || math.IsNaN(amount) || math.IsInf(amount, 0) || magnitude == 0 {
		return dto.LedgerResult{}, s.fail(span, "adjust", ErrInvalidAdjustment)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = fmt.Sprintf("Manual %s", kind)
	}

	target, err := s.store.Repos().Wallets.GetByID(ctx, walletID)
	if err != nil {
		return dto.LedgerResult{}, s.fail(span, "adjust", mapNotFound(err, ErrWalletNotFound))
	}

	unlock := s.locks.Lock(studentLockKey(target.StudentID))
	defer unlock()

	var (
		wallet models.CreditWallet
		entry  models.CreditTransaction
	)
	err = s.store.Transaction(ctx, func(repos repository.Repositories) error {
		locked, err := repos.Wallets.LockOrCreateForStudent(ctx, target.StudentID)
		if err != nil {
			return err
		}
		wallet = locked

		delta := magnitude
		if kind == models.TransactionBonus {
			applyWalletDelta(&wallet, magnitude, 0)
		} else {
			applied := math.Min(magnitude, math.Max(wallet.TotalCredits, 0))
			applyWalletDelta(&wallet, 0, applied)
			delta = -applied
		}

		if err := repos.Wallets.SaveTotals(ctx, &wallet); err != nil {
			return err
		}

		entry = models.CreditTransaction{
			WalletID:        wallet.ID,
			TransactionType: kind,
			Amount:          models.RoundCredits(delta),
			BalanceAfter:    wallet.TotalCredits,
			Description:     description,
		}
		if err := repos.Wallets.AppendTransaction(ctx, &entry); err != nil {
			return err
		}

		audit, err := buildAuditLog(AuditEntry{
			Actor:      actor,
			Action:     "ledger.adjust",
			EntityType: "wallet",
			EntityID:   fmt.Sprintf("%d", wallet.ID),
			Metadata: map[string]interface{}{
				"type":      string(kind),
				"requested": magnitude,
				"applied":   entry.Amount,
				"balance":   wallet.TotalCredits,
			},
		})
		if err != nil {
			return err
		}
		return repos.Audit.Create(ctx, &audit)
	})
	if err != nil {
		return dto.LedgerResult{}, s.fail(span, "adjust", err)
	}

	observability.LedgerOperations().WithLabelValues("adjust", "success").Inc()
	span.SetStatus(codes.Ok, "adjusted")

	s.afterCommit(ctx, events.Event{
		Type:       events.CreditAdjusted,
		StudentID:  wallet.StudentID,
		WalletID:   wallet.ID,
		Amount:     entry.Amount,
		Balance:    wallet.TotalCredits,
		Level:      string(wallet.Level),
		Attributes: map[string]interface{}{"type": string(kind), "actor_id": actor.ID},
	})

	s.logger.Info().
		Uint("wallet_id", wallet.ID).
		Uint("actor_id", actor.ID).
		Str("type", string(kind)).
		Float64("amount", entry.Amount).
		Msg("wallet adjusted")

	return dto.LedgerResult{Wallet: dto.NewWalletResponse(wallet), Transaction: dto.NewTransactionResponse(entry)}, nil
}

// awardAmount multiplies the configured rate by the activity's quantity.
// Cycling prefers the analyzed GPS distance over the declared one.
func (s *ledgerService) awardAmount(ctx context.Context, repos repository.Repositories, activity models.Activity) (float64, error) {
	rate, ok := s.rates.Rate(string(activity.ActivityType))
	if !ok {
		return 0, fmt.Errorf("%w: no credit rate for %q", verification.ErrUnknownActivityType, activity.ActivityType)
	}

	var quantity float64
	switch activity.ActivityType {
	case models.ActivityTypeCycling:
		track, err := repos.Verification.GetTrack(ctx, activity.ID)
		switch {
		case err == nil:
			quantity = track.TotalDistanceKm
		case errors.Is(err, gorm.ErrRecordNotFound):
			if activity.DistanceKm == nil {
				return 0, ErrAwardQuantityMissing
			}
			quantity = *activity.DistanceKm
		default:
			return 0, err
		}
	case models.ActivityTypeEnergy:
		if activity.EnergySavedKwh == nil {
			return 0, ErrAwardQuantityMissing
		}
		quantity = *activity.EnergySavedKwh
	default:
		quantity = 1
	}

	amount := models.RoundCredits(rate * quantity)
	if amount <= 0 {
		return 0, ErrAwardQuantityMissing
	}
	return amount, nil
}

func (s *ledgerService) afterCommit(ctx context.Context, event events.Event) {
	s.cache.Invalidate(ctx, event.StudentID)

	if s.events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish ledger event")
	}
}

func (s *ledgerService) fail(span trace.Span, operation string, err error) error {
	observability.LedgerOperations().WithLabelValues(operation, outcomeLabel(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateAward):
		return "duplicate"
	case errors.Is(err, ErrActivityNotApproved):
		return "not_approved"
	case errors.Is(err, ErrInvalidAdjustment):
		return "invalid"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrRewardUnavailable):
		return "unavailable"
	case errors.Is(err, ErrRedemptionCapReached):
		return "cap_reached"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, verification.ErrUnknownActivityType):
		return "unknown_type"
	default:
		return "error"
	}
}

func mapNotFound(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
