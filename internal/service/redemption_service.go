package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/observability"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

// RedemptionService spends wallet credits on catalog rewards and manages the redemption lifecycle.
type RedemptionService interface {
	Redeem(ctx context.Context, studentID, rewardID uint) (dto.RedeemResponse, error)
	Transition(ctx context.Context, redemptionID uint, target models.RedemptionStatus, notes string, actor Actor) (dto.RedemptionResponse, error)
	List(ctx context.Context, studentID uint, req dto.RedemptionListRequest) (dto.RedemptionListResponse, error)
}

type redemptionService struct {
	store     repository.Store
	locks     *KeyedLocker
	events    events.Publisher
	cache     *WalletCache
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRedemptionService constructs the redemption service. locks must be shared with the ledger.
func NewRedemptionService(store repository.Store, locks *KeyedLocker, publisher events.Publisher, cache *WalletCache, logger zerolog.Logger) RedemptionService {
	if locks == nil {
		locks = NewKeyedLocker()
	}
	return &redemptionService{
		store:     store,
		locks:     locks,
		events:    publisher,
		cache:     cache,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "redemption_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/green-campus-api/internal/service/redemption"),
		now:       time.Now,
	}
}

func (s *redemptionService) Redeem(ctx context.Context, studentID, rewardID uint) (dto.RedeemResponse, error) {
	ctx, span := s.tracer.Start(ctx, "redemption.redeem", trace.WithAttributes(
		attribute.Int("student.id", int(studentID)),
		attribute.Int("reward.id", int(rewardID)),
	))
	defer span.End()

	if _, err := s.store.Repos().Students.GetByID(ctx, studentID); err != nil {
		return dto.RedeemResponse{}, s.fail(span, mapNotFound(err, ErrStudentNotFound))
	}

	// Reward before wallet, the same order Transition uses.
	unlockReward := s.locks.Lock(rewardLockKey(rewardID))
	defer unlockReward()
	unlockStudent := s.locks.Lock(studentLockKey(studentID))
	defer unlockStudent()

	var (
		reward     models.Reward
		wallet     models.CreditWallet
		redemption models.RewardRedemption
	)
	err := s.store.Transaction(ctx, func(repos repository.Repositories) error {
		locked, err := repos.Rewards.LockByID(ctx, rewardID)
		if err != nil {
			return mapNotFound(err, ErrRewardNotFound)
		}
		reward = locked

		if !reward.IsActive {
			return ErrRewardUnavailable
		}
		if reward.CapReached() {
			return ErrRedemptionCapReached
		}

		lockedWallet, err := repos.Wallets.LockOrCreateForStudent(ctx, studentID)
		if err != nil {
			return err
		}
		wallet = lockedWallet

		cost := models.RoundCredits(reward.CostCredits)
		if wallet.TotalCredits < cost {
			return ErrInsufficientCredits
		}

		claimed, err := repos.Rewards.ClaimSlot(ctx, reward.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrRedemptionCapReached
		}
		reward.CurrentRedemptions++

		applyWalletDelta(&wallet, 0, cost)
		if err := repos.Wallets.SaveTotals(ctx, &wallet); err != nil {
			return err
		}

		entry := models.CreditTransaction{
			WalletID:        wallet.ID,
			TransactionType: models.TransactionSpent,
			Amount:          -cost,
			BalanceAfter:    wallet.TotalCredits,
			Description:     fmt.Sprintf("Redeemed reward: %s", reward.Name),
		}
		if err := repos.Wallets.AppendTransaction(ctx, &entry); err != nil {
			return err
		}

		redemption = models.RewardRedemption{
			StudentID:    studentID,
			RewardID:     reward.ID,
			CreditsSpent: cost,
			Status:       models.RedemptionPending,
		}
		return repos.Rewards.CreateRedemption(ctx, &redemption)
	})
	if err != nil {
		return dto.RedeemResponse{}, s.fail(span, err)
	}

	redemption.Reward = reward
	observability.Redemptions().WithLabelValues("redeemed").Inc()
	span.SetStatus(codes.Ok, "redeemed")

	s.afterCommit(ctx, events.Event{
		Type:      events.RewardRedeemed,
		StudentID: studentID,
		WalletID:  wallet.ID,
		Amount:    -redemption.CreditsSpent,
		Balance:   wallet.TotalCredits,
		Level:     string(wallet.Level),
		Reference: fmt.Sprintf("%d", redemption.ID),
	})

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("reward_id", reward.ID).
		Uint("redemption_id", redemption.ID).
		Float64("cost", redemption.CreditsSpent).
		Msg("reward redeemed")

	return dto.RedeemResponse{
		Redemption: dto.NewRedemptionResponse(redemption),
		Wallet:     dto.NewWalletResponse(wallet),
	}, nil
}

func (s *redemptionService) Transition(ctx context.Context, redemptionID uint, target models.RedemptionStatus, notes string, actor Actor) (dto.RedemptionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "redemption.transition", trace.WithAttributes(
		attribute.Int("redemption.id", int(redemptionID)),
		attribute.String("redemption.target", string(target)),
	))
	defer span.End()

	existing, err := s.store.Repos().Rewards.GetRedemption(ctx, redemptionID)
	if err != nil {
		return dto.RedemptionResponse{}, s.fail(span, mapNotFound(err, ErrRedemptionNotFound))
	}

	unlockReward := s.locks.Lock(rewardLockKey(existing.RewardID))
	defer unlockReward()
	unlockStudent := s.locks.Lock(studentLockKey(existing.StudentID))
	defer unlockStudent()

	var (
		updated models.RewardRedemption
		from    models.RedemptionStatus
		wallet  *models.CreditWallet
	)
	err = s.store.Transaction(ctx, func(repos repository.Repositories) error {
		redemption, err := repos.Rewards.LockRedemption(ctx, redemptionID)
		if err != nil {
			return mapNotFound(err, ErrRedemptionNotFound)
		}

		from = redemption.Status
		if from.IsTerminal() {
			return fmt.Errorf("%w: redemption already %s", ErrInvalidTransition, from)
		}
		if !from.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, target)
		}

		now := s.now()
		redemption.Status = target
		if cleaned := strings.TrimSpace(s.sanitizer.Sanitize(notes)); cleaned != "" {
			redemption.Notes = cleaned
		}
		switch target {
		case models.RedemptionApproved, models.RedemptionRejected:
			redemption.ReviewedAt = &now
		case models.RedemptionFulfilled:
			redemption.FulfilledAt = &now
		}

		if err := repos.Rewards.UpdateRedemption(ctx, &redemption, from); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidTransition
			}
			return err
		}

		if target == models.RedemptionRejected {
			refunded, err := s.refund(ctx, repos, redemption)
			if err != nil {
				return err
			}
			wallet = &refunded
		}

		audit, err := buildAuditLog(AuditEntry{
			Actor:      actor,
			Action:     "redemption." + string(target),
			EntityType: "redemption",
			EntityID:   fmt.Sprintf("%d", redemption.ID),
			Metadata: map[string]interface{}{
				"from":          string(from),
				"to":            string(target),
				"credits_spent": redemption.CreditsSpent,
			},
		})
		if err != nil {
			return err
		}
		if err := repos.Audit.Create(ctx, &audit); err != nil {
			return err
		}

		updated, err = repos.Rewards.GetRedemption(ctx, redemption.ID)
		return err
	})
	if err != nil {
		return dto.RedemptionResponse{}, s.fail(span, err)
	}

	observability.Redemptions().WithLabelValues(string(target)).Inc()
	span.SetStatus(codes.Ok, string(target))

	event := events.Event{
		Type:       events.RedemptionUpdated,
		StudentID:  updated.StudentID,
		Reference:  fmt.Sprintf("%d", updated.ID),
		Attributes: map[string]interface{}{"from": string(from), "to": string(target)},
	}
	if wallet != nil {
		event.WalletID = wallet.ID
		event.Amount = updated.CreditsSpent
		event.Balance = wallet.TotalCredits
		event.Level = string(wallet.Level)
	}
	s.afterCommit(ctx, event)

	s.logger.Info().
		Uint("redemption_id", updated.ID).
		Uint("actor_id", actor.ID).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("redemption transitioned")

	return dto.NewRedemptionResponse(updated), nil
}

// refund returns the snapshot cost of a rejected redemption and frees its reward slot.
func (s *redemptionService) refund(ctx context.Context, repos repository.Repositories, redemption models.RewardRedemption) (models.CreditWallet, error) {
	wallet, err := repos.Wallets.LockOrCreateForStudent(ctx, redemption.StudentID)
	if err != nil {
		return models.CreditWallet{}, err
	}

	applyWalletDelta(&wallet, 0, -redemption.CreditsSpent)
	if err := repos.Wallets.SaveTotals(ctx, &wallet); err != nil {
		return models.CreditWallet{}, err
	}

	entry := models.CreditTransaction{
		WalletID:        wallet.ID,
		TransactionType: models.TransactionSpent,
		Amount:          redemption.CreditsSpent,
		BalanceAfter:    wallet.TotalCredits,
		Description:     fmt.Sprintf("Refund for rejected redemption #%d", redemption.ID),
	}
	if err := repos.Wallets.AppendTransaction(ctx, &entry); err != nil {
		return models.CreditWallet{}, err
	}

	if err := repos.Rewards.ReleaseSlot(ctx, redemption.RewardID); err != nil {
		return models.CreditWallet{}, err
	}

	return wallet, nil
}

func (s *redemptionService) List(ctx context.Context, studentID uint, req dto.RedemptionListRequest) (dto.RedemptionListResponse, error) {
	filter := repository.RedemptionFilter{
		Page:      req.Page,
		PageSize:  req.PageSize,
		StudentID: &studentID,
	}
	if req.Status != "" {
		status, err := models.ParseRedemptionStatus(req.Status)
		if err != nil {
			return dto.RedemptionListResponse{}, err
		}
		filter.Status = &status
	}

	redemptions, total, err := s.store.Repos().Rewards.ListRedemptions(ctx, filter)
	if err != nil {
		return dto.RedemptionListResponse{}, err
	}

	items := make([]dto.RedemptionResponse, 0, len(redemptions))
	for _, redemption := range redemptions {
		items = append(items, dto.NewRedemptionResponse(redemption))
	}

	return dto.RedemptionListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

func (s *redemptionService) afterCommit(ctx context.Context, event events.Event) {
	s.cache.Invalidate(ctx, event.StudentID)

	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish redemption event")
	}
}

func (s *redemptionService) fail(span trace.Span, err error) error {
	observability.Redemptions().WithLabelValues(outcomeLabel(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
