package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/models"
)

type redemptionFixture struct {
	*ledgerFixture
	redemptions RedemptionService
}

func newRedemptionFixture(t *testing.T) *redemptionFixture {
	t.Helper()
	f := newLedgerFixture(t)
	return &redemptionFixture{
		ledgerFixture: f,
		redemptions:   NewRedemptionService(f.store, f.locks, f.publisher, f.cache, testLogger()),
	}
}

func seedReward(t *testing.T, db *gorm.DB, reward models.Reward) models.Reward {
	t.Helper()
	if reward.Name == "" {
		reward.Name = "Reusable bottle"
	}
	require.NoError(t, db.Create(&reward).Error)
	return reward
}

func TestRedeemDebitsWalletAndClaimsSlot(t *testing.T) {
	f := newRedemptionFixture(t)
	student := seedStudent(t, f.db, "R100")
	seedWallet(t, f.db, student.ID, 70, 0)
	reward := seedReward(t, f.db, models.Reward{CostCredits: 25, IsActive: true, MaxRedemptions: intRef(5)})

	resp, err := f.redemptions.Redeem(context.Background(), student.ID, reward.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.RedemptionPending), resp.Redemption.Status)
	require.InDelta(t, 25, resp.Redemption.CreditsSpent, 1e-9)
	require.NotNil(t, resp.Redemption.Reward)
	require.InDelta(t, 45, resp.Wallet.TotalCredits, 1e-9)
	require.Equal(t, string(models.LevelSeed), resp.Wallet.Level)

	wallet := f.wallet(t, student.ID)
	require.True(t, wallet.Balanced())
	require.InDelta(t, 25, wallet.CreditsSpent, 1e-9)

	var stored models.Reward
	require.NoError(t, f.db.First(&stored, reward.ID).Error)
	require.Equal(t, 1, stored.CurrentRedemptions)

	var spent models.CreditTransaction
	require.NoError(t, f.db.Where("transaction_type = ?", models.TransactionSpent).First(&spent).Error)
	require.InDelta(t, -25, spent.Amount, 1e-9)
	require.Equal(t, []string{events.RewardRedeemed}, f.publisher.types())
}

func TestRedeemRejectsUnaffordableAndUnavailableRewards(t *testing.T) {
	f := newRedemptionFixture(t)
	student := seedStudent(t, f.db, "R200")
	seedWallet(t, f.db, student.ID, 10, 0)
	ctx := context.Background()

	expensive := seedReward(t, f.db, models.Reward{CostCredits: 10.01, IsActive: true})
	_, err := f.redemptions.Redeem(ctx, student.ID, expensive.ID)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	inactive := seedReward(t, f.db, models.Reward{CostCredits: 1, IsActive: false})
	_, err = f.redemptions.Redeem(ctx, student.ID, inactive.ID)
	require.ErrorIs(t, err, ErrRewardUnavailable)

	full := seedReward(t, f.db, models.Reward{CostCredits: 1, IsActive: true, MaxRedemptions: intRef(2), CurrentRedemptions: 2})
	_, err = f.redemptions.Redeem(ctx, student.ID, full.ID)
	require.ErrorIs(t, err, ErrRedemptionCapReached)

	_, err = f.redemptions.Redeem(ctx, student.ID, 9999)
	require.ErrorIs(t, err, ErrRewardNotFound)

	_, err = f.redemptions.Redeem(ctx, student.ID+50, expensive.ID)
	require.ErrorIs(t, err, ErrStudentNotFound)

	wallet := f.wallet(t, student.ID)
	require.InDelta(t, 10, wallet.TotalCredits, 1e-9)
	require.Empty(t, f.publisher.types())
}

func TestRedeemExactBalanceSucceeds(t *testing.T) {
	f := newRedemptionFixture(t)
	student := seedStudent(t, f.db, "R250")
	seedWallet(t, f.db, student.ID, 10, 0)
	reward := seedReward(t, f.db, models.Reward{CostCredits: 10, IsActive: true})

	resp, err := f.redemptions.Redeem(context.Background(), student.ID, reward.ID)
	require.NoError(t, err)
	require.InDelta(t, 0, resp.Wallet.TotalCredits, 1e-9)
}

func TestRedeemLastSlotUnderContention(t *testing.T) {
	f := newRedemptionFixture(t)
	reward := seedReward(t, f.db, models.Reward{CostCredits: 5, IsActive: true, MaxRedemptions: intRef(1)})

	var students []models.Student
	for i := 0; i < 4; i++ {
		student := seedStudent(t, f.db, fmt.Sprintf("R3%02d", i))
		seedWallet(t, f.db, student.ID, 20, 0)
		students = append(students, student)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(students))
	for _, student := range students {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.redemptions.Redeem(context.Background(), id, reward.ID)
			errs <- err
		}(student.ID)
	}
	wg.Wait()
	close(errs)

	var succeeded, capped int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrRedemptionCapReached):
			capped++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 3, capped)

	var stored models.Reward
	require.NoError(t, f.db.First(&stored, reward.ID).Error)
	require.Equal(t, 1, stored.CurrentRedemptions)
}

func TestTransitionLifecycle(t *testing.T) {
	f := newRedemptionFixture(t)
	student := seedStudent(t, f.db, "R400")
	seedWallet(t, f.db, student.ID, 30, 0)
	reward := seedReward(t, f.db, models.Reward{CostCredits: 12, IsActive: true})
	admin := Actor{ID: 1, Role: "admin"}
	ctx := context.Background()

	redeemed, err := f.redemptions.Redeem(ctx, student.ID, reward.ID)
	require.NoError(t, err)
	id := redeemed.Redemption.ID

	_, err = f.redemptions.Transition(ctx, id, models.RedemptionFulfilled, "", admin)
	require.ErrorIs(t, err, ErrInvalidTransition)

	approved, err := f.redemptions.Transition(ctx, id, models.RedemptionApproved, "Pick up at the front desk", admin)
	require.NoError(t, err)
	require.Equal(t, string(models.RedemptionApproved), approved.Status)
	require.NotNil(t, approved.ReviewedAt)
	require.Equal(t, "Pick up at the front desk", approved.Notes)

	fulfilled, err := f.redemptions.Transition(ctx, id, models.RedemptionFulfilled, "", admin)
	require.NoError(t, err)
	require.NotNil(t, fulfilled.FulfilledAt)
	require.Equal(t, "Pick up at the front desk", fulfilled.Notes)

	_, err = f.redemptions.Transition(ctx, id, models.RedemptionRejected, "", admin)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorContains(t, err, "already fulfilled")

	_, err = f.redemptions.Transition(ctx, 9999, models.RedemptionApproved, "", admin)
	require.ErrorIs(t, err, ErrRedemptionNotFound)

	require.InDelta(t, 18, f.wallet(t, student.ID).TotalCredits, 1e-9)

	var audits int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("entity_type = ?", "redemption").Count(&audits).Error)
	require.Equal(t, int64(2), audits)
}

func TestTransitionRejectionRefundsSnapshotCost(t *testing.T) {
	f := newRedemptionFixture(t)
	student := seedStudent(t, f.db, "R500")
	seedWallet(t, f.db, student.ID, 30, 0)
	reward := seedReward(t, f.db, models.Reward{CostCredits: 12, IsActive: true, MaxRedemptions: intRef(1)})
	ctx := context.Background()

	redeemed, err := f.redemptions.Redeem(ctx, student.ID, reward.ID)
	require.NoError(t, err)

	// A later price change must not affect the refund.
	require.NoError(t, f.db.Model(&models.Reward{}).Where("id = ?", reward.ID).Update("cost_credits", 40).Error)

	rejected, err := f.redemptions.Transition(ctx, redeemed.Redemption.ID, models.RedemptionRejected, "Out of stock", Actor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, string(models.RedemptionRejected), rejected.Status)

	wallet := f.wallet(t, student.ID)
	require.InDelta(t, 30, wallet.TotalCredits, 1e-9)
	require.InDelta(t, 0, wallet.CreditsSpent, 1e-9)
	require.True(t, wallet.Balanced())

	var stored models.Reward
	require.NoError(t, f.db.First(&stored, reward.ID).Error)
	require.Zero(t, stored.CurrentRedemptions)

	var ledgerSum float64
	require.NoError(t, f.db.Model(&models.CreditTransaction{}).Select("COALESCE(SUM(amount), 0)").Scan(&ledgerSum).Error)
	require.InDelta(t, wallet.TotalCredits, ledgerSum, 1e-9)

	require.Equal(t, []string{events.RewardRedeemed, events.RedemptionUpdated}, f.publisher.types())
}

func TestListRedemptionsForStudent(t *testing.T) {
	f := newRedemptionFixture(t)
	student := seedStudent(t, f.db, "R600")
	other := seedStudent(t, f.db, "R601")
	seedWallet(t, f.db, student.ID, 30, 0)
	seedWallet(t, f.db, other.ID, 30, 0)
	reward := seedReward(t, f.db, models.Reward{CostCredits: 5, IsActive: true})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.redemptions.Redeem(ctx, student.ID, reward.ID)
		require.NoError(t, err)
	}
	_, err := f.redemptions.Redeem(ctx, other.ID, reward.ID)
	require.NoError(t, err)

	list, err := f.redemptions.List(ctx, student.ID, dto.RedemptionListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(2), list.Pagination.TotalItems)
	for _, item := range list.Items {
		require.Equal(t, student.ID, item.StudentID)
		require.NotNil(t, item.Reward)
	}

	_, err = f.redemptions.List(ctx, student.ID, dto.RedemptionListRequest{Status: "lost"})
	require.Error(t, err)
}
