package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/green-campus-api/internal/models"
)

func TestReconcileCleanLedger(t *testing.T) {
	f := newLedgerFixture(t)
	student := seedStudent(t, f.db, "C100")
	wallet := seedWallet(t, f.db, student.ID, 40, 0)

	_, err := f.ledger.Adjust(context.Background(), wallet.ID, 15, models.TransactionPenalty, "Warning", Actor{ID: 1, Role: "admin"})
	require.NoError(t, err)

	report, err := NewReconciliationService(f.store.Repos().Wallets, 0, testLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Empty(t, report.Mismatches)
}

func TestReconcileReportsDrift(t *testing.T) {
	f := newLedgerFixture(t)
	clean := seedStudent(t, f.db, "C200")
	seedWallet(t, f.db, clean.ID, 10, 0)
	drifted := seedStudent(t, f.db, "C201")
	wallet := seedWallet(t, f.db, drifted.ID, 10, 0)

	require.NoError(t, f.db.Model(&models.CreditWallet{}).Where("id = ?", wallet.ID).Updates(map[string]interface{}{
		"total_credits":  25,
		"credits_earned": 25,
	}).Error)

	report, err := NewReconciliationService(f.store.Repos().Wallets, 0, testLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Checked)
	require.Len(t, report.Mismatches, 1)

	mismatch := report.Mismatches[0]
	require.Equal(t, wallet.ID, mismatch.WalletID)
	require.InDelta(t, 25, mismatch.TotalCredits, 1e-9)
	require.InDelta(t, 10, mismatch.LedgerSum, 1e-9)
}

func TestReconcileSchedulerStartStop(t *testing.T) {
	f := newLedgerFixture(t)
	svc := NewReconciliationService(f.store.Repos().Wallets, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())

	disabled := NewReconciliationService(f.store.Repos().Wallets, 0, testLogger())
	require.NoError(t, disabled.Start(ctx))
	require.NoError(t, disabled.Stop())
}
