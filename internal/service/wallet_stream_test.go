package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/models"
)

func TestWalletStreamDeliversOnlyOwnEvents(t *testing.T) {
	stream := NewWalletStream(testLogger())
	mine, cancelMine := stream.Subscribe(1)
	defer cancelMine()
	other, cancelOther := stream.Subscribe(2)
	defer cancelOther()

	stream.HandleEvent(context.Background(), events.Event{ID: "e1", Type: events.CreditAwarded, StudentID: 1, Amount: 5, Balance: 5, Level: "seed"})

	select {
	case event := <-mine:
		require.Equal(t, "e1", event.ID)
		require.Equal(t, events.CreditAwarded, event.Type)
		require.InDelta(t, 5, event.Balance, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("expected event for student 1")
	}

	select {
	case event := <-other:
		t.Fatalf("unexpected event for student 2: %+v", event)
	default:
	}
}

func TestWalletStreamCleanupClosesChannel(t *testing.T) {
	stream := NewWalletStream(testLogger())
	ch, cancel := stream.Subscribe(3)
	cancel()
	cancel()

	_, open := <-ch
	require.False(t, open)

	// Delivering after unsubscribe must not panic on the closed channel.
	stream.HandleEvent(context.Background(), events.Event{Type: events.CreditAdjusted, StudentID: 3})
}

func TestWalletStreamDropsForSlowConsumer(t *testing.T) {
	stream := NewWalletStream(testLogger())
	ch, cancel := stream.Subscribe(4)
	defer cancel()

	for i := 0; i < walletStreamBufferSize+5; i++ {
		stream.HandleEvent(context.Background(), events.Event{Type: events.CreditAdjusted, StudentID: 4})
	}
	require.Len(t, ch, walletStreamBufferSize)
}

func TestWalletStreamReceivesLedgerEventsThroughBus(t *testing.T) {
	f := newLedgerFixture(t)
	bus := events.NewBus(nil, nil, "", testLogger())
	stream := NewWalletStream(testLogger())
	bus.Subscribe(stream.HandleEvent)
	ledger := NewLedgerService(f.store, config.DefaultRates(), f.locks, bus, f.cache, testLogger())

	student := seedStudent(t, f.db, "WS100")
	wallet := seedWallet(t, f.db, student.ID, 20, 0)
	ch, cancel := stream.Subscribe(student.ID)
	defer cancel()

	_, err := ledger.Adjust(context.Background(), wallet.ID, 7, models.TransactionBonus, "Cleanup crew", Actor{ID: 1, Role: "admin"})
	require.NoError(t, err)

	select {
	case event := <-ch:
		require.Equal(t, events.CreditAdjusted, event.Type)
		require.Equal(t, wallet.ID, event.WalletID)
		require.InDelta(t, 27, event.Balance, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("expected adjustment event")
	}
}
