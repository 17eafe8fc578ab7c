package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/database"
	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/geotrack"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

var testDBCounter int64

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// setupStore opens a private in-memory database. A single connection keeps
// SQLite from reporting table locks when goroutines share it.
func setupStore(t *testing.T) (*gorm.DB, repository.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db, repository.NewStore(db)
}

func newTestCache(t *testing.T) (*WalletCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWalletCache(client, time.Minute, testLogger()), mr
}

func seedStudent(t *testing.T, db *gorm.DB, number string) models.Student {
	t.Helper()
	student := models.Student{StudentNumber: number, Name: "Student " + number, Email: number + "@campus.test"}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedActivity(t *testing.T, db *gorm.DB, activity models.Activity) models.Activity {
	t.Helper()
	if activity.Title == "" {
		activity.Title = "Activity"
	}
	if activity.ActivityDate.IsZero() {
		activity.ActivityDate = time.Now()
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&activity).Error)
	return activity
}

func seedWallet(t *testing.T, db *gorm.DB, studentID uint, earned, spent float64) models.CreditWallet {
	t.Helper()
	wallet := models.CreditWallet{StudentID: studentID, CreditsEarned: earned, CreditsSpent: spent, TotalCredits: earned - spent, Level: levelFor(earned - spent)}
	require.NoError(t, db.Omit(clause.Associations).Create(&wallet).Error)
	if earned-spent != 0 {
		require.NoError(t, db.Create(&models.CreditTransaction{
			WalletID:        wallet.ID,
			TransactionType: models.TransactionBonus,
			Amount:          earned - spent,
			BalanceAfter:    earned - spent,
			Description:     "opening balance",
		}).Error)
	}
	return wallet
}

func floatRef(v float64) *float64 { return &v }

func intRef(v int) *int { return &v }

// northboundTrack covers roughly 4.003 km in 20 minutes.
func northboundTrack() []geotrack.Point {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return []geotrack.Point{
		{Latitude: 12.900, Longitude: 77.600, Timestamp: start},
		{Latitude: 12.918, Longitude: 77.600, Timestamp: start.Add(10 * time.Minute)},
		{Latitude: 12.936, Longitude: 77.600, Timestamp: start.Add(20 * time.Minute)},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type ledgerFixture struct {
	db        *gorm.DB
	store     repository.Store
	locks     *KeyedLocker
	publisher *recordingPublisher
	cache     *WalletCache
	redis     *miniredis.Miniredis
	ledger    LedgerService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db, store := setupStore(t)
	cache, mr := newTestCache(t)
	locks := NewKeyedLocker()
	publisher := &recordingPublisher{}

	return &ledgerFixture{
		db:        db,
		store:     store,
		locks:     locks,
		publisher: publisher,
		cache:     cache,
		redis:     mr,
		ledger:    NewLedgerService(store, config.DefaultRates(), locks, publisher, cache, testLogger()),
	}
}

func (f *ledgerFixture) wallet(t *testing.T, studentID uint) models.CreditWallet {
	t.Helper()
	var wallet models.CreditWallet
	require.NoError(t, f.db.Where("student_id = ?", studentID).First(&wallet).Error)
	return wallet
}

func dtoWalletStub(studentID uint) dto.WalletResponse {
	return dto.WalletResponse{StudentID: studentID, Level: string(models.LevelSeed)}
}
