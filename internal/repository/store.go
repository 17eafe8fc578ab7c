package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles the repositories bound to one database handle.
type Repositories struct {
	Students     StudentRepository
	Activities   ActivityRepository
	Verification VerificationRepository
	Wallets      WalletRepository
	Rewards      RewardRepository
	Audit        AuditLogRepository
}

// Store opens transactions spanning several repositories.
type Store interface {
	Repos() Repositories
	Transaction(ctx context.Context, fn func(Repositories) error) error
}

type store struct {
	db    *gorm.DB
	repos Repositories
}

// NewStore wires every repository against db.
func NewStore(db *gorm.DB) Store {
	return &store{db: db, repos: newRepositories(db)}
}

func newRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Students:     NewStudentRepository(db),
		Activities:   NewActivityRepository(db),
		Verification: NewVerificationRepository(db),
		Wallets:      NewWalletRepository(db),
		Rewards:      NewRewardRepository(db),
		Audit:        NewAuditLogRepository(db),
	}
}

func (s *store) Repos() Repositories {
	return s.repos
}

// Transaction runs fn with repositories bound to a single database transaction.
func (s *store) Transaction(ctx context.Context, fn func(Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}
