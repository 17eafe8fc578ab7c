package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/database"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/handler"
	"github.com/noah-isme/green-campus-api/internal/middleware"
	"github.com/noah-isme/green-campus-api/internal/repository"
	"github.com/noah-isme/green-campus-api/internal/router"
	"github.com/noah-isme/green-campus-api/internal/service"
	"github.com/noah-isme/green-campus-api/internal/verification"
	cloud "github.com/noah-isme/green-campus-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "green-campus-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, events stay on redis")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(redisClient, natsConn, cfg.EventChannel, logger)

	var storage service.EvidenceStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("evidence uploads disabled")
	} else {
		storage = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)
	repos := store.Repos()
	locks := service.NewKeyedLocker()
	cache := service.NewWalletCache(redisClient, cfg.WalletCacheTTL, logger)

	auditService := service.NewAuditService(repos.Audit, logger)
	ledgerService := service.NewLedgerService(store, cfg.Rates, locks, bus, cache, logger)
	activityService := service.NewActivityService(store, ledgerService, auditService, validate, logger)
	verificationService := service.NewVerificationService(store, verification.NewEngine(cfg.Verification), logger)
	evidenceService := service.NewEvidenceService(storage, repos.Activities, cfg.EvidenceMaxSizeMB, logger)
	walletService := service.NewWalletService(store, locks, cache, logger)
	rewardService := service.NewRewardService(repos.Rewards, auditService, validate, logger)
	redemptionService := service.NewRedemptionService(store, locks, bus, cache, logger)
	reconciliationService := service.NewReconciliationService(repos.Wallets, cfg.ReconcileInterval, logger)
	walletStream := service.NewWalletStream(logger)

	bus.Subscribe(walletService.HandleEvent)
	bus.Subscribe(walletStream.HandleEvent)
	bus.Start(ctx)

	if err := reconciliationService.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule ledger reconciliation")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:     handler.NewActivityHandler(activityService, evidenceService, validate, logger),
		VerificationHandler: handler.NewVerificationHandler(verificationService, validate, logger),
		WalletHandler:       handler.NewWalletHandler(walletService, logger),
		WalletStreamHandler: handler.NewWalletStreamHandler(walletStream, logger, cfg.StreamPingInterval),
		RewardHandler:       handler.NewRewardHandler(rewardService, redemptionService, logger),
		AdminHandler: handler.NewAdminHandler(handler.AdminServices{
			Ledger:         ledgerService,
			Rewards:        rewardService,
			Redemptions:    redemptionService,
			Audit:          auditService,
			Reconciliation: reconciliationService,
		}, validate, logger),
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes: map[string]handler.HealthProbe{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, reconciliationService, logger)
}

func waitForShutdown(app *fiber.App, reconciliation service.ReconciliationService, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := reconciliation.Stop(); err != nil {
		logger.Error().Err(err).Msg("failed to stop reconciliation scheduler")
	}

	logger.Info().Msg("server stopped")
}
