package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/repository"
	"github.com/midipay/financing-engine/internal/scoring"
	"github.com/midipay/financing-engine/internal/service"
	"github.com/midipay/financing-engine/pkg/logger"
)

// The reconciler closes the two gaps crash timing can leave behind: approved
// requests whose ledger credit never landed, and submitted requests the
// scoring source was unavailable for.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	requestRepo := repository.NewRequestRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	snapshots := service.NewSnapshotBuilder(accountRepo, cfg.Policy.SnapshotWindow)

	var scorer scoring.ScoringSource
	if cfg.Scoring.Source == "remote" {
		scorer = scoring.NewRemoteScorer(cfg)
	} else {
		scorer = scoring.NewRuleScorer(cfg)
	}

	financingService := service.NewFinancingService(
		requestRepo, ledgerRepo, snapshots, scorer, redisClient, cfg, zlog)

	c := cron.New(cron.WithSeconds())
	setupCronJobs(c, cfg, financingService, zlog)

	c.Start()
	zlog.Info("reconciler started",
		zap.String("ledger_cron", cfg.Reconciler.LedgerRetrySpec),
		zap.String("scoring_cron", cfg.Reconciler.ScoringRetrySpec))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down reconciler")
	<-c.Stop().Done()
	zlog.Info("reconciler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, svc *service.FinancingService, zlog *zap.Logger) {
	_, err := c.AddFunc(cfg.Reconciler.LedgerRetrySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		applied, err := svc.FinalizePending(ctx)
		if err != nil {
			zlog.Error("ledger credit reconciliation failed", zap.Error(err))
			return
		}
		if applied > 0 {
			zlog.Info("ledger credits reconciled", zap.Int("applied", applied))
		}
	})
	if err != nil {
		zlog.Fatal("scheduling ledger reconciliation failed", zap.Error(err))
	}

	_, err = c.AddFunc(cfg.Reconciler.ScoringRetrySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		scored, err := svc.ScorePending(ctx)
		if err != nil {
			zlog.Error("scoring reconciliation failed", zap.Error(err))
			return
		}
		if scored > 0 {
			zlog.Info("pending requests scored", zap.Int("scored", scored))
		}
	})
	if err != nil {
		zlog.Fatal("scheduling scoring reconciliation failed", zap.Error(err))
	}
}
