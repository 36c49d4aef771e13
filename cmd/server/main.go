package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/handler"
	"github.com/midipay/financing-engine/internal/repository"
	"github.com/midipay/financing-engine/internal/scoring"
	"github.com/midipay/financing-engine/internal/service"
	"github.com/midipay/financing-engine/pkg/logger"
	"github.com/midipay/financing-engine/pkg/response"
)

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

	db, err := initDB(cfg)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	requestRepo := repository.NewRequestRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	snapshots := service.NewSnapshotBuilder(accountRepo, cfg.Policy.SnapshotWindow)
	scorer := buildScorer(cfg)

	financingService := service.NewFinancingService(
		requestRepo, ledgerRepo, snapshots, scorer, redisClient, cfg, zlog)

	financingHandler := handler.NewFinancingHandler(financingService, zlog)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	router := setupRoutes(financingHandler, healthHandler, zlog)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("scoring_source", cfg.Scoring.Source))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func buildScorer(cfg *config.Config) scoring.ScoringSource {
	if cfg.Scoring.Source == "remote" {
		return scoring.NewRemoteScorer(cfg)
	}
	return scoring.NewRuleScorer(cfg)
}

func setupRoutes(financingHandler *handler.FinancingHandler, healthHandler *handler.HealthHandler, zlog *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(zlog))

	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(response.JSONMiddleware)

	api.HandleFunc("/financing/requests", financingHandler.SubmitRequest).Methods("POST")
	api.HandleFunc("/financing/requests", financingHandler.ListRequests).Methods("GET")
	api.HandleFunc("/financing/requests/{id}", financingHandler.GetRequest).Methods("GET")
	api.HandleFunc("/financing/requests/{id}/schedule", financingHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/financing/requests/{id}/decision", financingHandler.ReviewDecision).Methods("POST")
	api.HandleFunc("/financing/requests/{id}/repayments", financingHandler.ApplyRepayment).Methods("POST")

	return router
}
