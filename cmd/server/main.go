package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/config"
	"pricewatch/internal/api"
	"pricewatch/internal/broker"
	"pricewatch/internal/redisclient"
	"pricewatch/internal/service"
	"pricewatch/internal/store"
	"pricewatch/internal/util"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pricewatch",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReports)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)

	saleService := service.NewSaleService(db, time.Now)
	ingestService := service.NewIngestService(db, db, time.Now)
	reconciler := service.NewReconciler(db, saleService, time.Now)
	notifier := service.NewNotifier(reconciler, db, redisClient, eventPublisher, cfg.Cycle.ReportTTL, time.Now)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	scrapeConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicScrapes, cfg.Kafka.ConsumerGroup)
	ingestWorker := worker.NewIngestWorker(scrapeConsumer, ingestService)
	go func() {
		if err := ingestWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Ingest worker error", zap.Error(err))
		}
	}()

	if cfg.Cycle.Username != "" {
		cycleWorker := worker.NewCycleWorker(redisClient, db, notifier,
			cfg.Cycle.Username, cfg.Cycle.Interval, cfg.Cycle.LockTTL, time.Now)
		go func() {
			if err := cycleWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Cycle worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("PRICEWATCH_USERNAME not set, periodic cycle disabled")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(db, saleService, ingestService, notifier, time.Now)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := ingestWorker.Stop(); err != nil {
		logger.Error("Error stopping ingest worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
