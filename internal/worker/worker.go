package worker

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/broker"
	"pricewatch/internal/models"
	"pricewatch/internal/service"
	"pricewatch/internal/util"

	"go.uber.org/zap"
)

// IngestWorker consumes scrape events and writes them through the ingest service
type IngestWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewIngestWorker creates a new ingest worker
func NewIngestWorker(consumer *broker.Consumer, ingest *service.IngestService) *IngestWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnPromotionsScraped(func(ctx context.Context, e *models.PromotionsScrapedEvent) error {
		_, err := ingest.IngestPromotions(ctx, e.Source, e.Promotions)
		return err
	})
	eventHandler.OnReceiptScraped(func(ctx context.Context, e *models.ReceiptScrapedEvent) error {
		_, err := ingest.IngestReceipt(ctx, e.Username, e.Receipt, e.Items)
		return err
	})

	return &IngestWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Named("ingest_worker"),
	}
}

// Start starts the worker
func (w *IngestWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ingest worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *IngestWorker) Stop() error {
	w.logger.Info("Stopping ingest worker")
	return w.consumer.Close()
}

// Locker is a lock shared between processes
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Purger deletes expired promotions
type Purger interface {
	PurgeExpired(ctx context.Context, today models.Date) (int64, error)
}

// Notifier reconciles a user and publishes the report
type Notifier interface {
	Notify(ctx context.Context, username string) (*service.NotifyResult, error)
}

const cycleLockKey = "pricewatch:cycle"

// CycleWorker runs purge then reconcile-and-notify on a fixed interval
type CycleWorker struct {
	locker   Locker
	purger   Purger
	notifier Notifier
	username string
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewCycleWorker creates a new cycle worker. A nil clock uses time.Now.
func NewCycleWorker(
	locker Locker,
	purger Purger,
	notifier Notifier,
	username string,
	interval, lockTTL time.Duration,
	now func() time.Time,
) *CycleWorker {
	if now == nil {
		now = time.Now
	}
	return &CycleWorker{
		locker:   locker,
		purger:   purger,
		notifier: notifier,
		username: username,
		interval: interval,
		lockTTL:  lockTTL,
		now:      now,
		logger:   util.Named("cycle_worker"),
	}
}

// Start runs a cycle immediately and then on every tick until ctx is done
func (w *CycleWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cycle worker",
		zap.String("username", w.username),
		zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Cycle worker stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle. It returns false without doing anything when another
// process holds the cycle lock.
func (w *CycleWorker) RunOnce(ctx context.Context) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CycleWorker.RunOnce")
	defer span.End()

	acquired, err := w.locker.AcquireLock(ctx, cycleLockKey, w.lockTTL)
	if err != nil {
		util.CycleRunsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	if !acquired {
		util.CycleRunsTotal.WithLabelValues("locked").Inc()
		w.logger.Info("Cycle already running elsewhere")
		return false, nil
	}
	defer func() {
		if err := w.locker.ReleaseLock(context.Background(), cycleLockKey); err != nil {
			w.logger.Error("Failed to release cycle lock", zap.Error(err))
		}
	}()

	purged, err := w.purger.PurgeExpired(ctx, models.Today(w.now))
	if err != nil {
		util.CycleRunsTotal.WithLabelValues("error").Inc()
		return true, fmt.Errorf("failed to purge expired promotions: %w", err)
	}
	util.PromotionsPurgedTotal.Add(float64(purged))

	res, err := w.notifier.Notify(ctx, w.username)
	if err != nil {
		util.CycleRunsTotal.WithLabelValues("error").Inc()
		return true, fmt.Errorf("failed to notify %s: %w", w.username, err)
	}

	util.CycleRunsTotal.WithLabelValues("ok").Inc()
	w.logger.Info("Cycle complete",
		zap.Int64("purged", purged),
		zap.Int("adjustments", len(res.Report.Lines)),
		zap.Bool("published", res.Published),
		zap.Bool("suppressed", res.Suppressed))
	return true, nil
}
