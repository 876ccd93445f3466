package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/store"
	"pricewatch/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReceiptReader fetches receipt metadata for attachments
type ReceiptReader interface {
	ReceiptsByIDs(ctx context.Context, receiptIDs []string) ([]models.Receipt, error)
}

// ReportGuard makes report delivery happen at most once per key
type ReportGuard interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key string) error
}

// ReportPublisher hands a finished report to the notification sender
type ReportPublisher interface {
	PublishAdjustmentReport(ctx context.Context, event *models.AdjustmentReportEvent) error
}

// NotifyResult is the outcome of one notification attempt
type NotifyResult struct {
	Report     models.AdjustmentReport `json:"report"`
	Published  bool                    `json:"published"`
	Suppressed bool                    `json:"suppressed"`
}

// Notifier reconciles a user's purchases and publishes the resulting report
type Notifier struct {
	reconciler *Reconciler
	receipts   ReceiptReader
	guard      ReportGuard
	publisher  ReportPublisher
	reportTTL  time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewNotifier creates a new notifier. guard and publisher may be nil, in which case
// every call builds the report and nothing is published.
func NewNotifier(
	reconciler *Reconciler,
	receipts ReceiptReader,
	guard ReportGuard,
	publisher ReportPublisher,
	reportTTL time.Duration,
	now func() time.Time,
) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{
		reconciler: reconciler,
		receipts:   receipts,
		guard:      guard,
		publisher:  publisher,
		reportTTL:  reportTTL,
		now:        now,
		logger:     util.Named("notifier"),
	}
}

// Notify builds today's report for username and publishes it unless it was
// already published today.
func (n *Notifier) Notify(ctx context.Context, username string) (*NotifyResult, error) {
	ctx, span := util.StartSpan(ctx, "Notifier.Notify", attribute.String("username", username))
	defer span.End()

	report, err := n.Report(ctx, username)
	if err != nil {
		return nil, err
	}
	res := &NotifyResult{Report: *report}

	if n.publisher == nil {
		return res, nil
	}

	key := fmt.Sprintf("report:%s:%s", username, report.GeneratedOn)
	if n.guard != nil {
		first, err := n.guard.MarkOnce(ctx, key, n.reportTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check report guard: %w", err)
		}
		if !first {
			res.Suppressed = true
			util.ReportsPublishedTotal.WithLabelValues("suppressed").Inc()
			n.logger.Info("Report already published today", zap.String("username", username))
			return res, nil
		}
	}

	event := &models.AdjustmentReportEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAdjustmentReport,
			Timestamp: n.now(),
		},
		Report: *report,
	}
	if err := n.publisher.PublishAdjustmentReport(ctx, event); err != nil {
		util.ReportsPublishedTotal.WithLabelValues("failed").Inc()
		if n.guard != nil {
			if clearErr := n.guard.Clear(ctx, key); clearErr != nil {
				n.logger.Error("Failed to clear report guard", zap.String("key", key), zap.Error(clearErr))
			}
		}
		return nil, fmt.Errorf("failed to publish report: %w", err)
	}

	res.Published = true
	util.ReportsPublishedTotal.WithLabelValues("published").Inc()
	n.logger.Info("Report published",
		zap.String("username", username),
		zap.String("subject", report.Subject),
		zap.Int("lines", len(report.Lines)),
		zap.String("total_savings", report.TotalSavings))
	return res, nil
}

// Report reconciles username and renders the result without publishing it
func (n *Notifier) Report(ctx context.Context, username string) (*models.AdjustmentReport, error) {
	result, err := n.reconciler.Reconcile(ctx, username)
	if err != nil {
		return nil, err
	}

	var receipts []models.Receipt
	if len(result.ReceiptIDs) > 0 {
		receipts, err = n.receipts.ReceiptsByIDs(ctx, result.ReceiptIDs)
		if err != nil && !errors.Is(err, store.ErrEmptyIDSet) {
			return nil, fmt.Errorf("failed to load receipts: %w", err)
		}
	}

	report := BuildReport(result, receipts)
	return &report, nil
}
