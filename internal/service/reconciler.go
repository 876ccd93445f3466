package service

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RefundWindowDays is how long after purchase a price adjustment can be claimed
const RefundWindowDays = 30

// LineItemReader is the read side of the receipt store used for matching
type LineItemReader interface {
	LineItemsNotOnSale(ctx context.Context, username string) ([]models.ReceiptItem, error)
}

// SaleChecker looks up the active promotions for a set of items
type SaleChecker interface {
	CheckSale(ctx context.Context, itemIDs []int64) (*SaleCheck, error)
}

// Reconciler matches a user's full-price purchases against active promotions
type Reconciler struct {
	items  LineItemReader
	sales  SaleChecker
	now    func() time.Time
	logger *zap.Logger
}

// NewReconciler creates a new reconciler. A nil clock uses time.Now.
func NewReconciler(items LineItemReader, sales SaleChecker, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		items:  items,
		sales:  sales,
		now:    now,
		logger: util.Named("reconciler"),
	}
}

// Reconcile finds every purchase by username that is now on sale and computes
// its savings and refund deadline.
func (r *Reconciler) Reconcile(ctx context.Context, username string) (*models.ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile", attribute.String("username", username))
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	today := models.Today(r.now)
	result := &models.ReconcileResult{
		Username:     username,
		EvaluatedOn:  today,
		Adjustments:  []models.Adjustment{},
		Promotions:   map[int64]models.Promotion{},
		ReceiptIDs:   []string{},
		TotalSavings: decimal.Zero,
	}

	lines, err := r.items.LineItemsNotOnSale(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}

	candidates := make([]models.ReceiptItem, 0, len(lines))
	itemIDs := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.OnSale {
			continue
		}
		candidates = append(candidates, line)
		if _, ok := seen[line.ItemID]; !ok {
			seen[line.ItemID] = struct{}{}
			itemIDs = append(itemIDs, line.ItemID)
		}
	}

	if len(candidates) == 0 {
		r.logger.Info("No full-price purchases to reconcile", zap.String("username", username))
		return result, nil
	}

	check, err := r.sales.CheckSale(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check sales: %w", err)
	}
	onSale := check.ByItemID()

	receiptSeen := make(map[string]struct{})
	for _, line := range candidates {
		promo, ok := onSale[line.ItemID]
		if !ok || !promo.ActiveOn(today) {
			continue
		}

		adj := Adjust(line, promo, today)
		result.Adjustments = append(result.Adjustments, adj)
		result.Promotions[promo.ItemID] = promo
		result.TotalSavings = result.TotalSavings.Add(adj.TotalItemSavings)

		if _, ok := receiptSeen[line.ReceiptID]; !ok {
			receiptSeen[line.ReceiptID] = struct{}{}
			result.ReceiptIDs = append(result.ReceiptIDs, line.ReceiptID)
		}
	}

	util.AdjustmentsFoundTotal.Add(float64(len(result.Adjustments)))
	r.logger.Info("Reconciled purchases",
		zap.String("username", username),
		zap.Int("candidates", len(candidates)),
		zap.Int("adjustments", len(result.Adjustments)),
		zap.String("total_savings", result.TotalSavings.StringFixed(2)))
	return result, nil
}

// Adjust computes savings and the refund deadline for one purchase covered by promo.
// The deadline is the earlier of the end of the refund window and the promotion expiry.
func Adjust(line models.ReceiptItem, promo models.Promotion, today models.Date) models.Adjustment {
	windowEnd := line.ReceiptDate.AddDays(RefundWindowDays)
	deadline := windowEnd
	if promo.ExpiryDate.Valid {
		deadline = models.MinDate(windowEnd, promo.ExpiryDate.Date)
	}

	return models.Adjustment{
		LineItem:          line,
		Promotion:         promo,
		TotalItemSavings:  promo.Savings.Mul(decimal.NewFromInt(int64(line.Unit))),
		ThirtyDayDeadline: windowEnd,
		RefundDeadline:    deadline,
		DaysLeft:          today.DaysUntil(deadline),
	}
}
