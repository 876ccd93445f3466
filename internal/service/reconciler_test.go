package service

import (
	"context"
	"testing"
	"time"

	"pricewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func purchase(receiptID string, itemID int64, unit int, bought string, onSale bool) models.ReceiptItem {
	return models.ReceiptItem{
		ItemID:      itemID,
		ItemName:    "item",
		Amount:      dec("24.99"),
		Unit:        unit,
		OnSale:      onSale,
		ReceiptDate: day(bought),
		ReceiptID:   receiptID,
		Username:    "alice",
	}
}

func newTestReconciler(promos *fakePromotionStore, receipts *fakeReceiptStore, now func() time.Time) *Reconciler {
	return NewReconciler(receipts, NewSaleService(promos, now), now)
}

func TestReconcileWithinWindow(t *testing.T) {
	now := clockAt(2025, 6, 15)
	promos := newFakePromotionStore(promotion(100, "10.00", "2025-06-30"))
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{purchase("R1", 100, 2, "2025-06-10", false)}

	result, err := newTestReconciler(promos, receipts, now).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 1)

	adj := result.Adjustments[0]
	assert.Equal(t, "20.00", adj.TotalItemSavings.StringFixed(2))
	assert.Equal(t, "2025-07-10", adj.ThirtyDayDeadline.String())
	assert.Equal(t, "2025-06-30", adj.RefundDeadline.String())
	assert.Equal(t, 15, adj.DaysLeft)
	assert.Equal(t, "20.00", result.TotalSavings.StringFixed(2))
	assert.Equal(t, []string{"R1"}, result.ReceiptIDs)
	assert.Contains(t, result.Promotions, int64(100))
}

func TestReconcileWindowAlreadyClosed(t *testing.T) {
	now := clockAt(2025, 6, 15)
	promos := newFakePromotionStore(promotion(100, "10.00", "2025-06-30"))
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{purchase("R1", 100, 1, "2025-05-01", false)}

	result, err := newTestReconciler(promos, receipts, now).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 1)

	adj := result.Adjustments[0]
	assert.Equal(t, "2025-05-31", adj.RefundDeadline.String())
	assert.Equal(t, -15, adj.DaysLeft)
	assert.Equal(t, "15 days ago", DaysLeftLabel(adj.DaysLeft))
}

func TestReconcileDeadlineNeverExceedsBounds(t *testing.T) {
	now := clockAt(2025, 6, 15)
	promos := newFakePromotionStore(
		promotion(100, "1.00", "2025-06-20"),
		promotion(200, "1.00", "2025-08-01"),
	)
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{
		purchase("R1", 100, 1, "2025-06-01", false),
		purchase("R1", 200, 1, "2025-06-01", false),
	}

	result, err := newTestReconciler(promos, receipts, now).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 2)
	for _, adj := range result.Adjustments {
		assert.False(t, adj.RefundDeadline.After(adj.ThirtyDayDeadline))
		assert.False(t, adj.RefundDeadline.After(adj.Promotion.ExpiryDate.Date))
	}
}

func TestReconcileExpiryIsInclusive(t *testing.T) {
	promos := newFakePromotionStore(promotion(100, "3.00", "2025-06-15"))
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{purchase("R1", 100, 1, "2025-06-10", false)}

	result, err := newTestReconciler(promos, receipts, clockAt(2025, 6, 15)).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, 0, result.Adjustments[0].DaysLeft)

	result, err = newTestReconciler(promos, receipts, clockAt(2025, 6, 16)).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, result.Adjustments)
}

func TestReconcileSkipsDiscountedPurchases(t *testing.T) {
	promos := newFakePromotionStore(promotion(100, "10.00", "2025-06-30"))
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{purchase("R1", 100, 1, "2025-06-10", true)}

	result, err := newTestReconciler(promos, receipts, clockAt(2025, 6, 15)).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, result.Adjustments)
	assert.True(t, result.TotalSavings.IsZero())
	assert.Zero(t, promos.queries)
}

func TestReconcileNullExpiryNeverMatches(t *testing.T) {
	promos := newFakePromotionStore(promotion(100, "10.00", "whenever"))
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{purchase("R1", 100, 1, "2025-06-10", false)}

	result, err := newTestReconciler(promos, receipts, clockAt(2025, 6, 15)).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, result.Adjustments)
}

func TestReconcileDuplicatePurchasesReportedSeparately(t *testing.T) {
	promos := newFakePromotionStore(promotion(100, "2.00", "2025-06-30"))
	receipts := newFakeReceiptStore()
	receipts.items = []models.ReceiptItem{
		purchase("R1", 100, 1, "2025-06-10", false),
		purchase("R2", 100, 3, "2025-06-12", false),
		purchase("R2", 100, 1, "2025-06-12", false),
	}

	result, err := newTestReconciler(promos, receipts, clockAt(2025, 6, 15)).Reconcile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, result.Adjustments, 3)
	assert.Equal(t, []string{"R1", "R2"}, result.ReceiptIDs)
	assert.Equal(t, "10.00", result.TotalSavings.StringFixed(2))
	assert.Len(t, result.Promotions, 1)
}

func TestReconcileNoPurchases(t *testing.T) {
	promos := newFakePromotionStore(promotion(100, "2.00", "2025-06-30"))

	result, err := newTestReconciler(promos, newFakeReceiptStore(), clockAt(2025, 6, 15)).Reconcile(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, result.Adjustments)
	assert.Empty(t, result.ReceiptIDs)
	assert.True(t, result.TotalSavings.IsZero())
	assert.Zero(t, promos.queries)
}
