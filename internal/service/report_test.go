package service

import (
	"testing"

	"pricewatch/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReportNoAdjustments(t *testing.T) {
	report := BuildReport(&models.ReconcileResult{
		Username:     "alice",
		EvaluatedOn:  day("2025-06-15"),
		TotalSavings: decimal.Zero,
	}, nil)

	assert.Equal(t, SubjectNoAdjustments, report.Subject)
	assert.Empty(t, report.Lines)
	assert.Equal(t, "0.00", report.TotalSavings)
	assert.Equal(t, "0.00", report.HotdogEquivalent)
	assert.Empty(t, report.AttachmentPaths)
}

func TestBuildReportRendersAdjustments(t *testing.T) {
	today := day("2025-06-15")
	promo := promotion(100, "10.00", "2025-06-30")
	promo.SalePrice = decimal.NewNullDecimal(dec("19.99"))

	fresh := Adjust(purchase("R1", 100, 1, "2025-06-10", false), promo, today)
	stale := Adjust(purchase("R2", 100, 1, "2025-05-01", false), promo, today)

	result := &models.ReconcileResult{
		Username:     "alice",
		EvaluatedOn:  today,
		Adjustments:  []models.Adjustment{fresh, stale},
		Promotions:   map[int64]models.Promotion{100: promo},
		ReceiptIDs:   []string{"R1", "R2"},
		TotalSavings: fresh.TotalItemSavings.Add(stale.TotalItemSavings),
	}
	receipts := []models.Receipt{
		{ReceiptID: "R2", ReceiptPath: "receipts/r2.png"},
		{ReceiptID: "R1", ReceiptPath: ""},
	}

	report := BuildReport(result, receipts)
	assert.Equal(t, SubjectAdjustmentsFound, report.Subject)
	require.Len(t, report.Lines, 2)

	first := report.Lines[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "24.99", first.Amount)
	assert.Equal(t, "2025-06-10", first.PurchaseDate)
	assert.Equal(t, "2025-06-30", first.SaleExpiryDate)
	assert.Equal(t, "$19.99", first.SalePrice)
	assert.Equal(t, "$10.00", first.PerUnitSavings)
	assert.Equal(t, "$10.00", first.TotalItemSavings)
	assert.Equal(t, "15 days", first.DaysLeft)
	assert.Equal(t, "2025-06-30", first.LastRefundDay)

	second := report.Lines[1]
	assert.Equal(t, "15 days ago", second.DaysLeft)
	assert.Equal(t, "2025-05-31", second.LastRefundDay)

	assert.Equal(t, "20.00", report.TotalSavings)
	assert.Equal(t, "13.33", report.HotdogEquivalent)
	assert.Equal(t, []string{"receipts/r2.png"}, report.AttachmentPaths)
}

func TestDaysLeftLabel(t *testing.T) {
	assert.Equal(t, "0 days", DaysLeftLabel(0))
	assert.Equal(t, "3 days", DaysLeftLabel(3))
	assert.Equal(t, "1 days ago", DaysLeftLabel(-1))
}
