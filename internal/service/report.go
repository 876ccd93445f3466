package service

import (
	"fmt"
	"strconv"

	"pricewatch/internal/models"

	"github.com/shopspring/decimal"
)

const (
	SubjectAdjustmentsFound = "Costco Price Adjustment Opportunity Detected"
	SubjectNoAdjustments    = "No Costco Price Adjustments Found"
)

// HotdogPrice is the food-court hot dog combo price used to put savings in perspective
var HotdogPrice = decimal.RequireFromString("1.50")

// BuildReport renders a reconciliation result. receipts supplies the screenshot
// paths attached to the notification; receipts with no path are left out.
func BuildReport(result *models.ReconcileResult, receipts []models.Receipt) models.AdjustmentReport {
	report := models.AdjustmentReport{
		Username:         result.Username,
		GeneratedOn:      result.EvaluatedOn,
		Lines:            []models.ReportLine{},
		TotalSavings:     result.TotalSavings.StringFixed(2),
		HotdogEquivalent: result.TotalSavings.Div(HotdogPrice).StringFixed(2),
		AttachmentPaths:  []string{},
	}

	if len(result.Adjustments) == 0 {
		report.Subject = SubjectNoAdjustments
		return report
	}
	report.Subject = SubjectAdjustmentsFound

	for i, adj := range result.Adjustments {
		line := adj.LineItem
		promo := adj.Promotion
		report.Lines = append(report.Lines, models.ReportLine{
			Index:            i + 1,
			ItemID:           line.ItemID,
			ItemName:         line.ItemName,
			Amount:           line.Amount.StringFixed(2),
			Unit:             line.Unit,
			PurchaseDate:     line.ReceiptDate.String(),
			SaleExpiryDate:   promo.ExpiryDate.String(),
			ReceiptID:        line.ReceiptID,
			SalePrice:        salePriceLabel(promo.SalePrice),
			PerUnitSavings:   "$" + promo.Savings.StringFixed(2),
			TotalItemSavings: "$" + adj.TotalItemSavings.StringFixed(2),
			DaysLeft:         DaysLeftLabel(adj.DaysLeft),
			LastRefundDay:    adj.RefundDeadline.String(),
		})
	}

	paths := make(map[string]string, len(receipts))
	for _, r := range receipts {
		paths[r.ReceiptID] = r.ReceiptPath
	}
	for _, id := range result.ReceiptIDs {
		if p := paths[id]; p != "" {
			report.AttachmentPaths = append(report.AttachmentPaths, p)
		}
	}
	return report
}

// DaysLeftLabel renders a day count as "N days", or "N days ago" once it has passed
func DaysLeftLabel(days int) string {
	if days < 0 {
		return strconv.Itoa(-days) + " days ago"
	}
	return strconv.Itoa(days) + " days"
}

func salePriceLabel(p decimal.NullDecimal) string {
	if !p.Valid {
		return "n/a"
	}
	return fmt.Sprintf("$%s", p.Decimal.StringFixed(2))
}
