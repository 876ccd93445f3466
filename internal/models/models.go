package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promotion is one item currently known to be on sale
type Promotion struct {
	ItemID     int64               `db:"item_id" json:"item_id"`
	ItemName   string              `db:"item_name" json:"item_name"`
	Savings    decimal.Decimal     `db:"savings" json:"savings"`
	ExpiryDate NullDate            `db:"expiry_date" json:"expiry_date"`
	SalePrice  decimal.NullDecimal `db:"sale_price" json:"sale_price"`
}

// ActiveOn reports whether the promotion is still valid on day (expiry inclusive).
// A promotion without an expiry date is never active.
func (p Promotion) ActiveOn(day Date) bool {
	return p.ExpiryDate.Valid && !p.ExpiryDate.Date.Before(day)
}

// Receipt is one transaction receipt
type Receipt struct {
	ReceiptID   string    `db:"receipt_id" json:"receipt_id"`
	ReceiptDate time.Time `db:"receipt_date" json:"receipt_date"`
	ReceiptPath string    `db:"receipt_path" json:"receipt_path"`
}

// ReceiptItem is one line of a receipt
type ReceiptItem struct {
	ID          int64           `db:"id" json:"id"`
	ItemID      int64           `db:"item_id" json:"item_id"`
	ItemName    string          `db:"item_name" json:"item_name"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Unit        int             `db:"unit" json:"unit"`
	OnSale      bool            `db:"on_sale" json:"on_sale"`
	ReceiptDate Date            `db:"receipt_date" json:"receipt_date"`
	ReceiptID   string          `db:"receipt_id" json:"receipt_id"`
	ReceiptType string          `db:"receipt_type" json:"receipt_type"`
	Username    string          `db:"username" json:"username"`
	LineNo      int             `db:"line_no" json:"line_no"`
}

// Adjustment is a full-price purchase now covered by an active promotion
type Adjustment struct {
	LineItem          ReceiptItem     `json:"line_item"`
	Promotion         Promotion       `json:"promotion"`
	TotalItemSavings  decimal.Decimal `json:"total_item_savings"`
	ThirtyDayDeadline Date            `json:"thirty_day_deadline"`
	RefundDeadline    Date            `json:"refund_deadline"`
	DaysLeft          int             `json:"days_left"`
}

// ReconcileResult is what the reconciler hands to the report assembler
type ReconcileResult struct {
	Username     string              `json:"username"`
	EvaluatedOn  Date                `json:"evaluated_on"`
	Adjustments  []Adjustment        `json:"adjustments"`
	Promotions   map[int64]Promotion `json:"promotions"`
	ReceiptIDs   []string            `json:"receipt_ids"`
	TotalSavings decimal.Decimal     `json:"total_savings"`
}

// ReportLine is one rendered adjustment in a report
type ReportLine struct {
	Index            int    `json:"index"`
	ItemID           int64  `json:"item_id"`
	ItemName         string `json:"item_name"`
	Amount           string `json:"amount"`
	Unit             int    `json:"unit"`
	PurchaseDate     string `json:"purchase_date"`
	SaleExpiryDate   string `json:"sale_expiry_date"`
	ReceiptID        string `json:"receipt_id"`
	SalePrice        string `json:"sale_price"`
	PerUnitSavings   string `json:"per_unit_savings"`
	TotalItemSavings string `json:"total_item_savings"`
	DaysLeft         string `json:"days_left"`
	LastRefundDay    string `json:"last_refund_day"`
}

// AdjustmentReport is the notification payload for one user
type AdjustmentReport struct {
	Username         string       `json:"username"`
	Subject          string       `json:"subject"`
	GeneratedOn      Date         `json:"generated_on"`
	Lines            []ReportLine `json:"lines"`
	TotalSavings     string       `json:"total_savings"`
	HotdogEquivalent string       `json:"hotdog_equivalent"`
	AttachmentPaths  []string     `json:"attachment_paths"`
}
