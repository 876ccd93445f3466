package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrMissingReceiptID is returned when a receipt payload carries no receipt id
var ErrMissingReceiptID = errors.New("receipt id is required")

// ErrNoValidLineItems is returned when every line of a receipt failed validation.
// The receipt is not recorded, so a corrected resend is still accepted.
var ErrNoValidLineItems = errors.New("receipt has no valid line items")

// discountPrefix marks an instant-savings line; the captured number is the discounted item.
var discountPrefix = regexp.MustCompile(`^TPD/(\d+)`)

// PromotionWriter is the write side of the promotion store
type PromotionWriter interface {
	UpsertPromotions(ctx context.Context, promotions []models.Promotion) (int, error)
	PurgeExpired(ctx context.Context, today models.Date) (int64, error)
}

// ReceiptWriter is the write side of the receipt store
type ReceiptWriter interface {
	KnownReceiptIDs(ctx context.Context) (map[string]struct{}, error)
	RecordReceipt(ctx context.Context, receipt models.Receipt) error
	RecordLineItems(ctx context.Context, items []models.ReceiptItem) (int, error)
}

// PromotionIngestResult summarizes one promotion batch
type PromotionIngestResult struct {
	Source   string `json:"source"`
	Received int    `json:"received"`
	Upserted int    `json:"upserted"`
	Skipped  int    `json:"skipped"`
	Purged   int64  `json:"purged"`
}

// ReceiptIngestResult summarizes one receipt
type ReceiptIngestResult struct {
	ReceiptID string `json:"receipt_id"`
	Duplicate bool   `json:"duplicate"`
	Recorded  int    `json:"recorded"`
	OnSale    int    `json:"on_sale"`
	Skipped   int    `json:"skipped"`
}

// IngestService validates scraped records and writes them to the store
type IngestService struct {
	promotions PromotionWriter
	receipts   ReceiptWriter
	now        func() time.Time
	logger     *zap.Logger
}

// NewIngestService creates a new ingest service. A nil clock uses time.Now.
func NewIngestService(promotions PromotionWriter, receipts ReceiptWriter, now func() time.Time) *IngestService {
	if now == nil {
		now = time.Now
	}
	return &IngestService{
		promotions: promotions,
		receipts:   receipts,
		now:        now,
		logger:     util.Named("ingest"),
	}
}

// IngestPromotions purges expired promotions, then upserts the valid records of
// one scrape. Malformed records are skipped; an unparseable expiry is stored as NULL.
func (s *IngestService) IngestPromotions(ctx context.Context, source string, raw []models.RawPromotion) (*PromotionIngestResult, error) {
	ctx, span := util.StartSpan(ctx, "IngestService.IngestPromotions",
		attribute.String("source", source), attribute.Int("count", len(raw)))
	defer span.End()

	result := &PromotionIngestResult{Source: source, Received: len(raw)}

	purged, err := s.promotions.PurgeExpired(ctx, models.Today(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to purge expired promotions: %w", err)
	}
	result.Purged = purged
	util.PromotionsPurgedTotal.Add(float64(purged))

	valid := make([]models.Promotion, 0, len(raw))
	for _, r := range raw {
		p, reason := toPromotion(r)
		if reason != "" {
			result.Skipped++
			util.PromotionsSkippedTotal.WithLabelValues(reason).Inc()
			s.logger.Warn("Skipping promotion",
				zap.String("source", source),
				zap.String("item_id", string(r.ItemID)),
				zap.String("reason", reason))
			continue
		}
		if !p.ExpiryDate.Valid && strings.TrimSpace(r.ExpiryDate) != "" {
			s.logger.Warn("Unparseable expiry date stored as NULL",
				zap.Int64("item_id", p.ItemID),
				zap.String("expiry_date", r.ExpiryDate))
		}
		valid = append(valid, p)
	}

	n, err := s.promotions.UpsertPromotions(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to store promotions: %w", err)
	}
	result.Upserted = n
	util.PromotionsUpsertedTotal.WithLabelValues(source).Add(float64(n))

	s.logger.Info("Promotions ingested",
		zap.String("source", source),
		zap.Int("received", result.Received),
		zap.Int("upserted", result.Upserted),
		zap.Int("skipped", result.Skipped),
		zap.Int64("purged", result.Purged))
	return result, nil
}

// toPromotion validates a raw record; a non-empty reason means it must be skipped.
func toPromotion(r models.RawPromotion) (models.Promotion, string) {
	id, err := r.ItemID.Int64()
	if err != nil {
		return models.Promotion{}, "invalid_item_id"
	}
	savings, err := r.Savings.Decimal()
	if err != nil || savings.IsNegative() {
		return models.Promotion{}, "invalid_savings"
	}

	p := models.Promotion{
		ItemID:     id,
		ItemName:   strings.TrimSpace(r.ItemName),
		Savings:    savings,
		ExpiryDate: models.NewNullDate(r.ExpiryDate),
	}
	if !r.SalePrice.IsEmpty() {
		price, err := r.SalePrice.Decimal()
		if err != nil || price.IsNegative() {
			return models.Promotion{}, "invalid_sale_price"
		}
		p.SalePrice = decimal.NewNullDecimal(price)
	}
	return p, ""
}

// IngestReceipt stores one receipt and its lines unless the receipt id is already
// known. Lines named TPD/<item> mark <item> as bought on sale and are not stored.
func (s *IngestService) IngestReceipt(ctx context.Context, username string, receipt models.RawReceipt, raw []models.RawLineItem) (*ReceiptIngestResult, error) {
	receiptID := strings.TrimSpace(receipt.ReceiptID)
	if receiptID == "" {
		for _, it := range raw {
			if id := strings.TrimSpace(it.ReceiptID); id != "" {
				receiptID = id
				break
			}
		}
	}
	if receiptID == "" {
		return nil, ErrMissingReceiptID
	}

	ctx, span := util.StartSpan(ctx, "IngestService.IngestReceipt",
		attribute.String("receipt_id", receiptID), attribute.Int("count", len(raw)))
	defer span.End()

	result := &ReceiptIngestResult{ReceiptID: receiptID}

	known, err := s.receipts.KnownReceiptIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known receipts: %w", err)
	}
	if _, ok := known[receiptID]; ok {
		result.Duplicate = true
		util.ReceiptsDuplicateTotal.Inc()
		s.logger.Info("Receipt already processed", zap.String("receipt_id", receiptID))
		return result, nil
	}

	var fallback models.Date
	if ts, err := receiptTimestamp(receipt, nil); err == nil {
		fallback = models.DateOf(ts)
	}

	items, skipped := s.toLineItems(username, receiptID, fallback, raw)
	result.Skipped = skipped
	if len(items) == 0 && skipped > 0 {
		s.logger.Warn("Receipt left unrecorded",
			zap.String("receipt_id", receiptID),
			zap.Int("skipped", skipped))
		return nil, fmt.Errorf("receipt %s: %w", receiptID, ErrNoValidLineItems)
	}
	for _, it := range items {
		if it.OnSale {
			result.OnSale++
		}
	}

	receiptTime, err := receiptTimestamp(receipt, items)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, err)
	}

	n, err := s.receipts.RecordLineItems(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to store line items: %w", err)
	}
	result.Recorded = n

	if err := s.receipts.RecordReceipt(ctx, models.Receipt{
		ReceiptID:   receiptID,
		ReceiptDate: receiptTime,
		ReceiptPath: receipt.ReceiptPath,
	}); err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	util.ReceiptsIngestedTotal.Inc()
	s.logger.Info("Receipt ingested",
		zap.String("receipt_id", receiptID),
		zap.String("username", username),
		zap.Int("recorded", result.Recorded),
		zap.Int("on_sale", result.OnSale),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// toLineItems converts raw lines in payload order. line_no is the 1-based payload
// position, so it stays stable when the same receipt is sent again. A line without a
// usable date takes fallback, the receipt's own date, when that is set.
func (s *IngestService) toLineItems(username, receiptID string, fallback models.Date, raw []models.RawLineItem) ([]models.ReceiptItem, int) {
	discounted := make(map[int64]struct{})
	discountLines := make(map[string]struct{})
	for _, it := range raw {
		m := discountPrefix.FindStringSubmatch(strings.TrimSpace(it.ItemName))
		if m == nil {
			continue
		}
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			discounted[id] = struct{}{}
		}
		discountLines[strings.TrimSpace(string(it.ItemID))] = struct{}{}
	}

	items := make([]models.ReceiptItem, 0, len(raw))
	skipped := 0
	for i, it := range raw {
		if _, ok := discountLines[strings.TrimSpace(string(it.ItemID))]; ok {
			continue
		}

		id, err := it.ItemID.Int64()
		if err != nil {
			skipped++
			util.LineItemsSkippedTotal.WithLabelValues("invalid_item_id").Inc()
			s.logger.Warn("Skipping line item", zap.String("receipt_id", receiptID),
				zap.String("item_id", string(it.ItemID)), zap.String("reason", "invalid_item_id"))
			continue
		}
		if it.Unit < 0 {
			skipped++
			util.LineItemsSkippedTotal.WithLabelValues("invalid_unit").Inc()
			s.logger.Warn("Skipping line item", zap.String("receipt_id", receiptID),
				zap.Int64("item_id", id), zap.String("reason", "invalid_unit"))
			continue
		}
		amount, err := it.Amount.Decimal()
		if err != nil {
			skipped++
			util.LineItemsSkippedTotal.WithLabelValues("invalid_amount").Inc()
			s.logger.Warn("Skipping line item", zap.String("receipt_id", receiptID),
				zap.Int64("item_id", id), zap.String("reason", "invalid_amount"))
			continue
		}
		purchased, err := models.ParseDate(it.ReceiptDate)
		if err != nil && !fallback.IsZero() {
			purchased, err = fallback, nil
		}
		if err != nil {
			skipped++
			util.LineItemsSkippedTotal.WithLabelValues("invalid_date").Inc()
			s.logger.Warn("Skipping line item", zap.String("receipt_id", receiptID),
				zap.Int64("item_id", id), zap.String("reason", "invalid_date"))
			continue
		}

		owner := username
		if owner == "" {
			owner = strings.TrimSpace(it.Username)
		}
		_, onSale := discounted[id]

		items = append(items, models.ReceiptItem{
			ItemID:      id,
			ItemName:    strings.TrimSpace(it.ItemName),
			Amount:      amount,
			Unit:        it.Unit,
			OnSale:      it.OnSale || onSale,
			ReceiptDate: purchased,
			ReceiptID:   receiptID,
			ReceiptType: it.ReceiptType,
			Username:    owner,
			LineNo:      i + 1,
		})
	}
	return items, skipped
}

// receiptTimestamp parses the receipt's own time, falling back to the purchase
// date of its lines.
func receiptTimestamp(receipt models.RawReceipt, items []models.ReceiptItem) (time.Time, error) {
	if strings.TrimSpace(receipt.ReceiptDate) != "" {
		if ts, err := models.ParseTimestamp(receipt.ReceiptDate); err == nil {
			return ts, nil
		}
	}
	if len(items) > 0 {
		return items[0].ReceiptDate.Time(), nil
	}
	return time.Time{}, fmt.Errorf("%w: receipt date %q", models.ErrUnparseableDate, receipt.ReceiptDate)
}
