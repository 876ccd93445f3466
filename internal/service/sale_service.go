package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrEmptyItemIDs is returned when a sale check is asked about no items
var ErrEmptyItemIDs = errors.New("no item ids given")

// PromotionReader is the read side of the promotion store
type PromotionReader interface {
	ActivePromotionsByItemIDs(ctx context.Context, itemIDs []int64, today models.Date) ([]models.Promotion, error)
}

// SaleCheck is the current sale state of a set of items
type SaleCheck struct {
	TotalSavings decimal.Decimal    `json:"total_savings"`
	SaleInfo     []models.Promotion `json:"sale_info"`
}

// ByItemID indexes the sale info by item id
func (c *SaleCheck) ByItemID() map[int64]models.Promotion {
	m := make(map[int64]models.Promotion, len(c.SaleInfo))
	for _, p := range c.SaleInfo {
		m[p.ItemID] = p
	}
	return m
}

// SaleService answers which of a set of items are on sale today
type SaleService struct {
	promotions PromotionReader
	now        func() time.Time
	logger     *zap.Logger
}

// NewSaleService creates a new sale service. A nil clock uses time.Now.
func NewSaleService(promotions PromotionReader, now func() time.Time) *SaleService {
	if now == nil {
		now = time.Now
	}
	return &SaleService{
		promotions: promotions,
		now:        now,
		logger:     util.Named("sale_service"),
	}
}

// CheckSale returns the active promotions among itemIDs and the sum of their
// per-unit savings. Items with no active promotion are simply absent.
func (s *SaleService) CheckSale(ctx context.Context, itemIDs []int64) (*SaleCheck, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CheckSale", attribute.Int("item_count", len(itemIDs)))
	defer span.End()

	if len(itemIDs) == 0 {
		return nil, ErrEmptyItemIDs
	}

	today := models.Today(s.now)
	promotions, err := s.promotions.ActivePromotionsByItemIDs(ctx, itemIDs, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load active promotions: %w", err)
	}

	check := &SaleCheck{
		TotalSavings: decimal.Zero,
		SaleInfo:     make([]models.Promotion, 0, len(promotions)),
	}
	for _, p := range promotions {
		check.SaleInfo = append(check.SaleInfo, p)
		check.TotalSavings = check.TotalSavings.Add(p.Savings)
	}

	s.logger.Debug("Sale check",
		zap.Int("requested", len(itemIDs)),
		zap.Int("on_sale", len(check.SaleInfo)),
		zap.String("today", today.String()))
	return check, nil
}
