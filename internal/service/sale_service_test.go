package service

import (
	"context"
	"testing"

	"pricewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promotion(id int64, savings, expiry string) models.Promotion {
	return models.Promotion{
		ItemID:     id,
		ItemName:   "item",
		Savings:    dec(savings),
		ExpiryDate: models.NewNullDate(expiry),
	}
}

func TestCheckSaleReturnsOnlyActivePromotions(t *testing.T) {
	promos := newFakePromotionStore(promotion(100, "5.00", "2025-06-30"))
	svc := NewSaleService(promos, clockAt(2025, 6, 15))

	check, err := svc.CheckSale(context.Background(), []int64{100, 999})
	require.NoError(t, err)
	require.Len(t, check.SaleInfo, 1)
	assert.Equal(t, int64(100), check.SaleInfo[0].ItemID)
	assert.True(t, check.TotalSavings.Equal(dec("5.00")))
}

func TestCheckSaleSumsSavingsWithoutQuantity(t *testing.T) {
	promos := newFakePromotionStore(
		promotion(100, "5.00", "2025-06-30"),
		promotion(200, "2.50", "2025-06-15"),
		promotion(300, "9.00", "2025-06-14"),
		promotion(400, "1.00", ""),
	)
	svc := NewSaleService(promos, clockAt(2025, 6, 15))

	check, err := svc.CheckSale(context.Background(), []int64{100, 200, 300, 400})
	require.NoError(t, err)
	assert.Len(t, check.SaleInfo, 2)
	assert.Equal(t, "7.50", check.TotalSavings.StringFixed(2))
	assert.Contains(t, check.ByItemID(), int64(200))
}

func TestCheckSaleEmptyInput(t *testing.T) {
	promos := newFakePromotionStore()
	svc := NewSaleService(promos, clockAt(2025, 6, 15))

	_, err := svc.CheckSale(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyItemIDs)
	assert.Zero(t, promos.queries)
}

func TestCheckSaleNothingOnSale(t *testing.T) {
	svc := NewSaleService(newFakePromotionStore(), clockAt(2025, 6, 15))

	check, err := svc.CheckSale(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.NotNil(t, check.SaleInfo)
	assert.Empty(t, check.SaleInfo)
	assert.True(t, check.TotalSavings.IsZero())
}
