package importer

import (
	"strings"
	"testing"

	"pricewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPromotionsCSV(t *testing.T) {
	in := "Item ID,Item Name,Savings,Expiry Date,Sale Price\n" +
		"1234567,\"Kirkland Olive Oil, 2L\",$5.00,06/30/25,$19.99\n" +
		"7654321,Paper Towels,3,30/06/2025,\n" +
		"abc,Broken,1,2025-06-30,2.00\n"

	got, err := ReadPromotionsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, models.ItemRef("1234567"), got[0].ItemID)
	assert.Equal(t, "Kirkland Olive Oil, 2L", got[0].ItemName)
	savings, err := got[0].Savings.Decimal()
	require.NoError(t, err)
	assert.Equal(t, "5.00", savings.StringFixed(2))
	assert.Equal(t, "06/30/25", got[0].ExpiryDate)
	price, err := got[0].SalePrice.Decimal()
	require.NoError(t, err)
	assert.Equal(t, "19.99", price.StringFixed(2))

	assert.True(t, got[1].SalePrice.IsEmpty())
	assert.Equal(t, models.ItemRef("abc"), got[2].ItemID)
}

func TestReadPromotionsCSVSnakeCaseHeader(t *testing.T) {
	in := "item_id,savings\n100,2.5\n"

	got, err := ReadPromotionsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].ExpiryDate)
	savings, err := got[0].Savings.Decimal()
	require.NoError(t, err)
	assert.Equal(t, "2.50", savings.StringFixed(2))
}

func TestReadPromotionsCSVMissingColumn(t *testing.T) {
	_, err := ReadPromotionsCSV(strings.NewReader("Item Name,Savings\nOil,5\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}
