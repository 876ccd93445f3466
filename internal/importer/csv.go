package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"pricewatch/internal/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrMissingColumn is returned when a required CSV column is absent
var ErrMissingColumn = errors.New("missing column")

// Accepted header spellings per field, matched case-insensitively
var promotionColumns = map[string][]string{
	"item_id":     {"item id", "item_id", "item number"},
	"item_name":   {"item name", "item_name"},
	"savings":     {"savings"},
	"expiry_date": {"expiry date", "expiry_date", "expiry"},
	"sale_price":  {"sale price", "sale_price", "price"},
}

// ReadPromotionsCSV reads promotions from a scraper CSV export. Every cell is read as
// text; money, numbers and dates are validated later by the ingest service.
func ReadPromotionsCSV(r io.Reader) ([]models.RawPromotion, error) {
	df := dataframe.ReadCSV(r,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", df.Err)
	}

	cols, err := resolveColumns(df.Names())
	if err != nil {
		return nil, err
	}

	out := make([]models.RawPromotion, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		cell := func(field string) string {
			name, ok := cols[field]
			if !ok {
				return ""
			}
			elem := df.Col(name).Elem(i)
			if elem.IsNA() {
				return ""
			}
			return strings.TrimSpace(elem.String())
		}

		out = append(out, models.RawPromotion{
			ItemID:     models.ItemRef(cell("item_id")),
			ItemName:   cell("item_name"),
			Savings:    models.Money(cell("savings")),
			ExpiryDate: cell("expiry_date"),
			SalePrice:  models.Money(cell("sale_price")),
		})
	}
	return out, nil
}

func resolveColumns(names []string) (map[string]string, error) {
	byLower := make(map[string]string, len(names))
	for _, n := range names {
		byLower[strings.ToLower(strings.TrimSpace(n))] = n
	}

	cols := make(map[string]string, len(promotionColumns))
	for field, spellings := range promotionColumns {
		for _, s := range spellings {
			if name, ok := byLower[s]; ok {
				cols[field] = name
				break
			}
		}
	}
	for _, required := range []string{"item_id", "savings"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return cols, nil
}
