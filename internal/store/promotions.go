package store

import (
	"context"
	"fmt"

	"pricewatch/internal/models"

	"github.com/jmoiron/sqlx"
)

const upsertPromotionSQL = `
	INSERT INTO promotions (item_id, item_name, savings, expiry_date, sale_price)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (item_id) DO UPDATE SET
		item_name = excluded.item_name,
		savings = excluded.savings,
		expiry_date = excluded.expiry_date,
		sale_price = excluded.sale_price`

// UpsertPromotions replaces each promotion keyed by item_id in a single transaction.
// Any failing row rolls back the whole batch.
func (s *Store) UpsertPromotions(ctx context.Context, promotions []models.Promotion) (int, error) {
	if len(promotions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(upsertPromotionSQL)
	for _, p := range promotions {
		if _, err := tx.ExecContext(ctx, query,
			p.ItemID, p.ItemName, p.Savings, p.ExpiryDate, p.SalePrice); err != nil {
			return 0, fmt.Errorf("failed to upsert promotion %d: %w", p.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit promotions: %w", err)
	}
	return len(promotions), nil
}

// PurgeExpired deletes promotions whose expiry date is before today
func (s *Store) PurgeExpired(ctx context.Context, today models.Date) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM promotions WHERE expiry_date < ?"), today)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired promotions: %w", err)
	}
	return res.RowsAffected()
}

// ActivePromotionsByItemIDs returns the promotions among itemIDs still valid on today,
// in storage order. Rows with no expiry date are never returned.
func (s *Store) ActivePromotionsByItemIDs(ctx context.Context, itemIDs []int64, today models.Date) ([]models.Promotion, error) {
	if len(itemIDs) == 0 {
		return nil, ErrEmptyIDSet
	}

	query, args, err := sqlx.In(`
		SELECT item_id, item_name, savings, expiry_date, sale_price
		FROM promotions
		WHERE item_id IN (?)
		  AND expiry_date IS NOT NULL
		  AND expiry_date >= ?
		ORDER BY item_id`, itemIDs, today)
	if err != nil {
		return nil, fmt.Errorf("failed to build promotion query: %w", err)
	}

	var promotions []models.Promotion
	if err := s.db.SelectContext(ctx, &promotions, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query promotions: %w", err)
	}
	return promotions, nil
}

// ListPromotions returns every stored promotion
func (s *Store) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promotions []models.Promotion
	err := s.db.SelectContext(ctx, &promotions,
		"SELECT item_id, item_name, savings, expiry_date, sale_price FROM promotions ORDER BY item_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return promotions, nil
}
