package store

import (
	"context"
	"fmt"

	"pricewatch/internal/models"

	"github.com/jmoiron/sqlx"
)

const upsertLineItemSQL = `
	INSERT INTO receipt_items
		(item_id, item_name, amount, unit, on_sale, receipt_date, receipt_id, receipt_type, username, line_no)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (receipt_id, item_id, line_no) DO UPDATE SET
		item_name = excluded.item_name,
		amount = excluded.amount,
		unit = excluded.unit,
		on_sale = excluded.on_sale,
		receipt_date = excluded.receipt_date,
		receipt_type = excluded.receipt_type,
		username = excluded.username`

const receiptItemColumns = `id, item_id, item_name, amount, unit, on_sale, receipt_date,
	receipt_id, receipt_type, username, line_no`

// RecordReceipt inserts or replaces receipt metadata keyed by receipt_id
func (s *Store) RecordReceipt(ctx context.Context, r models.Receipt) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO receipts (receipt_id, receipt_date, receipt_path)
		VALUES (?, ?, ?)
		ON CONFLICT (receipt_id) DO UPDATE SET
			receipt_date = excluded.receipt_date,
			receipt_path = excluded.receipt_path`),
		r.ReceiptID, r.ReceiptDate.UTC(), r.ReceiptPath)
	if err != nil {
		return fmt.Errorf("failed to record receipt %s: %w", r.ReceiptID, err)
	}
	return nil
}

// RecordLineItems upserts receipt lines on (receipt_id, item_id, line_no) in one transaction
func (s *Store) RecordLineItems(ctx context.Context, items []models.ReceiptItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(upsertLineItemSQL)
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, query,
			it.ItemID, it.ItemName, it.Amount, it.Unit, it.OnSale, it.ReceiptDate,
			it.ReceiptID, it.ReceiptType, it.Username, it.LineNo); err != nil {
			return 0, fmt.Errorf("failed to upsert line %d of receipt %s: %w", it.LineNo, it.ReceiptID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit line items: %w", err)
	}
	return len(items), nil
}

// KnownReceiptIDs returns every receipt id already stored. A receipt row is written
// after its line items, so ids here are fully processed.
func (s *Store) KnownReceiptIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, "SELECT DISTINCT receipt_id FROM receipts")
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt ids: %w", err)
	}

	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}

// LineItemsNotOnSale returns the full-price purchases of username
func (s *Store) LineItemsNotOnSale(ctx context.Context, username string) ([]models.ReceiptItem, error) {
	var items []models.ReceiptItem
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(`
		SELECT `+receiptItemColumns+`
		FROM receipt_items
		WHERE on_sale = ? AND username = ?
		ORDER BY receipt_date, receipt_id, line_no`), false, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	return items, nil
}

// ReceiptsByIDs returns receipt metadata for the given ids; unknown ids are ignored
func (s *Store) ReceiptsByIDs(ctx context.Context, receiptIDs []string) ([]models.Receipt, error) {
	if len(receiptIDs) == 0 {
		return nil, ErrEmptyIDSet
	}

	query, args, err := sqlx.In(`
		SELECT receipt_id, receipt_date, receipt_path
		FROM receipts
		WHERE receipt_id IN (?)
		ORDER BY receipt_date, receipt_id`, receiptIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build receipt query: %w", err)
	}

	var receipts []models.Receipt
	if err := s.db.SelectContext(ctx, &receipts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	return receipts, nil
}
