package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"pricewatch/internal/models"

	"github.com/shopspring/decimal"
)

func clockAt(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 12, 0, 0, 0, time.Local)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakePromotionStore struct {
	rows      map[int64]models.Promotion
	queries   int
	purgedOn  []models.Date
	upserted  [][]models.Promotion
	upsertErr error
}

func newFakePromotionStore(rows ...models.Promotion) *fakePromotionStore {
	f := &fakePromotionStore{rows: map[int64]models.Promotion{}}
	for _, p := range rows {
		f.rows[p.ItemID] = p
	}
	return f
}

func (f *fakePromotionStore) ActivePromotionsByItemIDs(_ context.Context, itemIDs []int64, today models.Date) ([]models.Promotion, error) {
	f.queries++
	var out []models.Promotion
	seen := map[int64]bool{}
	for _, id := range itemIDs {
		p, ok := f.rows[id]
		if !ok || seen[id] || !p.ActiveOn(today) {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (f *fakePromotionStore) UpsertPromotions(_ context.Context, promotions []models.Promotion) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, promotions)
	for _, p := range promotions {
		f.rows[p.ItemID] = p
	}
	return len(promotions), nil
}

func (f *fakePromotionStore) PurgeExpired(_ context.Context, today models.Date) (int64, error) {
	f.purgedOn = append(f.purgedOn, today)
	var n int64
	for id, p := range f.rows {
		if p.ExpiryDate.Valid && p.ExpiryDate.Date.Before(today) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeReceiptStore struct {
	receipts map[string]models.Receipt
	items    []models.ReceiptItem
	queries  int
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{receipts: map[string]models.Receipt{}}
}

func (f *fakeReceiptStore) KnownReceiptIDs(context.Context) (map[string]struct{}, error) {
	known := map[string]struct{}{}
	for id := range f.receipts {
		known[id] = struct{}{}
	}
	return known, nil
}

func (f *fakeReceiptStore) RecordReceipt(_ context.Context, r models.Receipt) error {
	f.receipts[r.ReceiptID] = r
	return nil
}

func (f *fakeReceiptStore) RecordLineItems(_ context.Context, items []models.ReceiptItem) (int, error) {
	f.items = append(f.items, items...)
	return len(items), nil
}

func (f *fakeReceiptStore) LineItemsNotOnSale(_ context.Context, username string) ([]models.ReceiptItem, error) {
	f.queries++
	var out []models.ReceiptItem
	for _, it := range f.items {
		if it.Username == username {
			// on_sale rows are returned too, to check the reconciler drops them itself
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeReceiptStore) ReceiptsByIDs(_ context.Context, ids []string) ([]models.Receipt, error) {
	var out []models.Receipt
	for _, id := range ids {
		if r, ok := f.receipts[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeGuard struct {
	marked  map[string]bool
	cleared []string
}

func (g *fakeGuard) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if g.marked == nil {
		g.marked = map[string]bool{}
	}
	if g.marked[key] {
		return false, nil
	}
	g.marked[key] = true
	return true, nil
}

func (g *fakeGuard) Clear(_ context.Context, key string) error {
	delete(g.marked, key)
	g.cleared = append(g.cleared, key)
	return nil
}

type fakePublisher struct {
	events []*models.AdjustmentReportEvent
	err    error
}

func (p *fakePublisher) PublishAdjustmentReport(_ context.Context, event *models.AdjustmentReportEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

var errBrokerDown = errors.New("broker down")
