package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Event types
const (
	EventTypePromotionsScraped = "PROMOTIONS_SCRAPED"
	EventTypeReceiptScraped    = "RECEIPT_SCRAPED"
	EventTypeAdjustmentReport  = "ADJUSTMENT_REPORT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemRef is an item number as sent by a collaborator: either a JSON number or a string.
type ItemRef string

func (r *ItemRef) UnmarshalJSON(b []byte) error {
	s, err := rawText(b)
	if err != nil {
		return err
	}
	*r = ItemRef(s)
	return nil
}

// rawText returns a JSON string's contents, any other scalar's literal text,
// and "" for null.
func rawText(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(b), nil
}

// Int64 validates the reference as a positive integer SKU.
func (r ItemRef) Int64() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(r)), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

// RawPromotion is a promotion tuple as produced by a scraper
type RawPromotion struct {
	ItemID     ItemRef `json:"item_id"`
	ItemName   string  `json:"item_name"`
	Savings    Money   `json:"savings"`
	ExpiryDate string  `json:"expiry_date"`
	SalePrice  Money   `json:"sale_price"`
}

// RawReceipt is receipt metadata as produced by the browser collaborator
type RawReceipt struct {
	ReceiptID   string `json:"receipt_id"`
	ReceiptDate string `json:"receipt_date"`
	ReceiptPath string `json:"receipt_path"`
}

// RawLineItem is a receipt line as produced by the receipt API collaborator
type RawLineItem struct {
	ItemID      ItemRef `json:"item_id"`
	ItemName    string  `json:"item_name"`
	Amount      Money   `json:"amount"`
	Unit        int     `json:"unit"`
	OnSale      bool    `json:"on_sale"`
	ReceiptDate string  `json:"receipt_date"`
	ReceiptID   string  `json:"receipt_id"`
	ReceiptType string  `json:"receipt_type"`
	Username    string  `json:"username"`
}

// PromotionsScrapedEvent published by a promotion scraper
type PromotionsScrapedEvent struct {
	BaseEvent
	Source     string         `json:"source"`
	Promotions []RawPromotion `json:"promotions"`
}

// ReceiptScrapedEvent published by the receipt collaborators
type ReceiptScrapedEvent struct {
	BaseEvent
	Username string        `json:"username"`
	Receipt  RawReceipt    `json:"receipt"`
	Items    []RawLineItem `json:"items"`
}

// AdjustmentReportEvent is handed to the notification sender
type AdjustmentReportEvent struct {
	BaseEvent
	Report AdjustmentReport `json:"report"`
}
