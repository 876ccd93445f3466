package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PromotionsUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_promotions_upserted_total",
		Help: "Total number of promotion rows written, by source",
	}, []string{"source"})

	PromotionsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_promotions_skipped_total",
		Help: "Total number of scraped promotions rejected before storage",
	}, []string{"reason"})

	PromotionsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_promotions_purged_total",
		Help: "Total number of expired promotions deleted",
	})

	ReceiptsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_receipts_ingested_total",
		Help: "Total number of new receipts stored",
	})

	ReceiptsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_receipts_duplicate_total",
		Help: "Total number of receipts skipped because they were already stored",
	})

	LineItemsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_line_items_skipped_total",
		Help: "Total number of receipt lines rejected before storage",
	}, []string{"reason"})

	AdjustmentsFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_adjustments_found_total",
		Help: "Total number of price-adjustment opportunities found",
	})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricewatch_reconcile_latency_seconds",
		Help:    "Latency of a reconciliation run",
		Buckets: prometheus.DefBuckets,
	})

	ReportsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_reports_published_total",
		Help: "Total number of adjustment reports handed to the notification topic",
	}, []string{"outcome"})

	CycleRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_cycle_runs_total",
		Help: "Total number of periodic cycles, by outcome",
	}, []string{"outcome"})

	MessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_messages_dropped_total",
		Help: "Total number of consumed messages given up on after retries",
	}, []string{"topic"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
