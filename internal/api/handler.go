package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/service"
	"pricewatch/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Maintenance is the store surface the API uses directly
type Maintenance interface {
	PurgeExpired(ctx context.Context, today models.Date) (int64, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	KnownReceiptIDs(ctx context.Context) (map[string]struct{}, error)
	Ping() error
}

// Handler contains HTTP handlers
type Handler struct {
	store    Maintenance
	sales    *service.SaleService
	ingest   *service.IngestService
	notifier *service.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. A nil clock uses time.Now.
func NewHandler(
	store Maintenance,
	sales *service.SaleService,
	ingest *service.IngestService,
	notifier *service.Notifier,
	now func() time.Time,
) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		store:    store,
		sales:    sales,
		ingest:   ingest,
		notifier: notifier,
		now:      now,
		logger:   util.Named("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/check_sale", h.checkSale)
		v1.GET("/adjustments", h.adjustments)
		v1.GET("/promotions", h.listPromotions)
		v1.POST("/promotions", h.ingestPromotions)
		v1.DELETE("/promotions/expired", h.purgeExpired)
		v1.POST("/receipts", h.ingestReceipt)
		v1.GET("/receipts/ids", h.receiptIDs)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// SaleInfo is one active promotion as returned by check_sale
type SaleInfo struct {
	ItemID     int64    `json:"item_id"`
	ItemName   string   `json:"item_name"`
	Savings    float64  `json:"savings"`
	ExpiryDate string   `json:"expiry_date"`
	SalePrice  *float64 `json:"sale_price"`
}

// CheckSaleResponse is the check_sale response body
type CheckSaleResponse struct {
	TotalSavings float64    `json:"total_savings"`
	SaleInfo     []SaleInfo `json:"sale_info"`
}

// checkSale handles GET /check_sale?items=1&items=2 (or items=1,2)
func (h *Handler) checkSale(c *gin.Context) {
	itemIDs, err := parseItemIDs(c.QueryArray("items"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid items parameter",
			"details": err.Error(),
		})
		return
	}

	check, err := h.sales.CheckSale(c.Request.Context(), itemIDs)
	if errors.Is(err, service.ErrEmptyItemIDs) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "At least one item id is required",
		})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to check sale", err)
		return
	}

	resp := CheckSaleResponse{
		TotalSavings: toFloat(check.TotalSavings),
		SaleInfo:     make([]SaleInfo, 0, len(check.SaleInfo)),
	}
	for _, p := range check.SaleInfo {
		info := SaleInfo{
			ItemID:     p.ItemID,
			ItemName:   p.ItemName,
			Savings:    toFloat(p.Savings),
			ExpiryDate: p.ExpiryDate.String(),
		}
		if p.SalePrice.Valid {
			price := toFloat(p.SalePrice.Decimal)
			info.SalePrice = &price
		}
		resp.SaleInfo = append(resp.SaleInfo, info)
	}

	c.JSON(http.StatusOK, resp)
}

// adjustments renders the current adjustment report for a user without publishing it
func (h *Handler) adjustments(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "username is required",
		})
		return
	}

	report, err := h.notifier.Report(c.Request.Context(), username)
	if err != nil {
		h.internalError(c, "Failed to reconcile purchases", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) listPromotions(c *gin.Context) {
	promotions, err := h.store.ListPromotions(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to list promotions", err)
		return
	}
	if promotions == nil {
		promotions = []models.Promotion{}
	}
	c.JSON(http.StatusOK, gin.H{"promotions": promotions})
}

// IngestPromotionsRequest is a batch of scraped promotions
type IngestPromotionsRequest struct {
	Source     string                `json:"source"`
	Promotions []models.RawPromotion `json:"promotions" binding:"required"`
}

func (h *Handler) ingestPromotions(c *gin.Context) {
	var req IngestPromotionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	res, err := h.ingest.IngestPromotions(c.Request.Context(), req.Source, req.Promotions)
	if err != nil {
		h.internalError(c, "Failed to store promotions", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) purgeExpired(c *gin.Context) {
	purged, err := h.store.PurgeExpired(c.Request.Context(), models.Today(h.now))
	if err != nil {
		h.internalError(c, "Failed to purge promotions", err)
		return
	}
	util.PromotionsPurgedTotal.Add(float64(purged))
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

// IngestReceiptRequest is one scraped receipt with its lines
type IngestReceiptRequest struct {
	Username string               `json:"username" binding:"required"`
	Receipt  models.RawReceipt    `json:"receipt"`
	Items    []models.RawLineItem `json:"items"`
}

func (h *Handler) ingestReceipt(c *gin.Context) {
	var req IngestReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	res, err := h.ingest.IngestReceipt(c.Request.Context(), req.Username, req.Receipt, req.Items)
	if errors.Is(err, service.ErrMissingReceiptID) || errors.Is(err, service.ErrNoValidLineItems) ||
		errors.Is(err, models.ErrUnparseableDate) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid receipt",
			"details": err.Error(),
		})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to store receipt", err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

func (h *Handler) receiptIDs(c *gin.Context) {
	known, err := h.store.KnownReceiptIDs(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to load receipt ids", err)
		return
	}

	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.JSON(http.StatusOK, gin.H{"receipt_ids": ids})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// parseItemIDs accepts repeated and comma-separated values; any non-numeric id
// rejects the whole request.
func parseItemIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
