package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pricewatch/internal/models"
	"pricewatch/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishAdjustmentReport publishes an AdjustmentReport event keyed by user
func (ep *EventPublisher) PublishAdjustmentReport(ctx context.Context, event *models.AdjustmentReportEvent) error {
	key := fmt.Sprintf("user-%s", event.Report.Username)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPromotionsScraped func(context.Context, *models.PromotionsScrapedEvent) error
	onReceiptScraped    func(context.Context, *models.ReceiptScrapedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Named("event_handler")}
}

// OnPromotionsScraped registers a handler for PromotionsScraped events
func (eh *EventHandler) OnPromotionsScraped(handler func(context.Context, *models.PromotionsScrapedEvent) error) {
	eh.onPromotionsScraped = handler
}

// OnReceiptScraped registers a handler for ReceiptScraped events
func (eh *EventHandler) OnReceiptScraped(handler func(context.Context, *models.ReceiptScrapedEvent) error) {
	eh.onReceiptScraped = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePromotionsScraped:
		if eh.onPromotionsScraped != nil {
			var event models.PromotionsScrapedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PromotionsScraped event: %w", err)
			}
			return eh.onPromotionsScraped(ctx, &event)
		}

	case models.EventTypeReceiptScraped:
		if eh.onReceiptScraped != nil {
			var event models.ReceiptScrapedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReceiptScraped event: %w", err)
			}
			return eh.onReceiptScraped(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
