package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestConsumer() *Consumer {
	return &Consumer{logger: zap.NewNop(), retries: 3}
}

func TestHandleWithRetryRecovers(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	err := c.handleWithRetry(context.Background(), kafka.Message{}, func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	c := newTestConsumer()
	failure := errors.New("receipt has no valid line items")
	calls := 0
	err := c.handleWithRetry(context.Background(), kafka.Message{}, func(context.Context, kafka.Message) error {
		calls++
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	c := newTestConsumer()
	c.backoff = 1 << 40
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.handleWithRetry(ctx, kafka.Message{}, func(context.Context, kafka.Message) error {
		calls++
		cancel()
		return errors.New("broker unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestEventID(t *testing.T) {
	assert.Equal(t, "e-7", eventID(kafka.Message{Value: []byte(`{"event_id":"e-7","event_type":"RECEIPT_SCRAPED"}`)}))
	assert.Equal(t, "", eventID(kafka.Message{Value: []byte("not json")}))
}
