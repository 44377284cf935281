package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/order"
	"github.com/fekuna/omnipos-inventory-service/internal/order/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderListener struct {
	consumer *broker.KafkaConsumer
	uc       order.UseCase
	logger   logger.ZapLogger
}

func NewOrderListener(consumer *broker.KafkaConsumer, uc order.UseCase, logger logger.ZapLogger) *OrderListener {
	return &OrderListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *OrderListener) Start(ctx context.Context) {
	l.logger.Info("Starting Order Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Order Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID         string             `json:"id"`
	MerchantID string             `json:"merchant_id"`
	UserID     string             `json:"user_id"`
	Items      []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID  string           `json:"product_id"`
	LocationID *string          `json:"location_id"`
	Quantity   int64            `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
}

func (l *OrderListener) processMessage(ctx context.Context, value []byte) {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case "OrderCreated":
		l.handleOrderCreated(ctx, &event)
	case "OrderCancelled":
		l.handleOrderCancelled(ctx, &event)
	case "OrderShipped":
		l.handleOrderShipped(ctx, &event)
	}
}

func (l *OrderListener) handleOrderCreated(ctx context.Context, event *OrderEvent) {
	l.logger.Info("Processing OrderCreated event", zap.String("order_id", event.Payload.ID))

	lines := make([]dto.OrderLine, 0, len(event.Payload.Items))
	for _, item := range event.Payload.Items {
		lines = append(lines, dto.OrderLine{
			ProductID:  item.ProductID,
			LocationID: item.LocationID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	_, err := l.uc.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: event.Payload.MerchantID,
		OrderRef:   event.Payload.ID,
		Requester:  event.Payload.UserID,
		Lines:      lines,
	})
	if err != nil {
		l.logger.Error("Failed to reserve stock for order",
			zap.String("order_id", event.Payload.ID),
			zap.Error(err),
		)
		// TODO: publish a ReservationFailed event once the order service consumes it
	}
}

func (l *OrderListener) handleOrderCancelled(ctx context.Context, event *OrderEvent) {
	l.logger.Info("Processing OrderCancelled event", zap.String("order_id", event.Payload.ID))

	if _, err := l.uc.CancelOrder(ctx, event.Payload.MerchantID, event.Payload.ID); err != nil {
		l.logger.Error("Failed to release reservations for cancelled order",
			zap.String("order_id", event.Payload.ID),
			zap.Error(err),
		)
	}
}

func (l *OrderListener) handleOrderShipped(ctx context.Context, event *OrderEvent) {
	l.logger.Info("Processing OrderShipped event", zap.String("order_id", event.Payload.ID))

	if err := l.uc.ShipOrder(ctx, event.Payload.MerchantID, event.Payload.ID, event.Payload.UserID); err != nil {
		l.logger.Error("Failed to ship order",
			zap.String("order_id", event.Payload.ID),
			zap.Error(err),
		)
	}
}
