package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/common/mq"
	"restaurant-live/internal/domain"
	"restaurant-live/internal/realtime"
)

// Consumer bridges order events published by the CRUD layer on RabbitMQ
// into the in-process dispatcher. The fan-out itself stays in-memory;
// the broker is only an ingestion source for out-of-process writers.
type Consumer struct {
	mq   *mq.Client
	disp *realtime.Dispatcher
	lg   *logger.Logger
}

func New(client *mq.Client, disp *realtime.Dispatcher, lg *logger.Logger) *Consumer {
	return &Consumer{mq: client, disp: disp, lg: lg}
}

func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.mq.Consume("realtime.q", "realtime-service", 10)
	if err != nil {
		return fmt.Errorf("consume realtime.q: %w", err)
	}
	c.lg.Info("ingest_started", map[string]any{"queue": "realtime.q"})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(d)
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery) {
	if err := Apply(c.disp, d.Body); err != nil {
		c.lg.Error("ingest_message_rejected", err, map[string]any{"routing_key": d.RoutingKey})
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Apply decodes one broker message and feeds the matching dispatcher
// injection point.
func Apply(disp *realtime.Dispatcher, body []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	switch head.Type {
	case domain.MsgOrderCreated:
		var m domain.OrderCreatedMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return fmt.Errorf("decode %s: %w", head.Type, err)
		}
		if m.Order.ID == "" {
			return errors.New("order.created without order id")
		}
		disp.OnOrderCreated(m.Order)
	case domain.MsgOrderStatusChanged:
		var m domain.OrderStatusChangedMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return fmt.Errorf("decode %s: %w", head.Type, err)
		}
		if m.OrderID == "" {
			return errors.New("order.status_changed without order id")
		}
		disp.OnOrderStatusChanged(domain.Order{
			ID:        m.OrderID,
			UserID:    m.UserID,
			Status:    m.NewStatus,
			UpdatedAt: m.ChangedAt,
		}, m.OldStatus, m.NewStatus)
	default:
		return fmt.Errorf("unknown message type %q", head.Type)
	}
	return nil
}
