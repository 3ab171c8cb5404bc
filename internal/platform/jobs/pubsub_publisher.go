package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/shades-uz/api/internal/services"
)

// orderEventEnvelope is the wire payload published for order events.
type orderEventEnvelope struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	TrackingCode   string    `json:"trackingCode,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order event message on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	envelope := orderEventEnvelope{
		Type:           event.Type,
		OrderID:        event.OrderID,
		TrackingCode:   event.TrackingCode,
		PreviousStatus: string(event.PreviousStatus),
		CurrentStatus:  string(event.CurrentStatus),
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
	}

	data, err := p.marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "trackingCode", event.TrackingCode)
	setAttr(attrs, "previousStatus", string(event.PreviousStatus))
	setAttr(attrs, "currentStatus", string(event.CurrentStatus))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
