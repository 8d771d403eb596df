package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"pantry/internal/domain"
)

const (
	EventsExchange = "pantry.events"

	ItemUpdatedRoutingKey  = "inventory.item.updated"
	ItemDepletedRoutingKey = "inventory.item.depleted"

	EventTypeItemUpdated  = "InventoryItemUpdated"
	EventTypeItemDepleted = "InventoryItemDepleted"
)

type EventEnvelope struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
}

type ItemPayload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type InventoryEvent struct {
	EventEnvelope
	Payload ItemPayload `json:"payload"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher emits an event per inventory mutation on a topic exchange.
type Publisher struct {
	ch       channel
	producer string
}

func NewPublisher(conn *amqp.Connection, producer string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, producer), nil
}

func newPublisher(ch channel, producer string) *Publisher {
	if producer == "" {
		producer = "pantry"
	}
	return &Publisher{ch: ch, producer: producer}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) InventoryChanged(ctx context.Context, item *domain.InventoryItem) error {
	ev := newInventoryEvent(p.producer, item, time.Now().UTC())

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.EventName, err)
	}

	routingKey := ItemUpdatedRoutingKey
	if item.Deleted() {
		routingKey = ItemDepletedRoutingKey
	}
	return p.publishJSON(ctx, routingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func newInventoryEvent(producer string, item *domain.InventoryItem, occurredAt time.Time) InventoryEvent {
	name := EventTypeItemUpdated
	if item.Deleted() {
		name = EventTypeItemDepleted
	}
	return InventoryEvent{
		EventEnvelope: EventEnvelope{
			EventName:    name,
			EventVersion: 1,
			EventID:      uuid.NewString(),
			Producer:     producer,
			PartitionKey: item.Name,
			OccurredAt:   occurredAt,
		},
		Payload: ItemPayload{
			Name:     item.Name,
			Quantity: item.Quantity,
		},
	}
}
