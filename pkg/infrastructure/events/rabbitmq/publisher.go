// Package rabbitmq publishes audit events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vsinha/cidery/pkg/infrastructure/events"
)

// DefaultExchange is used when no exchange name is configured
const DefaultExchange = "cidery.audit"

// ErrNilChannel is returned when publishing without a channel
var ErrNilChannel = errors.New("rabbitmq channel is nil")

// Channel is the subset of *amqp.Channel the publisher uses
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Envelope is the JSON body of every published message
type Envelope struct {
	Type      string      `json:"type"`
	StreamID  string      `json:"stream_id"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Publisher sends events as persistent JSON messages routed by event type
type Publisher struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher wraps an open channel
func NewPublisher(ch Channel, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{ch: ch, exchange: exchange}
}

// Dial connects to the broker, opens a channel and declares a durable topic exchange
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

// Publish sends one event; the routing key is the event type
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	if p == nil || p.ch == nil {
		return ErrNilChannel
	}

	body, err := json.Marshal(Envelope{
		Type:      event.Type(),
		StreamID:  event.StreamID(),
		Version:   event.Version(),
		Timestamp: event.Timestamp(),
		Data:      event.Data(),
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type(), err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp(),
		Type:         event.Type(),
		Body:         body,
		Headers:      amqp.Table{"stream_id": event.StreamID()},
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Type(), false, false, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type(), p.exchange, err)
	}
	return nil
}

// Close releases the channel and, when dialed, the connection
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
