// Package events publishes domain events to RabbitMQ. When no broker is
// configured the NopPublisher keeps callers working unchanged.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const QueueNotificationCreated = "notifications.created"

type Publisher interface {
	Publish(ctx context.Context, queue string, event any) error
	Close() error
}

// AMQPPublisher keeps one connection and reopens it after a failed publish.
type AMQPPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, declared: map[string]bool{}}
}

func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	if !p.declared[queue] {
		// durable, not auto-deleted, not exclusive
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func (p *AMQPPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch = nil
	p.conn = nil
	p.declared = map[string]bool{}
}

type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, queue string, _ any) error {
	log.Printf("events: broker disabled, dropping event queue=%s", queue)
	return nil
}

func (NopPublisher) Close() error { return nil }

// New returns an AMQP publisher for url, or a NopPublisher when url is empty.
func New(url string) Publisher {
	if url == "" {
		return NopPublisher{}
	}
	return NewAMQPPublisher(url)
}
