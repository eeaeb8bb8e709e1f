package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teemow/notetaker/internal/logging"
)

// DefaultQueueName is the durable queue jobs are published to.
const DefaultQueueName = "notetaker.jobs"

// RabbitBroker is a Broker backed by a durable RabbitMQ queue. Job bodies
// are JSON and deliveries are acknowledged manually.
type RabbitBroker struct {
	conn     *amqp.Connection
	queue    amqp.Queue
	prefetch int
	logger   logging.Logger

	mu      sync.Mutex
	pubChan *amqp.Channel
}

// RabbitOption configures a RabbitBroker.
type RabbitOption func(*RabbitBroker)

// WithPrefetch limits unacknowledged deliveries per consumer.
func WithPrefetch(n int) RabbitOption {
	return func(r *RabbitBroker) {
		if n > 0 {
			r.prefetch = n
		}
	}
}

// WithRabbitLogger sets the logger.
func WithRabbitLogger(l logging.Logger) RabbitOption {
	return func(r *RabbitBroker) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRabbitBroker connects to RabbitMQ and declares a durable queue with the
// given name.
func NewRabbitBroker(url, queueName string, opts ...RabbitOption) (*RabbitBroker, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	r := &RabbitBroker{
		conn:     conn,
		queue:    q,
		prefetch: 1,
		logger:   logging.DefaultLogger(),
		pubChan:  ch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Publish sends job as a persistent message.
func (r *RabbitBroker) Publish(ctx context.Context, job Job) error {
	body, err := encodeJob(job)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubChan == nil || r.pubChan.IsClosed() {
		ch, err := r.conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open channel: %w", err)
		}
		r.pubChan = ch
	}

	err = r.pubChan.PublishWithContext(ctx,
		"", r.queue.Name, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID.String(),
			Type:         string(job.Kind),
			Timestamp:    job.EnqueuedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", job, err)
	}
	return nil
}

// Consume opens a dedicated channel and streams deliveries until ctx is done
// or the connection drops. Messages that cannot be decoded are rejected
// without requeue.
func (r *RabbitBroker) Consume(ctx context.Context) (<-chan *Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}
	msgs, err := ch.Consume(r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume %s: %w", r.queue.Name, err)
	}

	out := make(chan *Delivery)
	go func() {
		defer ch.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					r.logger.Warn("rabbitmq delivery channel closed", "queue", r.queue.Name)
					return
				}
				job, err := decodeJob(d.Body)
				if err != nil {
					r.logger.Error("rejecting malformed job", "message_id", d.MessageId, "error", err)
					_ = d.Reject(false)
					continue
				}
				delivery := NewDelivery(job,
					func() error { return d.Ack(false) },
					func(requeue bool) error { return d.Nack(false, requeue) },
				)
				select {
				case out <- delivery:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the connection and all channels opened on it.
func (r *RabbitBroker) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
