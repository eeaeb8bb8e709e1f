package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when publishing to a closed broker.
var ErrClosed = errors.New("queue: broker closed")

// Broker transports jobs between producers and workers.
type Broker interface {
	Publish(ctx context.Context, job Job) error
	Consume(ctx context.Context) (<-chan *Delivery, error)
	Close() error
}

// Delivery is a received job. Exactly one of Ack or Nack must be called.
type Delivery struct {
	Job Job

	once sync.Once
	ack  func() error
	nack func(requeue bool) error
}

// NewDelivery wraps a job with its acknowledgement callbacks. Nil callbacks
// are treated as no-ops.
func NewDelivery(job Job, ack func() error, nack func(requeue bool) error) *Delivery {
	return &Delivery{Job: job, ack: ack, nack: nack}
}

// Ack marks the job as handled.
func (d *Delivery) Ack() error {
	var err error
	d.once.Do(func() {
		if d.ack != nil {
			err = d.ack()
		}
	})
	return err
}

// Nack rejects the job, optionally handing it back to the queue.
func (d *Delivery) Nack(requeue bool) error {
	var err error
	d.once.Do(func() {
		if d.nack != nil {
			err = d.nack(requeue)
		}
	})
	return err
}

// MemoryBroker is an in-process Broker backed by a buffered channel. It is
// used when no message broker is configured and in tests.
type MemoryBroker struct {
	mu      sync.RWMutex
	ch      chan Job
	done    chan struct{}
	senders sync.WaitGroup
	closed  bool
}

// NewMemoryBroker creates a MemoryBroker holding up to size pending jobs.
func NewMemoryBroker(size int) *MemoryBroker {
	if size <= 0 {
		size = 100
	}
	return &MemoryBroker{ch: make(chan Job, size), done: make(chan struct{})}
}

// Publish enqueues job, blocking while the buffer is full. A blocked
// Publish returns ErrClosed once the broker is closed.
func (b *MemoryBroker) Publish(ctx context.Context, job Job) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	b.senders.Add(1)
	b.mu.RUnlock()
	defer b.senders.Done()

	select {
	case b.ch <- job:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel of deliveries that is closed when ctx is done or
// the broker is closed. A requeued Nack publishes the job again.
func (b *MemoryBroker) Consume(ctx context.Context) (<-chan *Delivery, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	out := make(chan *Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-b.ch:
				if !ok {
					return
				}
				d := NewDelivery(job, nil, func(requeue bool) error {
					if !requeue {
						return nil
					}
					return b.Publish(context.Background(), job)
				})
				select {
				case out <- d:
				case <-ctx.Done():
					_ = b.Publish(context.Background(), job)
					return
				}
			}
		}
	}()
	return out, nil
}

// Len returns the number of pending jobs.
func (b *MemoryBroker) Len() int {
	return len(b.ch)
}

// Close stops the broker. Pending jobs are drained by running consumers.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.senders.Wait()
	close(b.ch)
	return nil
}
