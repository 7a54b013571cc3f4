// Package notification delivers booking notices without blocking the caller.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/flightsaga/internal/kafka"
	"go.uber.org/zap"
)

const publishRetries = 3

type Publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries uint64) error
}

// Dispatcher queues notifications and publishes them from a background
// goroutine. Notify never blocks: when the queue is full the message is
// published from its own goroutine.
type Dispatcher struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
	queue     chan queued

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

func NewDispatcher(publisher Publisher, topic string, queueSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		queue:     make(chan queued, queueSize),
	}
}

// queued keeps the caller's context values, the trace span among them, with
// the event. Its cancellation is dropped so a finished request does not
// abort the publish.
type queued struct {
	ctx   context.Context
	event kafka.NotificationEvent
}

// Start launches the drain loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for item := range d.queue {
			d.publish(item)
		}
	}()
}

func (d *Dispatcher) Notify(ctx context.Context, recipient, subject, body string) {
	item := queued{
		ctx: context.WithoutCancel(ctx),
		event: kafka.NotificationEvent{
			Recipient: recipient,
			Subject:   subject,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		},
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after shutdown", zap.String("recipient", recipient), zap.String("subject", subject))
		return
	}

	select {
	case d.queue <- item:
	default:
		d.logger.Warn("notification queue full, publishing inline", zap.String("recipient", recipient))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.publish(item)
		}()
	}
}

func (d *Dispatcher) publish(item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, 30*time.Second)
	defer cancel()

	if err := d.publisher.PublishWithRetry(ctx, d.topic, item.event.Recipient, item.event, publishRetries); err != nil {
		d.logger.Error("failed to publish notification",
			zap.String("recipient", item.event.Recipient),
			zap.String("subject", item.event.Subject),
			zap.Error(err),
		)
	}
}

// Close stops accepting notifications and waits for queued ones to be published.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// LogNotifier only logs. It is used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient, subject, body string) {
	n.logger.Info("notification", zap.String("recipient", recipient), zap.String("subject", subject))
}
