package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/utils/metrics"
)

// EventPublisher is the outbound event sink, implemented by the Kafka
// producer. Nil publishers degrade the dispatcher to log-only mode.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, subject string, payload interface{}) error
}

// AuditDispatcher decouples audit emission from the request path: events are
// queued after the primary transaction commits and drained by a background
// goroutine. A full queue drops the event with a warning; audit failures
// never propagate to callers.
type AuditDispatcher struct {
	queue     chan models.AuditEvent
	publisher EventPublisher
	topic     string
	eventType string
	logger    *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAuditDispatcher creates and starts a dispatcher with the given queue
// capacity.
func NewAuditDispatcher(publisher EventPublisher, topic, eventType string, queueSize int, logger *zap.Logger) *AuditDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &AuditDispatcher{
		queue:     make(chan models.AuditEvent, queueSize),
		publisher: publisher,
		topic:     topic,
		eventType: eventType,
		logger:    logger,
	}
	d.wg.Add(1)
	go d.drain()
	return d
}

// Dispatch enqueues an audit event without blocking. Call it only after the
// transaction the event describes has committed.
func (d *AuditDispatcher) Dispatch(event models.AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case d.queue <- event:
	default:
		metrics.AuditEventsDroppedTotal.Inc()
		d.logger.Warn("Audit queue full, dropping event", zap.String("event_type", string(event.Type)))
	}
}

func (d *AuditDispatcher) drain() {
	defer d.wg.Done()
	for event := range d.queue {
		d.emit(event)
	}
}

func (d *AuditDispatcher) emit(event models.AuditEvent) {
	if d.publisher == nil {
		d.logger.Info("audit",
			zap.String("event_type", string(event.Type)),
			zap.Any("event", event),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subject := ""
	if event.ActorID != nil {
		subject = event.ActorID.String()
	}
	if err := d.publisher.Publish(ctx, d.topic, d.eventType, subject, event); err != nil {
		d.logger.Error("Failed to publish audit event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Close drains outstanding events and stops the background goroutine.
func (d *AuditDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}
