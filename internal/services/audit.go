package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
)

// Audit event types.
const (
	AuditEventConversion = "currency_conversion"
	AuditEventGeneration = "recommendation_generated"
	AuditEventBatchRun   = "batch_run_completed"
)

type correlationIDKey struct{}

// ContextWithCorrelationID tags the context with the run's correlation id so
// downstream services stamp their audit events with it.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id carried by the context,
// or "" when none was set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// AuditEvent is one trail entry tied to a correlation id.
type AuditEvent struct {
	Type          string                 `json:"type"`
	CorrelationID string                 `json:"correlation_id"`
	UserID        string                 `json:"user_id,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// AuditEmitter persists audit events to redis off the hot path. Emit never
// blocks: when the buffer is full the event is dropped and counted.
type AuditEmitter struct {
	client    *redis.Client
	logger    logging.Logger
	events    chan AuditEvent
	retention time.Duration

	dropped   atomic.Uint64
	persisted atomic.Uint64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAuditEmitter creates an emitter and starts its persistence worker.
func NewAuditEmitter(client *redis.Client, logger logging.Logger, cfg config.AuditConfig) *AuditEmitter {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	e := &AuditEmitter{
		client:    client,
		logger:    logger.WithComponent("audit_emitter"),
		events:    make(chan AuditEvent, bufferSize),
		retention: retention,
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Emit enqueues an event for persistence. Safe for concurrent use.
func (e *AuditEmitter) Emit(event AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case e.events <- event:
	default:
		dropped := e.dropped.Add(1)
		e.logger.WithFields(map[string]interface{}{
			"event_type":    event.Type,
			"total_dropped": dropped,
		}).Warn("audit buffer full, event dropped")
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (e *AuditEmitter) Dropped() uint64 {
	return e.dropped.Load()
}

// Persisted returns the number of events written to redis.
func (e *AuditEmitter) Persisted() uint64 {
	return e.persisted.Load()
}

// Close stops the worker after draining buffered events.
func (e *AuditEmitter) Close() {
	e.closeOnce.Do(func() {
		close(e.events)
	})
	e.wg.Wait()
}

func (e *AuditEmitter) run() {
	defer e.wg.Done()
	for event := range e.events {
		e.persist(event)
	}
}

func (e *AuditEmitter) persist(event AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.WithError(err).Error("failed to marshal audit event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Events without a correlation id must not all collapse into one list.
	id := event.CorrelationID
	if id == "" {
		id = "unscoped"
	}
	key := fmt.Sprintf("audit:%s", id)
	pipe := e.client.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, e.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"event_type":     event.Type,
			"correlation_id": event.CorrelationID,
		}).Error("failed to persist audit event")
		return
	}
	e.persisted.Add(1)
}
