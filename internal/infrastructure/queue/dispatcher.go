package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

var (
	auditPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "audit_events_published_total",
		Help:      "Total number of audit events written to the store.",
	})
	auditDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "audit_events_dropped_total",
		Help:      "Total number of audit events dropped, by reason (queue_full/store_error).",
	}, []string{"reason"})
	auditQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "library",
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each worker channel.",
	}, []string{"worker_id"})
)

// Dedup filters audit events that were already recorded (backed by Redis).
type Dedup interface {
	Seen(ctx context.Context, e domain.AuditEvent) (bool, error)
	Mark(ctx context.Context, e domain.AuditEvent) error
}

// Dispatcher is the async implementation of ports.AuditPublisher. Events are
// routed to a fixed set of workers by a hash of the entity id, so the audit
// trail of one entity is always written in publish order. Publish never
// blocks the mutating request: a full worker channel drops the event with a
// log line instead of stalling the caller.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	store   ports.AuditStore
	dedup   Dedup
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, store ports.AuditStore, dedup Dedup, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		store:   store,
		dedup:   dedup,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Publish enqueues an audit event for asynchronous persistence. Implements
// ports.AuditPublisher.
func (d *Dispatcher) Publish(event domain.AuditEvent) {
	idx := d.shardIndex(event.EntityID)
	select {
	case d.workers[idx] <- event:
		auditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		auditDroppedTotal.WithLabelValues("queue_full").Inc()
		d.log.Warn().
			Str("entity_id", event.EntityID).
			Str("action", event.Action).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps an entity id deterministically to a worker index.
func (d *Dispatcher) shardIndex(entityID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuditEvent) {
	worker := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			auditQueueDepth.WithLabelValues(worker).Set(float64(len(ch)))
			d.record(ctx, id, event)
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, workerID int, event domain.AuditEvent) {
	if seen, err := d.dedup.Seen(ctx, event); err != nil {
		d.log.Warn().Err(err).Str("entity_id", event.EntityID).Msg("audit dedup check failed, recording anyway")
	} else if seen {
		return
	}

	if err := d.store.InsertEvent(ctx, &event); err != nil {
		auditDroppedTotal.WithLabelValues("store_error").Inc()
		d.log.Error().Err(err).
			Str("entity_id", event.EntityID).
			Str("action", event.Action).
			Int("worker_id", workerID).
			Msg("audit event write failed")
		return
	}
	auditPublishedTotal.Inc()

	if err := d.dedup.Mark(ctx, event); err != nil {
		d.log.Warn().Err(err).Str("entity_id", event.EntityID).Msg("failed to set audit dedup key")
	}
}
