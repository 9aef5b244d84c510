package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes audit events to a fixed set of workers using consistent
// hashing on the username, guaranteeing per-user event ordering.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Events are persisted with a context
// derived from ctx that is never cancelled, so workers keep running until
// Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Close stops accepting events, lets the workers persist everything still
// buffered and blocks until they return. Calling it again is a no-op.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// Record enqueues an event on the worker owning its username. It never
// blocks the request path: when the worker buffer is full, or the dispatcher
// is closed, the event is dropped.
func (d *Dispatcher) Record(event domain.AuditEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(event, "audit dispatcher closed, event dropped")
		return
	}

	idx := d.shardIndex(event.Username)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.drop(event, "audit queue full, event dropped")
	}
}

func (d *Dispatcher) drop(event domain.AuditEvent, msg string) {
	metrics.AuditDroppedTotal.Inc()
	d.log.Warn().
		Str("action", event.Action).
		Str("username", event.Username).
		Msg(msg)
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuditEvent) {
	defer d.wg.Done()
	for event := range ch {
		if err := d.repo.Insert(ctx, &event); err != nil {
			d.log.Error().Err(err).
				Str("action", event.Action).
				Str("username", event.Username).
				Int("worker_id", id).
				Msg("audit persistence failed")
		}
	}
}

// LogRepository writes audit events to the logger when no database is configured.
type LogRepository struct {
	log zerolog.Logger
}

func NewLogRepository(log zerolog.Logger) *LogRepository {
	return &LogRepository{log: log}
}

func (r *LogRepository) Insert(_ context.Context, event *domain.AuditEvent) error {
	r.log.Info().
		Str("action", event.Action).
		Str("username", event.Username).
		Str("resource_id", event.ResourceID).
		Str("status", event.Status).
		Str("reason", event.Reason).
		Time("occurred_at", event.OccurredAt).
		Msg("audit")
	return nil
}
