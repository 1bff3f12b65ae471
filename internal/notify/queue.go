package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/metrics"
)

// QueueConfig controls the concurrency characteristics of the queue.
type QueueConfig struct {
	QueueSize int
	Workers   int
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

// Queue delivers notifications on a bounded worker pool so request handlers
// never wait on the mail transport.
type Queue struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	timeout    time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Notification
	wg     sync.WaitGroup
	once   sync.Once
}

// NewQueue starts cfg.Workers workers draining into dispatcher.
func NewQueue(dispatcher *Dispatcher, cfg QueueConfig, logger *slog.Logger) *Queue {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		dispatcher: dispatcher,
		logger:     logger,
		timeout:    cfg.SendTimeout,
		jobs:       make(chan Notification, cfg.QueueSize),
	}

	q.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go q.worker()
	}

	return q
}

// Notify schedules n for delivery. It never blocks: when the queue is full or
// shut down the notification is dropped and logged.
func (q *Queue) Notify(ctx context.Context, n Notification) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(ctx, n, "queue closed")
		return
	}

	select {
	case q.jobs <- n:
	default:
		q.drop(ctx, n, "queue full")
	}
}

func (q *Queue) drop(ctx context.Context, n Notification, reason string) {
	metrics.RecordNotification(string(n.Type), metrics.OutcomeDropped)
	logging.FromContext(ctx).Warn("notification dropped",
		slog.String("type", string(n.Type)),
		slog.String("reason", reason),
	)
}

// Shutdown stops accepting notifications and waits for queued ones to drain.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for n := range q.jobs {
		q.handle(n)
	}
}

func (q *Queue) handle(n Notification) {
	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), q.logger), q.timeout)
	defer cancel()

	ctx, span := logging.StartSpan(ctx, "notify."+string(n.Type))
	defer span.End()

	if _, err := q.dispatcher.Dispatch(ctx, n); err != nil {
		span.RecordError(err)
		metrics.RecordNotification(string(n.Type), metrics.OutcomeFailed)
		return
	}
	metrics.RecordNotification(string(n.Type), metrics.OutcomeSent)
}
