package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("notification worker stopped")

// Job is one message for the broker.
type Job struct {
	RoutingKey string
	Payload    any
}

// Publisher delivers a job payload. *rabbitmq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Options tunes the pool.
type Options struct {
	QueueSize   int
	Workers     int
	MaxAttempts uint64
	Backoff     time.Duration
	PublishWait time.Duration
}

// NotificationWorker drains a bounded queue into the publisher with a fixed
// number of goroutines. A nil publisher turns delivery into a debug log.
type NotificationWorker struct {
	publisher Publisher
	logger    *zap.Logger
	opts      Options

	queue chan Job
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
}

// NewNotificationWorker builds an idle pool; call Start to run it.
func NewNotificationWorker(publisher Publisher, logger *zap.Logger, opts Options) *NotificationWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 128
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if opts.PublishWait <= 0 {
		opts.PublishWait = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		publisher: publisher,
		logger:    logger.With(zap.String("component", "notification_worker")),
		opts:      opts,
		queue:     make(chan Job, opts.QueueSize),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (w *NotificationWorker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	for i := 0; i < w.opts.Workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Enqueue never blocks; a full queue drops the job.
func (w *NotificationWorker) Enqueue(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- job:
		return nil
	default:
		w.logger.Warn("dropping notification", zap.String("routing_key", job.RoutingKey))
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued jobs to be delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.RLock()
	cancel := w.cancel
	w.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (w *NotificationWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.deliver(ctx, job); err != nil {
				w.logger.Error("notification delivery failed",
					zap.Int("worker", id),
					zap.String("routing_key", job.RoutingKey),
					zap.Error(err),
				)
			}
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, job Job) error {
	if w.publisher == nil {
		w.logger.Debug("no broker configured, notification not published", zap.String("routing_key", job.RoutingKey))
		return nil
	}
	b := retry.WithMaxRetries(w.opts.MaxAttempts-1, retry.NewExponential(w.opts.Backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		pubCtx, cancel := context.WithTimeout(ctx, w.opts.PublishWait)
		defer cancel()
		if err := w.publisher.Publish(pubCtx, job.RoutingKey, job.Payload); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
