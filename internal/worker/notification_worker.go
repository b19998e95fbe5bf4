package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/service"
)

// ErrQueueFull is returned by Publish when the backlog is saturated.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Publish once the worker has shut down.
var ErrStopped = errors.New("notification worker stopped")

// NotificationWorker moves event delivery off the request path. Publish
// enqueues; a fixed pool of consumers hands each event to the wrapped
// dispatcher.
type NotificationWorker struct {
	inner   events.Dispatcher
	queue   chan events.Event
	workers int
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewNotificationWorker wraps inner. Non-positive sizes fall back to one
// consumer and a queue of depth one.
func NewNotificationWorker(inner events.Dispatcher, cfg config.NotificationConfig, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	return &NotificationWorker{
		inner:   inner,
		queue:   make(chan events.Event, size),
		workers: workers,
		logger:  logger,
	}
}

// Subscribe registers handlers on the wrapped dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Publish enqueues the event without blocking.
func (w *NotificationWorker) Publish(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run consumes the queue until ctx is cancelled, then delivers whatever is
// still buffered before returning.
func (w *NotificationWorker) Run(ctx context.Context) error {
	group := &errgroup.Group{}
	for i := 0; i < w.workers; i++ {
		group.Go(func() error {
			w.consume(ctx)
			return nil
		})
	}

	<-ctx.Done()
	w.mu.Lock()
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	return group.Wait()
}

func (w *NotificationWorker) consume(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.queue:
			if !ok {
				return
			}
			w.deliver(event)
		case <-ctx.Done():
			// drain; the channel is closed by Run
			for event := range w.queue {
				w.deliver(event)
			}
			return
		}
	}
}

func (w *NotificationWorker) deliver(event events.Event) {
	// request contexts are long gone by now
	if err := w.inner.Publish(context.Background(), event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// StartNotificationWorker subscribes the notification handlers and starts the
// consumers. The returned channel yields once the worker has drained.
func StartNotificationWorker(ctx context.Context, w *NotificationWorker, notifications *service.NotificationService) <-chan error {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	return done
}
