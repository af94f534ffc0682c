package worker

import (
	"context"
	"time"

	"courtmaster/internal/infrastructure/notify"

	"go.uber.org/zap"
)

// NotificationWorker delivers payment events off the request path. Enqueue
// never blocks: when the queue is full the event is dropped and logged.
type NotificationWorker struct {
	notifier notify.Notifier
	queue    chan notify.Event
	timeout  time.Duration
	logger   *zap.Logger
}

func NewNotificationWorker(
	notifier notify.Notifier,
	queueSize int,
	timeout time.Duration,
	logger *zap.Logger,
) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &NotificationWorker{
		notifier: notifier,
		queue:    make(chan notify.Event, queueSize),
		timeout:  timeout,
		logger:   logger,
	}
}

func (w *NotificationWorker) Enqueue(ev notify.Event) bool {
	select {
	case w.queue <- ev:
		return true
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("payment_id", ev.PaymentID.String()),
			zap.String("kind", string(ev.Kind)),
		)
		return false
	}
}

func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started")

	for {
		select {
		case <-ctx.Done(): // worker bị dừng
			w.drain()
			w.logger.Info("notification worker stopped")
			return
		case ev := <-w.queue:
			w.process(ctx, ev)
		}
	}
}

// drain gives queued events one last attempt with a fresh deadline.
func (w *NotificationWorker) drain() {
	for {
		select {
		case ev := <-w.queue:
			w.process(context.Background(), ev)
		default:
			return
		}
	}
}

func (w *NotificationWorker) process(ctx context.Context, ev notify.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if err := w.notifier.Notify(ctx, ev); err != nil {
		w.logger.Error("notification failed",
			zap.String("payment_id", ev.PaymentID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("notification sent",
		zap.String("payment_id", ev.PaymentID.String()),
		zap.String("kind", string(ev.Kind)),
	)
}
