package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courtmaster/internal/infrastructure/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
	done   chan struct{}
}

func (r *recordingNotifier) Notify(ctx context.Context, ev notify.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	return r.err
}

func TestNotificationWorker_DeliversQueuedEvents(t *testing.T) {
	n := &recordingNotifier{done: make(chan struct{}, 2)}
	w := NewNotificationWorker(n, 4, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ev := notify.Event{Kind: notify.PaymentSucceeded, PaymentID: uuid.New()}
	require.True(t, w.Enqueue(ev))

	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(t, n.events, 1)
	assert.Equal(t, ev.PaymentID, n.events[0].PaymentID)
}

func TestNotificationWorker_EnqueueDoesNotBlockWhenFull(t *testing.T) {
	w := NewNotificationWorker(&recordingNotifier{}, 1, time.Second, zap.NewNop())

	assert.True(t, w.Enqueue(notify.Event{PaymentID: uuid.New()}))

	start := time.Now()
	assert.False(t, w.Enqueue(notify.Event{PaymentID: uuid.New()}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestNotificationWorker_FailureIsSwallowed(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down"), done: make(chan struct{}, 2)}
	w := NewNotificationWorker(n, 2, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue(notify.Event{PaymentID: uuid.New()})
	w.Enqueue(notify.Event{PaymentID: uuid.New()})

	for i := 0; i < 2; i++ {
		select {
		case <-n.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped after a failed notification")
		}
	}
}

func TestNotificationWorker_DrainsOnShutdown(t *testing.T) {
	n := &recordingNotifier{}
	w := NewNotificationWorker(n, 3, time.Second, zap.NewNop())
	w.Enqueue(notify.Event{PaymentID: uuid.New()})
	w.Enqueue(notify.Event{PaymentID: uuid.New()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Len(t, n.events, 2)
}
