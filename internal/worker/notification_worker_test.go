package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	failures int
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.keys...)
}

func TestWorkerDeliversQueuedJobs(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewNotificationWorker(pub, zap.NewNop(), Options{Workers: 2, Backoff: time.Millisecond})
	w.Start(context.Background())

	require.NoError(t, w.Enqueue(Job{RoutingKey: "a"}))
	require.NoError(t, w.Enqueue(Job{RoutingKey: "b"}))
	w.Stop()

	assert.ElementsMatch(t, []string{"a", "b"}, pub.published())
}

func TestWorkerRetriesPublish(t *testing.T) {
	pub := &recordingPublisher{failures: 2}
	w := NewNotificationWorker(pub, zap.NewNop(), Options{MaxAttempts: 3, Backoff: time.Millisecond})
	w.Start(context.Background())

	require.NoError(t, w.Enqueue(Job{RoutingKey: "auth.reset_code_issued"}))
	w.Stop()

	assert.Equal(t, []string{"auth.reset_code_issued"}, pub.published())
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	pub := &recordingPublisher{failures: 5}
	w := NewNotificationWorker(pub, zap.NewNop(), Options{MaxAttempts: 2, Backoff: time.Millisecond})
	w.Start(context.Background())

	require.NoError(t, w.Enqueue(Job{RoutingKey: "x"}))
	w.Stop()

	assert.Empty(t, pub.published())
	assert.Equal(t, 3, pub.failures)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	w := NewNotificationWorker(&recordingPublisher{}, zap.NewNop(), Options{QueueSize: 1})

	require.NoError(t, w.Enqueue(Job{RoutingKey: "first"}))
	assert.ErrorIs(t, w.Enqueue(Job{RoutingKey: "second"}), ErrQueueFull)
}

func TestEnqueueAfterStop(t *testing.T) {
	w := NewNotificationWorker(nil, zap.NewNop(), Options{})
	w.Start(context.Background())
	w.Stop()
	w.Stop()

	assert.ErrorIs(t, w.Enqueue(Job{RoutingKey: "late"}), ErrStopped)
}
