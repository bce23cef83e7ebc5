package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	sent       []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+"/"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeBroker struct {
	dials    int
	channels []*fakeChannel
	failDial error
}

func (b *fakeBroker) dial(string) (Channel, func() error, error) {
	b.dials++
	if b.failDial != nil {
		return nil, nil, b.failDial
	}
	ch := &fakeChannel{}
	b.channels = append(b.channels, ch)
	return ch, func() error { return nil }, nil
}

func TestPublishJSON(t *testing.T) {
	broker := &fakeBroker{}
	p, err := NewPublisher("amqp://test", "", WithDialer(broker.dial))
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "auth.code.reset", map[string]string{"email": "a@b.co"}))

	ch := broker.channels[0]
	assert.Equal(t, []string{DefaultExchange + "/topic"}, ch.declared)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "auth.code.reset", ch.sent[0].key)
	assert.Equal(t, amqp.Persistent, ch.sent[0].msg.DeliveryMode)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &body))
	assert.Equal(t, "a@b.co", body["email"])
}

func TestPublishReconnectsAfterFailure(t *testing.T) {
	broker := &fakeBroker{}
	p, err := NewPublisher("amqp://test", "events", WithDialer(broker.dial))
	require.NoError(t, err)

	broker.channels[0].publishErr = errors.New("channel closed")
	err = p.Publish(context.Background(), "k", "v")
	require.Error(t, err)
	assert.True(t, broker.channels[0].closed)

	require.NoError(t, p.Publish(context.Background(), "k", "v"))
	assert.Equal(t, 2, broker.dials)
	assert.Len(t, broker.channels[1].sent, 1)
	assert.Equal(t, "events", broker.channels[1].sent[0].exchange)
}

func TestNewPublisherRequiresURL(t *testing.T) {
	_, err := NewPublisher("", "")
	assert.Error(t, err)

	_, err = NewPublisher("amqp://test", "", WithDialer((&fakeBroker{failDial: errors.New("refused")}).dial))
	assert.Error(t, err)
}
