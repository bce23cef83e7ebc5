package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string

	d.Subscribe(EventResetCodeIssued, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.Email)
		return errors.New("smtp down")
	})
	d.Subscribe(EventResetCodeIssued, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.Email)
		return nil
	})
	d.Subscribe(EventSignedIn, func(context.Context, Event) error {
		calls = append(calls, "wrong")
		return nil
	})

	err := d.Publish(context.Background(), New(EventResetCodeIssued, "a@b.co", CodeIssuedPayload{Code: "123456"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Equal(t, []string{"first:a@b.co", "second:a@b.co"}, calls)
}

func TestNewStampsEvent(t *testing.T) {
	e := New(EventSignedOut, "a@b.co", nil)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventSignedOut, e.Type)
}

func TestNopDispatcher(t *testing.T) {
	d := Nop()
	d.Subscribe(EventSignedIn, func(context.Context, Event) error { return errors.New("never") })
	assert.NoError(t, d.Publish(context.Background(), New(EventSignedIn, "", nil)))
}
