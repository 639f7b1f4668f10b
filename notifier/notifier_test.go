package notifier

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/phonebook/store"
)

func receiveOne(t *testing.T, sub *Subscription) store.Person {
	t.Helper()
	select {
	case p, ok := <-sub.Events():
		require.True(t, ok, "event channel closed unexpectedly")
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return store.Person{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case p, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event: %v", p)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	n := New(slog.Default())
	defer n.Close()

	first, err := n.Subscribe(context.Background())
	require.NoError(t, err)
	second, err := n.Subscribe(context.Background())
	require.NoError(t, err)

	n.Publish(store.Person{Name: "Ada Lovelace"})

	assert.Equal(t, "Ada Lovelace", receiveOne(t, first).Name)
	assert.Equal(t, "Ada Lovelace", receiveOne(t, second).Name)
}

func TestLateSubscriberSeesNoHistory(t *testing.T) {
	n := New(slog.Default())
	defer n.Close()

	early, err := n.Subscribe(context.Background())
	require.NoError(t, err)

	n.Publish(store.Person{Name: "Ada Lovelace"})
	assert.Equal(t, "Ada Lovelace", receiveOne(t, early).Name)

	// Connected after the event: never sees it.
	late, err := n.Subscribe(context.Background())
	require.NoError(t, err)
	assertNoEvent(t, late)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := New(slog.Default())
	defer n.Close()

	sub, err := n.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n.SubscriberCount())

	sub.Unsubscribe()
	assert.Equal(t, 0, n.SubscriberCount())

	// Idempotent.
	sub.Unsubscribe()

	// Channel is closed after unsubscribe.
	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Publishing after unsubscribe does not panic.
	n.Publish(store.Person{Name: "Ada Lovelace"})
}

func TestContextCancelRemovesSubscriber(t *testing.T) {
	n := New(slog.Default())
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := n.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		return n.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	n := New(slog.Default())
	defer n.Close()

	_, err := n.Subscribe(context.Background())
	require.NoError(t, err)

	// Publish more events than the buffer holds; must return promptly.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			n.Publish(store.Person{Name: "Flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestCloseTearsDownSubscriptions(t *testing.T) {
	n := New(slog.Default())

	sub, err := n.Subscribe(context.Background())
	require.NoError(t, err)

	n.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, n.SubscriberCount())

	// Subscribe after close fails; publish is a no-op.
	_, err = n.Subscribe(context.Background())
	assert.Error(t, err)
	n.Publish(store.Person{Name: "Ada Lovelace"})

	// Close is idempotent.
	n.Close()
}

func TestPublishAfterCloseIsNoOp(t *testing.T) {
	n := New(slog.Default())

	sub, err := n.Subscribe(context.Background())
	require.NoError(t, err)

	n.Close()
	n.Publish(store.Person{Name: "Ada Lovelace"})

	assertNoEvent(t, sub)

	_, err = n.Subscribe(context.Background())
	assert.Error(t, err)
}
