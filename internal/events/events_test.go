package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leettrack/internal/events"
)

func TestMemoryFeed_FanOutAndUnsubscribe(t *testing.T) {
	feed := events.NewMemoryFeed()
	ctx := context.Background()

	a, unsubA, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	b, unsubB, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubB()

	change := events.Change{Collection: "submissions", ID: "s1", UserID: "u1", Action: "created"}
	require.NoError(t, feed.Publish(ctx, change))

	assert.Equal(t, change, receive(t, a))
	assert.Equal(t, change, receive(t, b))

	unsubA()
	require.NoError(t, feed.Publish(ctx, change))

	// a is closed after unsubscribe; b still receives
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, change, receive(t, b))
}

func TestMemoryFeed_UnsubscribeTwiceIsSafe(t *testing.T) {
	feed := events.NewMemoryFeed()
	_, unsub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	unsub()
	unsub()
}

func receive(t *testing.T, ch <-chan events.Change) events.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return events.Change{}
	}
}
