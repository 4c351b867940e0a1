// Package events is the change feed: every store write publishes a
// Change, and consumers subscribe to react to it. Subscriptions are
// explicit observer registrations with an unsubscribe function; there
// is no ambient state. Two backends: an in-process feed for dev and
// tests, and Redis pub/sub for multi-process setups.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Change describes one store mutation.
type Change struct {
	Collection string `json:"collection"` // users, submissions, leaves, bonuses
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"` // created, updated
}

// Feed publishes changes to whoever is subscribed. Subscribe returns
// a receive channel and an unsubscribe function; after unsubscribing
// the channel is closed and no further changes arrive.
type Feed interface {
	Publish(ctx context.Context, ch Change) error
	Subscribe(ctx context.Context) (<-chan Change, func(), error)
}

// MemoryFeed fans changes out to in-process subscribers.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Change
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Change)}
}

// Publish delivers ch to every subscriber. A subscriber that is not
// keeping up is skipped rather than blocking the writer.
func (f *MemoryFeed) Publish(ctx context.Context, ch Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub <- ch:
		default:
		}
	}
	return nil
}

// Subscribe registers an observer.
func (f *MemoryFeed) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	sub := make(chan Change, 64)
	f.subs[id] = sub

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return sub, unsubscribe, nil
}

// RedisFeed carries changes over a Redis pub/sub channel so the
// worker can run as a separate process.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed builds a feed over the given pub/sub channel name.
func NewRedisFeed(client *redis.Client, channel string) *RedisFeed {
	if channel == "" {
		channel = "leettrack:changes"
	}
	return &RedisFeed{client: client, channel: channel}
}

// Publish serializes the change as JSON and publishes it.
func (f *RedisFeed) Publish(ctx context.Context, ch Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

// Subscribe opens a pub/sub subscription and decodes messages until
// unsubscribed or the context ends.
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ch Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				continue
			}
			select {
			case out <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	unsubscribe := func() { _ = pubsub.Close() }
	return out, unsubscribe, nil
}
