// Package notifications delivers donation lifecycle events to websocket subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"sun/internal/models"
	"sun/internal/observability"
	"sun/internal/redisclient"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes lifecycle events into Redis so every instance can fan them
// out. Without Redis it delivers to in-process subscribers only.
type Notifier struct {
	rdb *redis.Client

	mu     sync.RWMutex
	nextID int
	local  map[int]func(payload string)
}

// NewNotifier creates a Notifier. rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, local: make(map[int]func(string))}
}

// Publish encodes event as JSON and sends it to the events channel.
func (n *Notifier) Publish(ctx context.Context, event models.DonationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if n.rdb == nil {
		n.deliverLocal(string(payload))
		return nil
	}

	ctx, span := observability.StartRedisSpan(ctx, "PUBLISH")
	defer span.End()
	if err := n.rdb.Publish(ctx, redisclient.EventsChannel, payload).Err(); err != nil {
		observability.RecordError(ctx, err)
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (n *Notifier) deliverLocal(payload string) {
	n.mu.RLock()
	handlers := make([]func(string), 0, len(n.local))
	for _, h := range n.local {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()
	for _, h := range handlers {
		safeDeliver("local", h, payload)
	}
}

// Subscribe calls onMessage for every published event until ctx is done.
// With Redis it listens on the events channel; otherwise it registers an in-process
// handler that is dropped once ctx is done.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		n.mu.Lock()
		id := n.nextID
		n.nextID++
		n.local[id] = onMessage
		n.mu.Unlock()

		context.AfterFunc(ctx, func() {
			n.mu.Lock()
			delete(n.local, id)
			n.mu.Unlock()
		})
		return nil
	}

	sub := n.rdb.Subscribe(ctx, redisclient.EventsChannel)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", redisclient.EventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				safeDeliver(msg.Channel, onMessage, msg.Payload)
			}
		}
	}()

	return nil
}

func (n *Notifier) localSubscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.local)
}

func safeDeliver(source string, fn func(string), payload string) {
	defer func() {
		if r := recover(); r != nil {
			observability.Logger.Error("panic in event subscriber",
				slog.String("source", source),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn(payload)
}
