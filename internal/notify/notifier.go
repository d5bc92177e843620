// Package notify carries participant-change signals between the write path
// and the fan-out. Delivery is at-least-once and unordered; Redis pub/sub
// drops messages for absent subscribers, which is why the fan-out keeps its
// own backstop poll.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

type Notifier interface {
	// PublishChange signals that some participant row of the jam mutated.
	// The payload is intentionally empty: subscribers re-fetch the full
	// list rather than trusting an event to be complete or in order.
	PublishChange(ctx context.Context, jamID string) error
	// SubscribeChanges delivers one signal per received notification until
	// ctx is cancelled. Close releases the subscription.
	SubscribeChanges(ctx context.Context, jamID string) (Subscription, error)
}

type Subscription interface {
	Changes() <-chan struct{}
	Close() error
}

type redisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) Notifier {
	return &redisNotifier{client: client}
}

func channelFor(jamID string) string {
	return fmt.Sprintf("jam:%s:changes", jamID)
}

func (n *redisNotifier) PublishChange(ctx context.Context, jamID string) error {
	return n.client.Publish(ctx, channelFor(jamID), "1").Err()
}

func (n *redisNotifier) SubscribeChanges(ctx context.Context, jamID string) (Subscription, error) {
	pubsub := n.client.Subscribe(ctx, channelFor(jamID))
	// Force the SUBSCRIBE round trip so a broken connection fails here,
	// not silently in the receive loop.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub:  pubsub,
		changes: make(chan struct{}, 1),
	}
	go sub.pump(ctx)
	return sub, nil
}

type redisSubscription struct {
	pubsub  *redis.PubSub
	changes chan struct{}
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.changes)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			// Coalesce: a pending signal already forces a re-fetch.
			select {
			case s.changes <- struct{}{}:
			default:
			}
		}
	}
}

func (s *redisSubscription) Changes() <-chan struct{} {
	return s.changes
}

func (s *redisSubscription) Close() error {
	if err := s.pubsub.Close(); err != nil {
		log.Printf("[Notify] close subscription: %v", err)
		return err
	}
	return nil
}
