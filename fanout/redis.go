package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"peerlearn_server/models"
)

// RedisBroker fans out across instances over redis pub/sub.
type RedisBroker struct {
	client *goredis.Client
	buffer int
	log    *zap.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *goredis.Client, buffer int, log *zap.Logger) *RedisBroker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{
		client: client,
		buffer: buffer,
		log:    log,
		subs:   make(map[*Subscription]struct{}),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, conversationID string, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := b.client.Publish(ctx, TopicName(conversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", TopicName(conversationID), err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	topic := TopicName(conversationID)
	pubsub := b.client.Subscribe(ctx, topic)
	// Wait for the subscription to be confirmed so no publish after this
	// call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	var sub *Subscription
	sub = newSubscription(topic, b.buffer, func() {
		_ = pubsub.Close()
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	})

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		for raw := range pubsub.Channel() {
			var msg models.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.log.Warn("dropping undecodable fan-out payload", zap.String("topic", topic), zap.Error(err))
				continue
			}
			sub.deliver(msg)
		}
	}()
	return sub, nil
}

// Close closes every open subscription. The redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	all := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		all = append(all, sub)
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}
