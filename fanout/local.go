package fanout

import (
	"context"
	"sync"

	"peerlearn_server/models"
)

// LocalBroker fans out within a single process.
type LocalBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
}

var _ Broker = (*LocalBroker)(nil)

func NewLocalBroker(buffer int) *LocalBroker {
	return &LocalBroker{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

func (b *LocalBroker) Publish(_ context.Context, conversationID string, msg models.Message) error {
	topic := TopicName(conversationID)

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(msg)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, conversationID string) (*Subscription, error) {
	topic := TopicName(conversationID)

	var sub *Subscription
	sub = newSubscription(topic, b.buffer, func() { b.remove(topic, sub) })

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

func (b *LocalBroker) remove(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics[topic], sub)
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Subscribers returns the number of open subscriptions on a conversation.
func (b *LocalBroker) Subscribers(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[TopicName(conversationID)])
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	var all []*Subscription
	for _, subs := range b.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}
