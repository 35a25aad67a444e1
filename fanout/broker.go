// Package fanout delivers appended messages to live subscribers of a
// conversation. Delivery is at-least-once and best-effort; subscribers drop
// duplicates by message id.
package fanout

import (
	"context"
	"sync"

	"peerlearn_server/metrics"
	"peerlearn_server/models"
)

// Broker publishes messages to per-conversation topics.
type Broker interface {
	Publish(ctx context.Context, conversationID string, msg models.Message) error
	Subscribe(ctx context.Context, conversationID string) (*Subscription, error)
	Close() error
}

// TopicName is the topic a conversation's messages are published on.
func TopicName(conversationID string) string {
	return "chat-" + conversationID
}

// Subscription is one subscriber's independent stream. When its buffer is
// full the oldest pending message is evicted, so publishers never wait.
type Subscription struct {
	topic  string
	ch     chan models.Message
	mu     sync.Mutex
	closed bool
	stop   func()
}

func newSubscription(topic string, buffer int, stop func()) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	metrics.ActiveSubscriptions.Inc()
	return &Subscription{
		topic: topic,
		ch:    make(chan models.Message, buffer),
		stop:  stop,
	}
}

// Messages is closed once the subscription is closed.
func (s *Subscription) Messages() <-chan models.Message {
	return s.ch
}

func (s *Subscription) Topic() string {
	return s.topic
}

func (s *Subscription) deliver(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
			metrics.DroppedDeliveries.Inc()
		default:
		}
	}
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	metrics.ActiveSubscriptions.Dec()
	if s.stop != nil {
		s.stop()
	}
	return nil
}
