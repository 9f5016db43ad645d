package messaging

import "context"

// Topics and consumer groups used by the storefront.
const (
	TopicOrdersPaid = "orders.paid"

	GroupBotNotifier = "storefront-bot-notifier"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Handler processes one message payload.
type Handler func(ctx context.Context, payload []byte) error

// Subscriber defines an interface for subscribing to a message topic.
// Consume blocks until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler Handler)
}
