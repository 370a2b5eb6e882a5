package kafka

import "context"

// MessageHandler consumes one Kafka message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, value []byte) error
}
