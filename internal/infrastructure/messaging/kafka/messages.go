// Package kafka carries the asynchronous analysis pipeline: the API server
// publishes analysis requests, workers consume them, and completion events
// flow back out for downstream consumers.  Messages for the same game share
// a partition key so per-game ordering holds end to end.
package kafka

import (
	"context"
	"time"
)

// Message is one consumed record, decoupled from the client library so
// handlers stay testable without a broker.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is one record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message.  A nil return commits the
// offset; an error triggers the consumer's retry and dead-letter path.
type MessageHandler func(ctx context.Context, msg *Message) error

// BatchItemError locates one failed message inside a batch publish.  Index
// is -1 when the whole batch failed with a single transport error.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarizes a PublishBatch call.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}
