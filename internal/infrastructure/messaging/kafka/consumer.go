package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

var (
	// ErrAlreadyRunning is returned by Start when the consume loop is active.
	ErrAlreadyRunning = errors.New(errors.ErrCodeConsumerConflict, "consumer is already running")
	// ErrConsumerClosed is returned by Start after Close.
	ErrConsumerClosed = errors.New(errors.ErrCodeMessagingError, "consumer is closed")
)

// RetryConfig controls redelivery of messages whose handler failed.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig configures a consumer group member.
type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	AutoOffsetReset   string // "earliest" (default) or "latest"
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxWait           time.Duration
	FetchMinBytes     int
	FetchMaxBytes     int
	IsolationLevel    string // "read_committed" to skip aborted records

	SASLEnabled   bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCertPath   string

	Retry RetryConfig
}

// ConsumerStats is a point-in-time snapshot of the consumer counters.
type ConsumerStats struct {
	MessagesConsumed     int64
	MessagesProcessed    int64
	MessagesFailed       int64
	MessagesRetried      int64
	MessagesDeadLettered int64
	Lag                  int64
	LastConsumedAt       time.Time
}

type consumerMetrics struct {
	messagesConsumed     atomic.Int64
	messagesProcessed    atomic.Int64
	messagesFailed       atomic.Int64
	messagesRetried      atomic.Int64
	messagesDeadLettered atomic.Int64
	lag                  atomic.Int64
	lastConsumedNanos    atomic.Int64
}

// ReaderInterface abstracts kafka.Reader so tests can stub the broker.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer dispatches records from the analysis topics to registered
// handlers. Offsets are committed only after a handler succeeds or the
// record is parked on the dead-letter topic, so a crash mid-handle
// redelivers rather than drops.
type Consumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger

	mu       sync.RWMutex
	handlers map[string]MessageHandler

	running atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	deadLetter *Producer
	metrics    *consumerMetrics
}

// NewConsumer builds a Consumer joining cfg.GroupID over cfg.Topics.
func NewConsumer(cfg ConsumerConfig, log logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("kafka-consumer")

	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 3 * time.Second
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.FetchMinBytes == 0 {
		cfg.FetchMinBytes = 1
	}
	if cfg.FetchMaxBytes == 0 {
		cfg.FetchMaxBytes = 50 << 20
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.RetryBackoff == 0 {
		cfg.Retry.RetryBackoff = time.Second
	}
	if cfg.Retry.MaxRetryBackoff == 0 {
		cfg.Retry.MaxRetryBackoff = 30 * time.Second
	}

	// CommitInterval stays zero so CommitMessages is synchronous and an
	// offset is durable before the next fetch.
	readerCfg := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       cfg.Topics,
		MinBytes:          cfg.FetchMinBytes,
		MaxBytes:          cfg.FetchMaxBytes,
		MaxWait:           cfg.MaxWait,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       kafka.FirstOffset,
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}
	if cfg.IsolationLevel == "read_committed" {
		readerCfg.IsolationLevel = kafka.ReadCommitted
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.TLSEnabled {
		tlsCfg, err := newTLSConfig(cfg.TLSCertPath)
		if err != nil {
			return nil, err
		}
		dialer.TLS = tlsCfg
	}
	if cfg.SASLEnabled {
		mech, err := newSASLMechanism(cfg.SASLMechanism, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, err
		}
		dialer.SASLMechanism = mech
	}
	readerCfg.Dialer = dialer

	var deadLetter *Producer
	if cfg.Retry.DeadLetterTopic != "" {
		dlCfg := ProducerConfig{
			Brokers:       cfg.Brokers,
			SASLEnabled:   cfg.SASLEnabled,
			SASLMechanism: cfg.SASLMechanism,
			SASLUsername:  cfg.SASLUsername,
			SASLPassword:  cfg.SASLPassword,
			TLSEnabled:    cfg.TLSEnabled,
			TLSCertPath:   cfg.TLSCertPath,
		}
		p, err := NewProducer(dlCfg, log)
		if err != nil {
			return nil, err
		}
		deadLetter = p
	}

	return &Consumer{
		reader:     kafka.NewReader(readerCfg),
		config:     cfg,
		logger:     log,
		handlers:   make(map[string]MessageHandler),
		deadLetter: deadLetter,
		metrics:    &consumerMetrics{},
	}, nil
}

// Subscribe registers handler for topic. Registering a second handler for
// the same topic replaces the first.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return errors.New(errors.ErrCodeBadRequest, "topic is required")
	}
	if handler == nil {
		return errors.New(errors.ErrCodeBadRequest, "handler is required")
	}
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()
	c.logger.Info("subscribed", logging.String("topic", topic))
	return nil
}

// Unsubscribe removes the handler for topic.
func (c *Consumer) Unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.handlers, topic)
	c.mu.Unlock()
	c.logger.Info("unsubscribed", logging.String("topic", topic))
}

// Start launches the consume loop. It returns ErrAlreadyRunning when the
// loop is active.
func (c *Consumer) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.Any("topics", c.config.Topics),
	)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		c.metrics.messagesConsumed.Add(1)
		c.metrics.lastConsumedNanos.Store(time.Now().UnixNano())
		c.metrics.lag.Store(m.HighWaterMark - m.Offset)

		msg := fromKafkaMessage(m)

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("no handler for topic, skipping", logging.String("topic", m.Topic))
			c.commit(ctx, m)
			continue
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			// The offset stays uncommitted so the record is redelivered
			// after a restart or rebalance.
			c.logger.Error("message not committed",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(err),
			)
			continue
		}
		c.commit(ctx, m)
	}
}

// processMessage runs handler with retries. A nil return means the record
// was handled or parked on the dead-letter topic and its offset may be
// committed. An error means the offset must not advance.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		c.metrics.messagesProcessed.Add(1)
		return nil
	}

	backoff := c.config.Retry.RetryBackoff
	for attempt := 1; attempt <= c.config.Retry.MaxRetries; attempt++ {
		c.metrics.messagesRetried.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err = handler(ctx, msg); err == nil {
			c.metrics.messagesProcessed.Add(1)
			return nil
		}

		backoff *= 2
		if backoff > c.config.Retry.MaxRetryBackoff {
			backoff = c.config.Retry.MaxRetryBackoff
		}
	}

	c.metrics.messagesFailed.Add(1)
	c.logger.Error("handler failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("retries", c.config.Retry.MaxRetries),
		logging.Err(err),
	)

	if c.deadLetter == nil {
		c.logger.Warn("no dead-letter topic configured, dropping message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
		)
		return nil
	}
	return c.sendToDeadLetter(ctx, msg, err)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg *Message, cause error) error {
	headers := make(map[string]string, len(msg.Headers)+4)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["original_topic"] = msg.Topic
	headers["original_offset"] = strconv.FormatInt(msg.Offset, 10)
	headers["error_message"] = cause.Error()
	headers["failed_at"] = time.Now().UTC().Format(time.RFC3339)

	dlMsg := &ProducerMessage{
		Topic:   c.config.Retry.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := c.deadLetter.Publish(ctx, dlMsg); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingError, "publishing to dead-letter topic")
	}

	c.metrics.messagesDeadLettered.Add(1)
	c.logger.Warn("message dead-lettered",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.String("dead_letter_topic", c.config.Retry.DeadLetterTopic),
	)
	return nil
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Error("offset commit failed",
			logging.String("topic", m.Topic),
			logging.Int64("offset", m.Offset),
			logging.Err(err),
		)
	}
}

// Metrics returns a snapshot of the consumer counters.
func (c *Consumer) Metrics() ConsumerStats {
	stats := ConsumerStats{
		MessagesConsumed:     c.metrics.messagesConsumed.Load(),
		MessagesProcessed:    c.metrics.messagesProcessed.Load(),
		MessagesFailed:       c.metrics.messagesFailed.Load(),
		MessagesRetried:      c.metrics.messagesRetried.Load(),
		MessagesDeadLettered: c.metrics.messagesDeadLettered.Load(),
		Lag:                  c.metrics.lag.Load(),
	}
	if nanos := c.metrics.lastConsumedNanos.Load(); nanos != 0 {
		stats.LastConsumedAt = time.Unix(0, nanos)
	}
	return stats
}

// Close stops the consume loop, waits for the in-flight message and
// releases the reader. Safe to call twice, started or not.
func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.reader.Close()
	if c.deadLetter != nil {
		if dlErr := c.deadLetter.Close(); err == nil {
			err = dlErr
		}
	}

	c.logger.Info("kafka consumer closed",
		logging.Int64("messages_consumed", c.metrics.messagesConsumed.Load()),
		logging.Int64("messages_dead_lettered", c.metrics.messagesDeadLettered.Load()),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingError, "closing consumer")
	}
	return nil
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
		Timestamp: m.Time,
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// ValidateConsumerConfig rejects configurations the reader cannot honour.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "at least one broker is required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeBadRequest, "consumer group id is required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "at least one topic is required")
	}
	switch cfg.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return errors.Newf(errors.ErrCodeBadRequest, "unknown auto offset reset %q", cfg.AutoOffsetReset)
	}
	if cfg.SASLEnabled {
		switch cfg.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return errors.Newf(errors.ErrCodeBadRequest, "unsupported SASL mechanism %q", cfg.SASLMechanism)
		}
		if cfg.SASLUsername == "" || cfg.SASLPassword == "" {
			return errors.New(errors.ErrCodeBadRequest, "SASL credentials are required")
		}
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New(errors.ErrCodeBadRequest, "max retries must not be negative")
	}
	return nil
}
