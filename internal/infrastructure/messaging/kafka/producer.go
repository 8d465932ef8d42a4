package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// ErrProducerClosed is returned by publish calls made after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeProducerClosed, "producer is closed")

// ProducerConfig configures the pipeline producer.
type ProducerConfig struct {
	Brokers          []string
	Acks             string // "all" (default), "one" or "none"
	MaxRetries       int
	RetryBackoff     time.Duration
	BatchSize        int
	BatchTimeout     time.Duration
	MaxMessageBytes  int
	CompressionCodec string // "snappy" (default), "gzip", "lz4", "zstd" or "none"
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration

	SASLEnabled   bool
	SASLMechanism string // "PLAIN", "SCRAM-SHA-256" or "SCRAM-SHA-512"
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCertPath   string
}

// ProducerStats is a point-in-time snapshot of the producer counters.
type ProducerStats struct {
	MessagesSent   int64
	MessagesFailed int64
	BytesSent      int64
	LastSentAt     time.Time
	LastLatency    time.Duration
}

type producerMetrics struct {
	messagesSent   atomic.Int64
	messagesFailed atomic.Int64
	bytesSent      atomic.Int64
	lastSentNanos  atomic.Int64
	lastLatencyNs  atomic.Int64
}

// WriterInterface abstracts kafka.Writer so tests can stub the broker.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes to the analysis topics. Messages are
// routed through a hash balancer, so records sharing a key land on the same
// partition and per-game ordering holds.
type Producer struct {
	writer  WriterInterface
	config  ProducerConfig
	logger  logging.Logger
	closed  atomic.Bool
	metrics *producerMetrics
}

// NewProducer builds a Producer connected to cfg.Brokers.
func NewProducer(cfg ProducerConfig, log logging.Logger) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("kafka-producer")

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = 1 << 20
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}

	transport := &kafka.Transport{DialTimeout: 10 * time.Second}
	if cfg.TLSEnabled {
		tlsCfg, err := newTLSConfig(cfg.TLSCertPath)
		if err != nil {
			return nil, err
		}
		transport.TLS = tlsCfg
	}
	if cfg.SASLEnabled {
		mech, err := newSASLMechanism(cfg.SASLMechanism, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, err
		}
		transport.SASL = mech
	}

	acks := requiredAcks(cfg.Acks)
	writer := &kafka.Writer{
		Addr:            kafka.TCP(cfg.Brokers...),
		Balancer:        &kafka.Hash{},
		MaxAttempts:     cfg.MaxRetries + 1,
		WriteBackoffMin: cfg.RetryBackoff,
		BatchSize:       cfg.BatchSize,
		BatchBytes:      int64(cfg.MaxMessageBytes),
		BatchTimeout:    cfg.BatchTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		RequiredAcks:    acks,
		Compression:     compressionCodec(cfg.CompressionCodec),
		Transport:       transport,
	}

	log.Info("kafka producer ready",
		logging.Any("brokers", cfg.Brokers),
		logging.String("acks", acks.String()),
	)

	return &Producer{
		writer:  writer,
		config:  cfg,
		logger:  log,
		metrics: &producerMetrics{},
	}, nil
}

// Publish sends one message and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg == nil || msg.Topic == "" {
		return errors.New(errors.ErrCodeBadRequest, "message topic is required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "message value is required")
	}
	if len(msg.Value) > p.config.MaxMessageBytes {
		return errors.Newf(errors.ErrCodeMessageTooLarge,
			"message of %d bytes exceeds the %d byte limit", len(msg.Value), p.config.MaxMessageBytes)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.metrics.messagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeMessagingError, "publishing message")
	}

	latency := time.Since(start)
	p.metrics.messagesSent.Add(1)
	p.metrics.bytesSent.Add(int64(len(msg.Value)))
	p.metrics.lastSentNanos.Store(time.Now().UnixNano())
	p.metrics.lastLatencyNs.Store(int64(latency))

	p.logger.Debug("message published",
		logging.String("topic", msg.Topic),
		logging.Duration("latency", latency),
	)
	return nil
}

// PublishEnvelope marshals env and publishes it to topic. The key selects
// the partition; callers pass the game ID so per-game order is preserved.
func (p *Producer) PublishEnvelope(ctx context.Context, topic string, key []byte, env *EventEnvelope) error {
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// PublishBatch sends msgs in one writer call and reports per-message
// failures. A non-nil result is returned even when some messages failed.
func (p *Producer) PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil, errors.New(errors.ErrCodeBadRequest, "batch is empty")
	}

	kMsgs := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		if msg == nil || msg.Topic == "" {
			return nil, errors.Newf(errors.ErrCodeBadRequest, "batch message %d has no topic", i)
		}
		kMsgs[i] = toKafkaMessage(msg)
	}

	result := &BatchPublishResult{}
	err := p.writer.WriteMessages(ctx, kMsgs...)
	switch werrs := err.(type) {
	case nil:
		result.Succeeded = len(msgs)
	case kafka.WriteErrors:
		for i, we := range werrs {
			if we == nil {
				result.Succeeded++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, BatchItemError{Index: i, Topic: msgs[i].Topic, Error: we})
		}
	default:
		result.Failed = len(msgs)
		result.Errors = append(result.Errors, BatchItemError{Index: -1, Error: err})
	}

	p.metrics.messagesSent.Add(int64(result.Succeeded))
	p.metrics.messagesFailed.Add(int64(result.Failed))

	if result.Failed > 0 {
		p.logger.Warn("batch published with failures",
			logging.Int("succeeded", result.Succeeded),
			logging.Int("failed", result.Failed),
		)
	} else {
		p.logger.Debug("batch published", logging.Int("succeeded", result.Succeeded))
	}
	return result, nil
}

// Metrics returns a snapshot of the producer counters.
func (p *Producer) Metrics() ProducerStats {
	stats := ProducerStats{
		MessagesSent:   p.metrics.messagesSent.Load(),
		MessagesFailed: p.metrics.messagesFailed.Load(),
		BytesSent:      p.metrics.bytesSent.Load(),
		LastLatency:    time.Duration(p.metrics.lastLatencyNs.Load()),
	}
	if nanos := p.metrics.lastSentNanos.Load(); nanos != 0 {
		stats.LastSentAt = time.Unix(0, nanos)
	}
	return stats
}

// Close flushes pending writes and releases the writer. Safe to call twice.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed",
		logging.Int64("messages_sent", p.metrics.messagesSent.Load()),
		logging.Int64("messages_failed", p.metrics.messagesFailed.Load()),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingError, "closing producer")
	}
	return nil
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

func requiredAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "none":
		return kafka.RequireNone
	case "one":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func compressionCodec(codec string) kafka.Compression {
	switch codec {
	case "none":
		return 0
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

// ValidateProducerConfig rejects configurations the writer cannot honour.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "at least one broker is required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeBadRequest, "max retries must not be negative")
	}
	switch cfg.Acks {
	case "", "all", "one", "none":
	default:
		return errors.Newf(errors.ErrCodeBadRequest, "unknown acks setting %q", cfg.Acks)
	}
	switch cfg.CompressionCodec {
	case "", "snappy", "gzip", "lz4", "zstd", "none":
	default:
		return errors.Newf(errors.ErrCodeBadRequest, "unknown compression codec %q", cfg.CompressionCodec)
	}
	if cfg.SASLEnabled {
		switch cfg.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return errors.Newf(errors.ErrCodeBadRequest, "unsupported SASL mechanism %q", cfg.SASLMechanism)
		}
	}
	return nil
}
