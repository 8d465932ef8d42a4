package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// Topic names.
const (
	TopicAnalysisRequest   = "game.analysis.request"
	TopicAnalysisCompleted = "game.analysis.completed"
	TopicAnalysisDLQ       = "game.analysis.request.dlq"
)

// Event types carried in the envelope.
const (
	EventAnalysisRequested = "analysis.requested"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// EventEnvelope is the wire format shared by every topic.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// AnalysisRequestPayload asks a worker to analyze one stored game.
type AnalysisRequestPayload struct {
	AssessmentID common.ID `json:"assessment_id"`
	GameID       common.ID `json:"game_id"`
	PGNObjectKey string    `json:"pgn_object_key"`
	EngineDepth  int       `json:"engine_depth"`
	MultiPV      int       `json:"multipv"`
	RequestedAt  time.Time `json:"requested_at"`
}

// AnalysisCompletedPayload reports a finished or failed run.
type AnalysisCompletedPayload struct {
	AssessmentID common.ID `json:"assessment_id"`
	GameID       common.ID `json:"game_id"`
	Status       string    `json:"status"`
	RiskScore    *float64  `json:"risk_score,omitempty"`
	RiskLevel    string    `json:"risk_level,omitempty"`
	Error        string    `json:"error,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// NewEnvelope wraps a payload for publishing.
func NewEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encoding event payload")
	}
	return &EventEnvelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "event has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decoding event payload")
	}
	return nil
}

// ToMessage serializes the envelope for one topic.  The key is the partition
// key; callers pass the game ID so all events of one game keep their order.
func (e *EventEnvelope) ToMessage(topic string, key []byte) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encoding event envelope")
	}
	return &ProducerMessage{
		Topic:     topic,
		Key:       key,
		Value:     val,
		Headers:   map[string]string{"event_type": e.Type},
		Timestamp: e.Timestamp,
	}, nil
}

// ParseEnvelope decodes one consumed message back into an envelope.
func ParseEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeBadRequest, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decoding event envelope")
	}
	return &env, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic management
// ─────────────────────────────────────────────────────────────────────────────

// TopicConfig describes one topic to provision.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager provisions and inspects topics through a single broker
// connection.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, log logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeBadRequest, "brokers required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "dialing kafka broker")
	}
	return &TopicManager{conn: conn, logger: log.Named("topics")}, nil
}

// CreateTopic provisions one topic; an already-existing topic is not an
// error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeBadRequest, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeBadRequest, "partitions and replication factor must be positive")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries,
			kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries,
			kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessagingError, "creating topic "+cfg.Name)
	}
	m.logger.Info("Topic created",
		logging.String("topic", cfg.Name),
		logging.Int("partitions", cfg.NumPartitions))
	return nil
}

// TopicExists reports whether the topic has at least one partition.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// ListTopics returns the distinct topic names visible on the broker.
func (m *TopicManager) ListTopics(ctx context.Context) ([]string, error) {
	partitions, err := m.conn.ReadPartitions()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "reading partitions")
	}

	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

// EnsureTopics provisions every listed topic.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultTopics provisions the pipeline's own topics.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	return m.EnsureTopics(ctx, DefaultTopics())
}

// Close releases the broker connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics lists the pipeline topics.  Replication factor 1 suits the
// single-broker compose setup; production clusters pre-provision these with
// their own replication policy.
func DefaultTopics() []TopicConfig {
	const day = int64(24 * 3600 * 1000)
	return []TopicConfig{
		{Name: TopicAnalysisRequest, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: TopicAnalysisCompleted, NumPartitions: 3, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: TopicAnalysisDLQ, NumPartitions: 1, ReplicationFactor: 1, RetentionMs: 30 * day},
	}
}
