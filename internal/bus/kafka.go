package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the optional Kafka event mirror.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// KafkaMirror copies bus events to a Kafka topic for external dashboards.
// Writes are asynchronous and best-effort; a broker outage only costs
// monitoring data.
type KafkaMirror struct {
	writer *kafka.Writer
}

// NewKafkaMirror creates a mirror writing to cfg.Topic keyed by bus topic.
func NewKafkaMirror(cfg KafkaConfig) *KafkaMirror {
	topic := cfg.Topic
	if topic == "" {
		topic = "aiorg-events"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 100 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("Kafka event mirror write failed", "error", err, "count", len(messages))
			}
		},
	}
	return &KafkaMirror{writer: writer}
}

// Publish mirrors one event. Marshal or enqueue failures are logged and
// dropped.
func (m *KafkaMirror) Publish(topic string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Kafka event mirror marshal failed", "error", err, "type", ev.Type)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(topic),
		Value: data,
	}); err != nil {
		slog.Warn("Kafka event mirror enqueue failed", "error", err, "type", ev.Type)
	}
}

// Close flushes and closes the writer.
func (m *KafkaMirror) Close() error {
	return m.writer.Close()
}
