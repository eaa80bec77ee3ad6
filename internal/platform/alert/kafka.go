package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig holds producer configuration for the alert topic.
type KafkaConfig struct {
	Brokers         string
	Topic           string
	Retries         int
	DeliveryTimeout time.Duration
}

// KafkaNotifier publishes alerts to a Kafka topic so downstream incident
// tooling (pager, SIEM) can consume them.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(cfg KafkaConfig, logger *slog.Logger) (*KafkaNotifier, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("alert topic not configured")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaNotifier{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Notify publishes the alert synchronously, keyed by user so per-subject
// alerts stay ordered within a partition.
func (n *KafkaNotifier) Notify(ctx context.Context, a Alert) error {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return fmt.Errorf("notifier is closed")
	}
	n.mu.RUnlock()

	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(a.UserID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "severity", Value: []byte(a.Severity)},
			{Key: "event_type", Value: []byte(a.EventType)},
		},
	}

	results := n.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce alert: %w", err)
	}
	return nil
}

// Close gracefully shuts down the producer, flushing buffered records.
func (n *KafkaNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.client.Flush(ctx); err != nil && n.logger != nil {
		n.logger.Error("flushing alert producer", "error", err)
	}
	n.client.Close()
	return nil
}
