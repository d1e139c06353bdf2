package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaWriter publishes events in the cloudevents structured mode: the whole event is
// the message value and the subject is the key, so events of a submission stay ordered
// within a partition.
type KafkaWriter struct {
	writer *kafka.Writer
}

func NewKafkaWriter(brokers []string, clientID string) *KafkaWriter {
	transport := &kafka.Transport{
		ClientID: clientID,
	}
	return &KafkaWriter{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchSize:              1,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
			Transport:              transport,
		},
	}
}

func (k *KafkaWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	msg, err := toKafkaMessage(topic, e)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", e.ID(), err)
	}

	zap.S().Named("kafka_writer").Debugw("event published", "event_id", e.ID(), "type", e.Type(), "topic", topic)
	return nil
}

func (k *KafkaWriter) Close(_ context.Context) error {
	return k.writer.Close()
}

func toKafkaMessage(topic string, e cloudevents.Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	key := e.Subject()
	if key == "" {
		key = e.ID()
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(cloudevents.ApplicationCloudEventsJSON)},
			{Key: "ce_type", Value: []byte(e.Type())},
			{Key: "ce_source", Value: []byte(e.Source())},
		},
	}, nil
}
