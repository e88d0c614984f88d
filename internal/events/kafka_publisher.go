package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaPublisher implements Publisher on a Confluent Kafka producer. All
// events go to a single topic, keyed so that events about the same entity
// stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka-backed event publisher.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaPublisher{producer: p, topic: topic}, nil
}

// Publish delivers one event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	deliveryCh := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Key),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}, deliveryCh)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	select {
	case e := <-deliveryCh:
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("event delivery failed: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding messages and closes the producer.
func (p *KafkaPublisher) Close() error {
	p.producer.Flush(int((5 * time.Second).Milliseconds()))
	p.producer.Close()
	return nil
}

var _ Publisher = (*KafkaPublisher)(nil)
