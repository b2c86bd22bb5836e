package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"dex-task-service/internal/events"
)

// NewTradeWriter builds the producer workers publish trade events on.
func NewTradeWriter(brokers []string, topic string) *kafka.Writer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
		Async:        false,
	})
	log.Printf("Kafka trade producer configured for topic: %s", topic)
	return writer
}

// NewTradeReader builds the consumer the manager drains trade events from.
func NewTradeReader(brokers []string, topic, groupID string) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	log.Printf("Kafka trade consumer configured for topic: %s group: %s", topic, groupID)
	return reader
}

// MessageWriter is the producer slice PublishTrade needs, satisfied by
// *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PublishTrade sends one trade event, keyed by task id so per-task ordering
// holds.
func PublishTrade(ctx context.Context, writer MessageWriter, payload events.TradeExecutedPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}
	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.TaskID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish trade event for task %s: %w", payload.TaskID, err)
	}
	return nil
}
