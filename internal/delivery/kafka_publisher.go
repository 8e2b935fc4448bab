package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

// PublishDelivery keys events by chat so one chat's history stays ordered
// within a partition.
func (p *KafkaPublisher) PublishDelivery(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery event: %w", err)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(d.ChatID), Value: payload})
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
