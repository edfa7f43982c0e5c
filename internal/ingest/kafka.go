package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaArchiver streams accepted samples to a topic keyed by driver,
// so per-driver history stays ordered within a partition.
type KafkaArchiver struct {
	writer *kafka.Writer
}

func NewKafkaArchiver(brokers []string, topic string) *KafkaArchiver {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaArchiver{writer: w}
}

func (k *KafkaArchiver) Archive(ctx context.Context, s Sample) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(s.DriverID), Value: b})
}

func (k *KafkaArchiver) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
