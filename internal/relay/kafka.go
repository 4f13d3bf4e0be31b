package relay

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dawsh2/AlphaPulse-sub008/internal/protocol"
)

// kafkaSink produces raw frames to a Kafka topic, keyed by domain/type so a
// partitioned consumer keeps per-stream ordering.
type kafkaSink struct {
	id      string
	brokers []string
	topic   string
	client  *kgo.Client
}

func newKafkaSink(id string, brokers []string, topic string) *kafkaSink {
	return &kafkaSink{id: id, brokers: brokers, topic: topic}
}

func (s *kafkaSink) ID() string { return s.id }

func (s *kafkaSink) Connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DisableIdempotentWrite(),
	)
	if err != nil {
		return fmt.Errorf("sink %s kafka client: %w", s.id, err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return fmt.Errorf("sink %s kafka ping: %w", s.id, err)
	}
	s.client = client
	return nil
}

func (s *kafkaSink) Send(ctx context.Context, msg protocol.Message) error {
	if s.client == nil {
		return fmt.Errorf("sink %s: %w", s.id, ErrSinkUnavailable)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(fmt.Sprintf("%s.%d", msg.Header.Domain, msg.Header.Type)),
		Value: msg.Bytes(),
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("sink %s produce: %w", s.id, err)
	}
	return nil
}

func (s *kafkaSink) Close() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}
