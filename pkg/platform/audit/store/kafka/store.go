// Package kafka publishes audit records to a Kafka topic for downstream
// SIEM and compliance consumers.
//
// This is a write-only sink: aggregation reads from the primary audit log,
// not from Kafka, so this adapter implements audit.Sink but not audit.Log.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "vigil/pkg/platform/audit"
)

// Sink publishes audit records to Kafka, keyed by actor so per-actor
// ordering survives partitioning.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New creates a Kafka audit sink. Produce acknowledgements are required from
// all in-sync replicas so an acked record is durable.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Append produces one record synchronously. The recorder already batches and
// retries above this layer, so each call is one record.
func (s *Sink) Append(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(rec.Actor),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(audit.CategoryOf(rec.Action))},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (s *Sink) Close() {
	s.client.Close()
}
