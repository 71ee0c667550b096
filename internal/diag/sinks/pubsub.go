package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/mediascribe/mediascribe/internal/diag"
)

// PubSubSink publishes diagnostic records to a Pub/Sub topic so an
// operations pipeline can consume failures off-host.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubSink connects to the project and binds the topic.
func NewPubSubSink(ctx context.Context, projectID, topicID string) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewPubSubSinkWithClient(client, topicID), nil
}

// NewPubSubSinkWithClient binds the topic on an existing client. The sink
// owns the client and closes it on Close.
func NewPubSubSinkWithClient(client *pubsub.Client, topicID string) *PubSubSink {
	return &PubSubSink{client: client, topic: client.Topic(topicID)}
}

// Consume marshals the record to JSON and publishes it.
func (s *PubSubSink) Consume(ctx context.Context, rec diag.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal diagnostics record: %w", err)
	}
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"stage": rec.Stage,
			"class": string(rec.Class),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish diagnostics record: %w", err)
	}
	return nil
}

// Close stops the topic's publish goroutines and closes the client.
func (s *PubSubSink) Close(context.Context) error {
	if s == nil {
		return nil
	}
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}
