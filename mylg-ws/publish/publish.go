// Package publish mirrors presence events onto a Kinesis stream so other
// services can follow presence without holding a socket.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

// Envelope is the record format written to the presence stream.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher writes presence events to a Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a Publisher for streamName, falling back to the standard
// stream name for the given environment.
func Build(sess *session.Session, env, streamName string) *Publisher {
	if streamName == "" {
		streamName = StreamName(env)
	}
	return New(kinesis.New(sess), streamName)
}

// StreamName returns the presence stream name for the given environment.
func StreamName(env string) string {
	return env + "-mylg-ws--presence"
}

// StreamName returns the stream this publisher writes to.
func (p *Publisher) StreamName() string {
	return p.streamName
}

// Send publishes payload wrapped in an Envelope. The topic is the partition
// key, so events of one topic stay ordered.
func (p *Publisher) Send(ctx context.Context, topic string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	envelope := Envelope{
		Topic:   topic,
		Payload: payloadBytes,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(topic),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}
