// Package mylgkinesis consumes the presence stream written by the ws
// handlers, either as a Lambda Kinesis trigger or by tailing the stream
// directly in console mode.
package mylgkinesis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	consumer "github.com/harlow/kinesis-consumer"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/jazbelrose/mylg-presence/mylg-ws/publish"
	"github.com/rs/zerolog"
)

type HandleEnvelopeCallback func(ctx context.Context, envelope publish.Envelope) error

type Handler struct {
	Service mylgcli.Service
	Logger  zerolog.Logger

	handleEnvelope HandleEnvelopeCallback
}

func NewHandler(
	service mylgcli.Service,
	handleEnvelope HandleEnvelopeCallback,
) *Handler {
	return &Handler{
		Service:        service,
		Logger:         mylgcli.Logger(service),
		handleEnvelope: handleEnvelope,
	}
}

func (h *Handler) Start() error {
	if !mylgcli.CommonOpts.Console {
		lambda.Start(h.HandleKinesisEvent)
		return nil
	}
	return h.Tail(context.Background())
}

func (h *Handler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	ctx = h.Logger.WithContext(ctx)
	for _, r := range event.Records {
		if err := h.handleSingleEvent(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

type KinesisSequenceNumberKeyType string

var KinesisSequenceNumberKey = KinesisSequenceNumberKeyType("kinesisSequenceNumber")

func (h *Handler) handleSingleEvent(ctx context.Context, r events.KinesisEventRecord) error {
	ctx = context.WithValue(ctx, KinesisSequenceNumberKey, r.Kinesis.SequenceNumber)

	var envelope publish.Envelope
	if err := json.Unmarshal(r.Kinesis.Data, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal kinesis record: %w", err)
	}
	return h.handleEnvelope(ctx, envelope)
}

// StreamName returns the stream to read, defaulting to the presence stream
// for the current environment.
func StreamName() string {
	if KinesisOpts.StreamName != "" {
		return KinesisOpts.StreamName
	}
	return publish.StreamName(mylgcli.CommonOpts.Env)
}

// Tail follows the stream until ctx is done or the callback fails.
func (h *Handler) Tail(ctx context.Context) error {
	streamName := StreamName()

	var options []consumer.Option
	switch {
	case KinesisOpts.Replay && replayFrom() != nil:
		options = append(options, consumer.WithShardIteratorType("AT_TIMESTAMP"))
		options = append(options, consumer.WithTimestamp(*replayFrom()))
	case KinesisOpts.Replay:
		options = append(options, consumer.WithShardIteratorType("TRIM_HORIZON"))
	default:
		options = append(options, consumer.WithShardIteratorType("LATEST"))
	}
	c, err := consumer.New(streamName, options...)
	if err != nil {
		return err
	}

	ctx = h.Logger.WithContext(ctx)
	callback := func(record *consumer.Record) error {
		er := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: record.Data},
		}
		return h.handleSingleEvent(ctx, er)
	}
	h.Logger.Info().Str("stream", streamName).Bool("replay", KinesisOpts.Replay).Msg("tailing stream")
	return c.Scan(ctx, callback)
}
