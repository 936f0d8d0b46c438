// Package mylgddb provides DynamoDB and DAX client utilities plus a stream
// handler for reacting to changes in the connection registry.
package mylgddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/rs/zerolog"
)

type BatchCallback func(ctx context.Context, event events.DynamoDBEvent) error
type InsertCallback func(ctx context.Context, record events.DynamoDBEventRecord) error
type UpdateCallback func(ctx context.Context, record events.DynamoDBEventRecord) error
type DeleteCallback func(ctx context.Context, record events.DynamoDBEventRecord) error

// ttlPrincipal is the user identity DynamoDB stamps on items removed by TTL.
const ttlPrincipal = "dynamodb.amazonaws.com"

type Handler struct {
	service mylgcli.Service
	Logger  zerolog.Logger

	onBatch  BatchCallback
	onInsert InsertCallback
	onUpdate UpdateCallback
	onDelete DeleteCallback
}

func NewHandler(
	service mylgcli.Service,
	onInsert InsertCallback,
	onUpdate UpdateCallback,
	onDelete DeleteCallback,
) *Handler {
	return &Handler{
		service:  service,
		Logger:   mylgcli.Logger(service),
		onInsert: onInsert,
		onUpdate: onUpdate,
		onDelete: onDelete,
	}
}

func NewBatchHandler(
	service mylgcli.Service,
	onBatch BatchCallback,
) *Handler {
	return &Handler{
		service: service,
		Logger:  mylgcli.Logger(service),
		onBatch: onBatch,
	}
}

// Start hands the handler to the Lambda runtime. Stream handlers are only
// ever invoked by the event source mapping, so console mode is rejected.
func (h *Handler) Start() error {
	if mylgcli.CommonOpts.Console {
		return fmt.Errorf("%v consumes a dynamodb stream and has no console mode", h.service.Name)
	}
	lambda.Start(h.HandleEvent)
	return nil
}

func (h *Handler) HandleEvent(ctx context.Context, event events.DynamoDBEvent) error {
	ctx = h.Logger.WithContext(ctx)
	h.Logger.Trace().Int("count", len(event.Records)).Msg("handling a batch of events")
	if h.onBatch != nil {
		return h.onBatch(ctx, event)
	}
	for _, record := range event.Records {
		if err := h.HandleSingleRecord(ctx, record); err != nil {
			h.Logger.Error().Err(err).Str("event", record.EventID).Msg("unable to handle record")
			return fmt.Errorf("unable to handle record: %w", err)
		}
	}
	return nil
}

func (h *Handler) HandleSingleRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if h.onBatch != nil {
		return h.onBatch(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}})
	}
	switch record.EventName {
	case string(events.DynamoDBOperationTypeInsert):
		if h.onInsert != nil {
			return h.onInsert(ctx, record)
		}

	case string(events.DynamoDBOperationTypeModify):
		if h.onUpdate != nil {
			return h.onUpdate(ctx, record)
		}

	case string(events.DynamoDBOperationTypeRemove):
		if h.onDelete != nil {
			return h.onDelete(ctx, record)
		}
	}
	return nil
}

// IsTTLExpiry reports whether a REMOVE record was produced by DynamoDB's TTL
// process rather than by an explicit DeleteItem.
func IsTTLExpiry(record events.DynamoDBEventRecord) bool {
	return record.UserIdentity != nil &&
		record.UserIdentity.Type == "Service" &&
		record.UserIdentity.PrincipalID == ttlPrincipal
}

// StringAttr reads a string attribute from a stream image, returning "" when
// it is missing or not a string.
func StringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	v, ok := image[name]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return v.String()
}
