package mylgws

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	"github.com/rs/zerolog"
)

// ExpiryHandler reacts to connection rows removed by DynamoDB TTL. A socket
// that died without a $disconnect never announced its user offline; once
// its row expires and the user has nothing left, the announcement is made
// here. Explicit deletes are ignored since their caller already announced.
type ExpiryHandler struct {
	*Presence
}

// OnRemove handles a REMOVE record from the connections table stream.
func (e *ExpiryHandler) OnRemove(ctx context.Context, record events.DynamoDBEventRecord) error {
	logger := zerolog.Ctx(ctx).With().Str("event_id", record.EventID).Logger()
	if !mylgddb.IsTTLExpiry(record) {
		logger.Trace().Msg("explicit delete, ignoring")
		return nil
	}

	connID := mylgddb.StringAttr(record.Change.OldImage, "pk")
	userID := mylgddb.StringAttr(record.Change.OldImage, "user_id")
	logger = logger.With().Str("connection_id", connID).Str("user_id", userID).Logger()
	if userID == "" {
		logger.Warn().Msg("expired connection has no user, ignoring")
		return nil
	}

	remaining, err := e.Registry.QueryByUser(ctx, userID, 1)
	if err != nil {
		// returning the error retries the batch
		return err
	}
	if len(remaining) > 0 {
		logger.Debug().Msg("connection expired, other sessions remain")
		return nil
	}

	e.Announce(ctx, logger, userID, false, connID)
	e.Metrics.Event(ctx, mylgcli.OfflineBroadcastMetric, mylgcli.Operation("expiry"))
	logger.Info().Msg("connection expired, user offline")
	return nil
}
