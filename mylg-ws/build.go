package mylgws

import (
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/jazbelrose/mylg-presence/mylg-ws/publish"
	"github.com/rs/zerolog"
)

// Build wires a Presence from the parsed flags. Validate must have been
// called first. The transport is the management API when an endpoint is
// configured; console callers may replace it.
func Build(sess *session.Session, service mylgcli.Service, logger zerolog.Logger) (*Presence, error) {
	var registry Registry
	if WSOpts.InMemory {
		logger.Warn().Msg("using in-memory connection registry")
		registry = connectiondao.NewMemory()
	} else {
		api, err := mylgddb.DynamoDBAPI(sess)
		if err != nil {
			return nil, err
		}
		registry = connectiondao.New(api, WSOpts.TableName, WSOpts.IndexName)
	}

	presence := &Presence{
		Registry:    registry,
		Logger:      logger,
		Concurrency: WSOpts.Concurrency,
	}
	if !mylgcli.CommonOpts.Console {
		presence.Metrics = mylgcli.NewMetrics(service, cloudwatch.New(sess))
	}
	if WSOpts.Endpoint != "" {
		presence.Transport = NewManagementTransport(sess, WSOpts.Endpoint)
	}
	if WSOpts.StreamName != "" {
		presence.Stream = publish.Build(sess, mylgcli.CommonOpts.Env, WSOpts.StreamName)
	}
	return presence, nil
}
