package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgkinesis "github.com/jazbelrose/mylg-presence/mylg-kinesis"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/jazbelrose/mylg-presence/mylg-ws/publish"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var service = mylgcli.NewService("presence-tail")

func main() {
	app := mylgcli.App(
		service,
		action,
		append(
			mylgcli.CommonFlags,
			mylgkinesis.KinesisFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	handler := mylgkinesis.NewHandler(service, onEnvelope)

	return handler.Start()
}

func onEnvelope(ctx context.Context, envelope publish.Envelope) error {
	logger := zerolog.Ctx(ctx)
	if envelope.Topic != mylgws.PresenceTopic {
		logger.Debug().Str("topic", envelope.Topic).Msg("skipping record")
		return nil
	}

	var event mylgws.PresenceChanged
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		logger.Warn().Err(err).Msg("malformed presence event")
		return nil
	}
	logger.Info().
		Str("user_id", event.UserID).
		Bool("online", event.Online).
		Time("at", event.At).
		Msg("presence changed")
	return nil
}
