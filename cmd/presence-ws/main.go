package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/jazbelrose/mylg-presence/mylg-ws/localgw"
	"github.com/urfave/cli/v2"
)

var service = mylgcli.NewService("presence-ws")

func main() {
	flags := append(mylgcli.CommonFlags, mylgcli.PortFlag(3001))
	flags = append(flags, mylgws.WSFlags...)
	flags = append(flags, mylgddb.DDBFlags...)

	app := mylgcli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	if err := mylgws.LoadConfigSecret(sess); err != nil {
		return err
	}
	if err := mylgws.Validate(!mylgcli.CommonOpts.Console); err != nil {
		return err
	}

	logger := mylgcli.Logger(service)
	presence, err := mylgws.Build(sess, service, logger)
	if err != nil {
		return err
	}
	handler := &mylgws.Handler{
		Presence: presence,
		ConnTTL:  mylgws.WSOpts.ConnTTL,
	}

	if !mylgcli.CommonOpts.Console {
		lambda.Start(handler.HandleEvent)
		return nil
	}

	gateway := localgw.New(logger)
	gateway.Handler = handler
	presence.Transport = gateway

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return gateway.ListenAndServe(ctx, mylgcli.CommonOpts.Port)
}
