package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgcron "github.com/jazbelrose/mylg-presence/mylg-cron"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/urfave/cli/v2"
)

var service = mylgcli.NewService("presence-sweeper")

func main() {
	flags := append(mylgcli.CommonFlags, mylgws.WSFlags...)
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
	// a dry sweep never posts to a connection
	if err := mylgws.Validate(!mylgcli.CommonOpts.Dry); err != nil {
		return err
	}

	presence, err := mylgws.Build(sess, service, mylgcli.Logger(service))
	if err != nil {
		return err
	}
	sweeper := &mylgws.Sweeper{Presence: presence, Dry: mylgcli.CommonOpts.Dry}

	return mylgcron.NewHandler(service, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	}).Start()
}
