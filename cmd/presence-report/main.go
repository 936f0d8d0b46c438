package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	mylgreport "github.com/jazbelrose/mylg-presence/mylg-report"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/urfave/cli/v2"
)

var service = mylgcli.NewService("presence-report")

func main() {
	flags := append(mylgcli.CommonFlags, mylgws.WSFlags...)
	flags = append(flags, mylgddb.DDBFlags...)
	flags = append(flags, mylgreport.ReportFlags...)

	app := mylgcli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	if err := mylgws.Validate(false); err != nil {
		return err
	}

	sess := session.Must(session.NewSession(aws.NewConfig()))
	presence, err := mylgws.Build(sess, service, mylgcli.Logger(service))
	if err != nil {
		return err
	}

	handler := mylgreport.NewHandler(service, "presence", func(ctx context.Context) (interface{}, error) {
		return presence.Report(ctx)
	})
	return handler.Start()
}
