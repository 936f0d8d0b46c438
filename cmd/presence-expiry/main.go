package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/urfave/cli/v2"
)

var service = mylgcli.NewService("presence-expiry")

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
	if err := mylgws.Validate(true); err != nil {
		return err
	}

	presence, err := mylgws.Build(sess, service, mylgcli.Logger(service))
	if err != nil {
		return err
	}
	expiry := &mylgws.ExpiryHandler{Presence: presence}

	handler := mylgddb.NewHandler(service, nil, nil, expiry.OnRemove)
	return handler.Start()
}
