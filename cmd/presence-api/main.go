package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	mylgapi "github.com/jazbelrose/mylg-presence/mylg-api"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgddb "github.com/jazbelrose/mylg-presence/mylg-ddb"
	mylgrest "github.com/jazbelrose/mylg-presence/mylg-rest"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/urfave/cli/v2"
)

var service = mylgcli.NewService("presence-api")

func main() {
	flags := append(mylgcli.CommonFlags, mylgcli.PortFlag(5001))
	flags = append(flags, mylgws.WSFlags...)
	flags = append(flags, mylgddb.DDBFlags...)
	flags = append(flags, mylgrest.RestFlags...)

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

	router, err := mylgapi.Router(service, presence)
	if err != nil {
		return err
	}
	return mylgrest.Webserver(service, router)
}
