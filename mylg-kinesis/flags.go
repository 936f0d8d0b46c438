package mylgkinesis

import (
	"time"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/urfave/cli/v2"
)

var KinesisOpts struct {
	StreamName string
	Replay     bool
	ReplayFrom cli.Timestamp
}

var StreamNameFlag = mylgcli.StringFlag("stream-name", "The stream name to read records from; defaults to <env>-mylg-ws--presence", &KinesisOpts.StreamName)
var ReplayFlag = mylgcli.BoolFlag("replay", "Whether to replay from the beginning, or start from the next message", &KinesisOpts.Replay)

var ReplayFromFlag = cli.TimestampFlag{
	Name:        "replay-from",
	Usage:       "Timestamp to replay from, with --replay",
	Layout:      "2006-01-02 15:04:05",
	EnvVars:     []string{"REPLAY_FROM"},
	Destination: &KinesisOpts.ReplayFrom,
}

var KinesisFlags = []cli.Flag{
	StreamNameFlag,
	ReplayFlag,
	&ReplayFromFlag,
}

// replayFrom returns the configured replay timestamp, if any.
func replayFrom() *time.Time {
	if t := KinesisOpts.ReplayFrom.Value(); t != nil && !t.IsZero() {
		return t
	}
	return nil
}
