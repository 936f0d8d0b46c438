package mylgreport

import (
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/urfave/cli/v2"
)

var ReportOpts struct {
	Bucket string

	OutFile   string
	GetLatest bool
}

var BucketFlag = mylgcli.StringFlag("bucket", "The bucket presence reports are written to", &ReportOpts.Bucket)
var OutFileFlag = mylgcli.StringFlag("out-file", "The file to write the report to, when running in dry mode", &ReportOpts.OutFile)
var GetLatestFlag = mylgcli.BoolFlag("get-latest", "Get the latest report from the bucket instead of generating a new one", &ReportOpts.GetLatest)

var ReportFlags = []cli.Flag{
	BucketFlag,
	OutFileFlag,
	GetLatestFlag,
}
