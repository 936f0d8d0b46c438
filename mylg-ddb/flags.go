package mylgddb

import (
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	DAXCluster string
	Endpoint   string
	Region     string
}

var DAXClusterFlag = mylgcli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var EndpointFlag = mylgcli.StringFlag("ddb-endpoint", "Override the DynamoDB endpoint, e.g. http://localhost:8000 for DynamoDB Local", &DDBOpts.Endpoint)
var RegionFlag = mylgcli.StringFlag("ddb-region", "The region of the DAX cluster", &DDBOpts.Region, "us-east-2")

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	EndpointFlag,
	RegionFlag,
}
