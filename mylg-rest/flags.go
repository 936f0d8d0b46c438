package mylgrest

import (
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/urfave/cli/v2"
)

var RestOpts struct {
	AllowedOrigins cli.StringSlice
}

var AllowedOriginsFlag = mylgcli.StringSliceFlag("allowed-origins", "Origins allowed to call the API; defaults to any", &RestOpts.AllowedOrigins)

var RestFlags = []cli.Flag{
	AllowedOriginsFlag,
}

// AllowedOrigins returns the configured CORS origins, or "*" when none are set.
func AllowedOrigins() []string {
	if origins := RestOpts.AllowedOrigins.Value(); len(origins) > 0 {
		return origins
	}
	return []string{"*"}
}
