// Package mylggql provides GraphQL server utilities: the query relay and the
// GraphiQL playground, mounted on a chi router.
package mylggql

import (
	"strings"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/rs/zerolog"
)

// AllowIntrospection reports whether schema introspection and the GraphiQL
// playground are enabled: everywhere but production, and always in console
// mode.
func AllowIntrospection() bool {
	switch strings.ToLower(mylgcli.CommonOpts.Env) {
	case "prod", "production":
		return mylgcli.CommonOpts.Console
	default:
		return true
	}
}

// Resolver is a root resolver that also carries its schema.
type Resolver interface {
	Schema() string
	Config() *BaseConfig
}

type BaseConfig struct {
	Logger  zerolog.Logger
	Service mylgcli.Service
}

func NewConfig(service mylgcli.Service) BaseConfig {
	return BaseConfig{
		Logger:  mylgcli.Logger(service),
		Service: service,
	}
}
