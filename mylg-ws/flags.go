package mylgws

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylgsecret "github.com/jazbelrose/mylg-presence/mylg-secret"
	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/urfave/cli/v2"
)

var WSOpts struct {
	TableName    string
	IndexName    string
	Endpoint     string
	ConnTTL      time.Duration
	Concurrency  int
	StreamName   string
	ConfigSecret string
	InMemory     bool
}

var TableNameFlag = mylgcli.StringFlag("table-name", "The connections table; defaults to <env>-mylg-ws--connections", &WSOpts.TableName)
var IndexNameFlag = mylgcli.StringFlag("index-name", "The user/session index on the connections table", &WSOpts.IndexName, connectiondao.DefaultIndexName)
var EndpointFlag = mylgcli.StringFlag("ws-endpoint", "The API Gateway management endpoint, e.g. https://{api-id}.execute-api.{region}.amazonaws.com/{stage}", &WSOpts.Endpoint)
var ConnTTLFlag = mylgcli.DurationFlag("connection-ttl", "How long a connection record lives before TTL removes it", &WSOpts.ConnTTL, defaultConnTTL)
var ConcurrencyFlag = mylgcli.IntFlag("fanout-concurrency", "Maximum concurrent sends per presence broadcast", &WSOpts.Concurrency, defaultConcurrency)
var StreamNameFlag = mylgcli.StringFlag("presence-stream", "Optional kinesis stream presence changes are mirrored to", &WSOpts.StreamName)
var ConfigSecretFlag = mylgcli.StringFlag("config-secret", "Optional secrets manager secret overriding the ws endpoint and presence stream", &WSOpts.ConfigSecret)
var InMemoryFlag = mylgcli.BoolFlag("in-memory", "Keep the connection registry in process memory; console mode only", &WSOpts.InMemory)

var WSFlags = []cli.Flag{
	TableNameFlag,
	IndexNameFlag,
	EndpointFlag,
	ConnTTLFlag,
	ConcurrencyFlag,
	StreamNameFlag,
	ConfigSecretFlag,
	InMemoryFlag,
}

// SecretConfig is the JSON shape of the optional config secret. Empty fields
// leave the flag values untouched.
type SecretConfig struct {
	Endpoint   string `json:"wsEndpoint"`
	StreamName string `json:"presenceStream"`
}

// Apply overlays the non-empty secret values onto WSOpts.
func (c SecretConfig) Apply() {
	if c.Endpoint != "" {
		WSOpts.Endpoint = c.Endpoint
	}
	if c.StreamName != "" {
		WSOpts.StreamName = c.StreamName
	}
}

// LoadConfigSecret applies the config secret, if one is configured.
func LoadConfigSecret(sess *session.Session) error {
	if WSOpts.ConfigSecret == "" {
		return nil
	}
	var config SecretConfig
	if err := mylgsecret.LoadSecret(sess, WSOpts.ConfigSecret, &config); err != nil {
		return err
	}
	config.Apply()
	return nil
}

// Validate fills the table name default for the environment and rejects a
// configuration the handlers cannot run with.
func Validate(requireEndpoint bool) error {
	if WSOpts.TableName == "" && mylgcli.CommonOpts.Env != "" {
		WSOpts.TableName = connectiondao.TableName(mylgcli.CommonOpts.Env)
	}
	switch {
	case WSOpts.TableName == "":
		return fmt.Errorf("missing connections table name: set --table-name or TABLE_NAME")
	case WSOpts.IndexName == "":
		return fmt.Errorf("missing user session index name: set --index-name or INDEX_NAME")
	case requireEndpoint && WSOpts.Endpoint == "":
		return fmt.Errorf("missing management endpoint: set --ws-endpoint or WS_ENDPOINT")
	case WSOpts.InMemory && !mylgcli.CommonOpts.Console:
		return fmt.Errorf("--in-memory is only supported in console mode")
	}
	return nil
}
