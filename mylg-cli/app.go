// Package mylgcli provides common CLI utilities and boilerplate for building
// the MyLG presence binaries and Lambda functions.
//
// This package includes standardized service configuration, common CLI flags,
// structured logging setup, CloudWatch metrics, and build information tracking.
package mylgcli

import (
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v2"
)

// Service identifies a binary in logs and metrics. Subpath is the path
// prefix an HTTP service is mounted under behind a shared domain.
type Service struct {
	Name    string
	Subpath string
	Version string
}

func NewService(name string) Service {
	return Service{
		Name:    name,
		Version: CommitHash(),
	}
}

func App(service Service, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name:                 service.Name,
		Usage:                fmt.Sprintf("%v presence service", service.Name),
		Version:              service.Version,
		EnableBashCompletion: true,
		Action:               action,
		Flags:                flags,
	}
}

// CommitHash reports the vcs revision baked in at build time, falling back to
// the module version.
func CommitHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return info.Main.Version
}
