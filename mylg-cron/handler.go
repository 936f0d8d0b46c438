// Package mylgcron runs a task on a schedule: once per Lambda invocation from
// an EventBridge rule, or once from the command line in console mode.
package mylgcron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/rs/zerolog"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service mylgcli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(service mylgcli.Service, runOnce RunCallback) *Handler {
	return &Handler{
		service: service,
		logger:  mylgcli.Logger(service),
		runOnce: runOnce,
	}
}

// RunOnce runs the task a single time with the service logger on ctx. The
// scheduled event payload is ignored.
func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	started := time.Now()
	h.logger.Info().Msg("running scheduled task")

	err := h.runOnce(h.logger.WithContext(ctx))
	event := h.logger.Info()
	if err != nil {
		event = h.logger.Error().Err(err)
	}
	event.Dur("elapsed", time.Since(started)).Msg("scheduled task finished")
	return err
}

func (h *Handler) Start() error {
	if mylgcli.CommonOpts.Console {
		return h.RunOnce(context.Background(), nil)
	}
	lambda.Start(h.RunOnce)
	return nil
}
