package mylgws

import (
	"context"
	"errors"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 50

// Outcome is the delivery result for one target connection.
type Outcome struct {
	ConnectionID string
	Err          error
}

// Gone reports whether the target no longer exists.
func (o Outcome) Gone() bool {
	return o.Err != nil && errors.Is(o.Err, ErrGone)
}

// Result collects every per-target outcome of a fanout.
type Result struct {
	Outcomes []Outcome
}

func (r Result) Delivered() (n int) {
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func (r Result) Gone() (n int) {
	for _, o := range r.Outcomes {
		if o.Gone() {
			n++
		}
	}
	return n
}

func (r Result) Failed() (n int) {
	for _, o := range r.Outcomes {
		if o.Err != nil && !o.Gone() {
			n++
		}
	}
	return n
}

// Fanout delivers one payload to many connections. Deliveries run
// concurrently and independently: a failed send never cancels the others.
// Targets reported as gone are pruned from the registry.
type Fanout struct {
	Registry    Registry
	Transport   Transport
	Metrics     *mylgcli.Metrics
	Logger      zerolog.Logger
	Concurrency int // max concurrent sends (default 50)
}

// Send attempts delivery of data to every target and returns all outcomes in
// target order.
func (f *Fanout) Send(ctx context.Context, targets []string, data []byte) Result {
	concurrency := f.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	outcomes := make([]Outcome, len(targets))

	// no WithContext: one failure must not cancel sibling deliveries
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			outcomes[i] = f.deliver(ctx, target, data)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Outcomes: outcomes}
	f.Logger.Debug().
		Int("targets", len(targets)).
		Int("delivered", result.Delivered()).
		Int("gone", result.Gone()).
		Int("failed", result.Failed()).
		Msg("fanout complete")
	return result
}

func (f *Fanout) deliver(ctx context.Context, connID string, data []byte) Outcome {
	err := f.Transport.Send(ctx, connID, data)
	if err == nil {
		return Outcome{ConnectionID: connID}
	}

	if errors.Is(err, ErrGone) {
		f.Logger.Info().
			Str("connection_id", connID).
			Msg("connection gone, cleaning up")
		f.Metrics.Event(ctx, mylgcli.GoneConnectionMetric)
		if derr := f.Registry.Delete(ctx, connID); derr != nil {
			f.Logger.Error().Err(derr).Str("connection_id", connID).Msg("failed to delete gone connection")
		}
		return Outcome{ConnectionID: connID, Err: err}
	}

	f.Logger.Warn().Err(err).Str("connection_id", connID).Msg("failed to deliver to connection")
	return Outcome{ConnectionID: connID, Err: err}
}
