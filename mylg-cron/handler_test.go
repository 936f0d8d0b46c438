package mylgcron

import (
	"context"
	"fmt"
	"testing"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestRunOnce(t *testing.T) {
	var calls int
	h := NewHandler(mylgcli.NewService("presence-sweeper"), func(ctx context.Context) error {
		calls++
		assert.NotEqual(t, zerolog.Disabled, zerolog.Ctx(ctx).GetLevel())
		return nil
	})
	assert.Nil(t, h.RunOnce(context.Background(), nil))
	assert.Equal(t, 1, calls)

	failing := NewHandler(mylgcli.NewService("presence-sweeper"), func(ctx context.Context) error {
		return fmt.Errorf("boom")
	})
	assert.NotNil(t, failing.RunOnce(context.Background(), nil))
}

func TestStartConsole(t *testing.T) {
	mylgcli.CommonOpts.Console = true
	defer func() { mylgcli.CommonOpts.Console = false }()

	var ran bool
	h := NewHandler(mylgcli.NewService("presence-sweeper"), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.Nil(t, h.Start())
	assert.True(t, ran)
}
