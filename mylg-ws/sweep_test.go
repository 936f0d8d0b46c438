package mylgws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/tj/assert"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	expire := func(registry *connectiondao.Memory, connID, userID string) {
		_ = registry.Insert(ctx, connectiondao.Connection{
			ConnectionID: connID,
			UserID:       userID,
			ConnectedAt:  fixedNow.Add(-25 * time.Hour).Unix(),
			ExpiresAt:    fixedNow.Add(-time.Hour).Unix(),
		})
	}

	t.Run("deletes expired rows and announces users left offline", func(t *testing.T) {
		registry := connectiondao.NewMemory()
		expire(registry, "c1", "u1")
		expire(registry, "c2", "u2")
		seed(registry, "c3", "u2", "")
		seed(registry, "c4", "u3", "")
		transport := newFakeTransport()

		s := &Sweeper{Presence: newTestHandler(registry, transport).Presence}
		result, err := s.Sweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 4, result.Scanned)
		assert.Equal(t, 2, result.Expired)
		assert.Equal(t, 2, result.Deleted)
		assert.Equal(t, []string{"u1"}, result.Offline)
		assert.Equal(t, []string{"c3", "c4"}, rowIDs(registry))

		assert.Equal(t, []string{"c3", "c4"}, transport.changeTargets())
		changes := transport.changes("c4")
		assert.Len(t, changes, 1)
		assert.Equal(t, "u1", changes[0].UserID)
		assert.False(t, changes[0].Online)
	})

	t.Run("dry run leaves the registry alone", func(t *testing.T) {
		registry := connectiondao.NewMemory()
		expire(registry, "c1", "u1")
		seed(registry, "c2", "u2", "")
		transport := newFakeTransport()

		s := &Sweeper{Presence: newTestHandler(registry, transport).Presence, Dry: true}
		result, err := s.Sweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, result.Expired)
		assert.Equal(t, 0, result.Deleted)
		assert.Len(t, result.Offline, 0)
		assert.Equal(t, []string{"c1", "c2"}, rowIDs(registry))
		assert.Len(t, transport.sent, 0)
	})

	t.Run("failed delete is not announced", func(t *testing.T) {
		registry := &flakyRegistry{Memory: connectiondao.NewMemory(), deleteErr: fmt.Errorf("unavailable")}
		expire(registry.Memory, "c1", "u1")
		seed(registry.Memory, "c2", "u2", "")
		transport := newFakeTransport()

		s := &Sweeper{Presence: newTestHandler(registry, transport).Presence}
		result, err := s.Sweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 0, result.Deleted)
		assert.Len(t, result.Offline, 0)
		assert.Len(t, transport.sent, 0)
	})

	t.Run("offline decided from the scan when the user index lags", func(t *testing.T) {
		registry := &laggingIndex{Memory: connectiondao.NewMemory()}
		expire(registry.Memory, "stale", "u1")
		seed(registry.Memory, "watcher", "u2", "")
		registry.snapshot(ctx)
		transport := newFakeTransport()

		s := &Sweeper{Presence: newTestHandler(registry, transport).Presence}
		result, err := s.Sweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, result.Deleted)
		assert.Equal(t, []string{"u1"}, result.Offline)
		assert.Equal(t, []string{"watcher"}, rowIDs(registry.Memory))

		changes := transport.changes("watcher")
		assert.Len(t, changes, 1)
		assert.Equal(t, "u1", changes[0].UserID)
		assert.False(t, changes[0].Online)
	})

	t.Run("user index is not consulted", func(t *testing.T) {
		registry := &flakyRegistry{Memory: connectiondao.NewMemory(), queryUserErr: fmt.Errorf("throttled")}
		expire(registry.Memory, "c1", "u1")
		seed(registry.Memory, "c2", "u2", "")
		transport := newFakeTransport()

		s := &Sweeper{Presence: newTestHandler(registry, transport).Presence}
		result, err := s.Sweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, []string{"u1"}, result.Offline)
		assert.Len(t, transport.changes("c2"), 1)
	})

	t.Run("scan failure", func(t *testing.T) {
		registry := &flakyRegistry{Memory: connectiondao.NewMemory(), scanErr: fmt.Errorf("throttled")}
		s := &Sweeper{Presence: newTestHandler(registry, newFakeTransport()).Presence}
		_, err := s.Sweep(ctx)
		assert.NotNil(t, err)
	})
}

// laggingIndex answers user queries from rows captured before any delete,
// like an index that has not caught up yet.
type laggingIndex struct {
	*connectiondao.Memory
	stale []connectiondao.Connection
}

func (r *laggingIndex) snapshot(ctx context.Context) {
	r.stale, _ = r.Memory.Scan(ctx)
}

func (r *laggingIndex) QueryByUser(_ context.Context, userID string, limit int64) ([]connectiondao.Connection, error) {
	var conns []connectiondao.Connection
	for _, c := range r.stale {
		if c.UserID != userID {
			continue
		}
		conns = append(conns, c)
		if limit > 0 && int64(len(conns)) >= limit {
			break
		}
	}
	return conns, nil
}
