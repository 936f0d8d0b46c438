package mylgws

import (
	"context"
	"sync"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"golang.org/x/sync/errgroup"
)

// Sweeper removes connection rows past their expiry that DynamoDB TTL has not
// yet collected, and announces users left with no connection as offline.
type Sweeper struct {
	*Presence
	Dry bool // log what would be swept without deleting or announcing
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Expired int
	Deleted int
	Offline []string
}

// Sweep runs a single pass over the registry.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	logger := s.Logger.With().Bool("dry", s.Dry).Logger()

	conns, err := s.Registry.Scan(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	now := s.now().Unix()
	var expired, live []connectiondao.Connection
	for _, c := range conns {
		if c.ExpiresAt > 0 && c.ExpiresAt <= now {
			expired = append(expired, c)
		} else {
			live = append(live, c)
		}
	}
	result := SweepResult{Scanned: len(conns), Expired: len(expired)}
	s.Metrics.Gauge(ctx, mylgcli.OnlineUsersMetric, float64(len(OnlineUsers(live))))

	if len(expired) == 0 {
		logger.Info().Int("scanned", result.Scanned).Msg("nothing to sweep")
		return result, nil
	}

	if s.Dry {
		for _, c := range expired {
			logger.Info().
				Str("connection_id", c.ConnectionID).
				Str("user_id", c.UserID).
				Int64("expires_at", c.ExpiresAt).
				Msg("would sweep expired connection")
		}
		return result, nil
	}

	deleted := s.deleteAll(ctx, expired)
	result.Deleted = len(deleted)

	// decided from the scan, not the user index, which may still list the
	// rows just deleted
	stillOnline := map[string]struct{}{}
	for _, userID := range OnlineUsers(live) {
		stillOnline[userID] = struct{}{}
	}
	for _, userID := range OnlineUsers(deleted) {
		if _, ok := stillOnline[userID]; ok {
			continue
		}
		s.AnnounceTo(ctx, logger, userID, false, Targets(live, ""))
		s.Metrics.Event(ctx, mylgcli.OfflineBroadcastMetric, mylgcli.Operation("sweep"))
		result.Offline = append(result.Offline, userID)
	}

	logger.Info().
		Int("scanned", result.Scanned).
		Int("expired", result.Expired).
		Int("deleted", result.Deleted).
		Int("offline", len(result.Offline)).
		Msg("sweep complete")
	return result, nil
}

// deleteAll removes conns and returns the ones actually deleted.
func (s *Sweeper) deleteAll(ctx context.Context, conns []connectiondao.Connection) []connectiondao.Connection {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var (
		mu      sync.Mutex
		deleted []connectiondao.Connection
		g       errgroup.Group
	)
	g.SetLimit(concurrency)

	for _, c := range conns {
		c := c
		g.Go(func() error {
			if err := s.Registry.Delete(ctx, c.ConnectionID); err != nil {
				s.Logger.Error().Err(err).Str("connection_id", c.ConnectionID).Msg("failed to sweep connection")
				return nil
			}
			s.Metrics.Event(ctx, mylgcli.SweptConnectionMetric)

			mu.Lock()
			defer mu.Unlock()
			deleted = append(deleted, c)
			return nil
		})
	}
	_ = g.Wait()
	return deleted
}
