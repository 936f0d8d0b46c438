package mylgws

import (
	"context"
	"time"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/rs/zerolog"
)

// PresenceTopic is the stream partition key for mirrored presence events.
const PresenceTopic = "presence"

// Publisher mirrors presence events onto a stream. *publish.Publisher
// satisfies it.
type Publisher interface {
	Send(ctx context.Context, topic string, payload interface{}) error
}

// Presence derives online status from the registry and pushes presence
// events to connected clients.
type Presence struct {
	Registry    Registry
	Transport   Transport
	Stream      Publisher // optional
	Metrics     *mylgcli.Metrics
	Logger      zerolog.Logger
	Concurrency int              // max concurrent sends per fanout (default 50)
	Now         func() time.Time // defaults to time.Now
}

// UserStatus is the presence of a single user.
type UserStatus struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	Sessions int    `json:"sessions"`
}

func (p *Presence) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Presence) fanout(logger zerolog.Logger) *Fanout {
	return &Fanout{
		Registry:    p.Registry,
		Transport:   p.Transport,
		Metrics:     p.Metrics,
		Logger:      logger,
		Concurrency: p.Concurrency,
	}
}

// OnlineUsers scans the registry and returns the distinct online user ids.
func (p *Presence) OnlineUsers(ctx context.Context) ([]string, error) {
	conns, err := p.Registry.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return OnlineUsers(conns), nil
}

// Status reports whether a user has any registered connection. The session
// count reflects the first page of the user index.
func (p *Presence) Status(ctx context.Context, userID string) (UserStatus, error) {
	conns, err := p.Registry.QueryByUser(ctx, userID, 0)
	if err != nil {
		return UserStatus{}, err
	}
	return UserStatus{
		UserID:   userID,
		Online:   len(conns) > 0,
		Sessions: len(conns),
	}, nil
}

// SendSnapshot delivers a presence snapshot built from conns (plus extra
// user ids) to a single connection. Failures are logged and swallowed.
func (p *Presence) SendSnapshot(ctx context.Context, logger zerolog.Logger, connID string, conns []connectiondao.Connection, extra ...string) {
	data, err := SnapshotMessage(OnlineUsers(conns, extra...), p.now())
	if err != nil {
		logger.Error().Err(err).Msg("failed to build presence snapshot")
		return
	}
	if err := p.Transport.Send(ctx, connID, data); err != nil {
		logger.Warn().Err(err).Msg("failed to send presence snapshot")
		return
	}
	logger.Debug().Msg("presence snapshot sent")
}

// Announce broadcasts a presenceChanged event for userID to every registered
// connection except exclude. Registry and delivery failures are logged only.
func (p *Presence) Announce(ctx context.Context, logger zerolog.Logger, userID string, online bool, exclude string) Result {
	conns, err := p.Registry.Scan(ctx)
	if err != nil {
		logger.Error().Err(err).Bool("online", online).Msg("failed to list connections for presence broadcast")
		return Result{}
	}
	return p.AnnounceTo(ctx, logger, userID, online, Targets(conns, exclude))
}

// AnnounceTo broadcasts a presenceChanged event for userID to the given
// targets and mirrors it onto the stream, if one is configured.
func (p *Presence) AnnounceTo(ctx context.Context, logger zerolog.Logger, userID string, online bool, targets []string) Result {
	at := p.now()
	data, err := ChangedMessage(userID, online, at)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build presence change")
		return Result{}
	}

	result := p.fanout(logger).Send(ctx, targets, data)
	logger.Info().
		Str("user_id", userID).
		Bool("online", online).
		Int("targets", len(targets)).
		Int("delivered", result.Delivered()).
		Int("gone", result.Gone()).
		Int("failed", result.Failed()).
		Msg("presence change broadcast")

	if p.Stream != nil {
		event := PresenceChanged{Action: ActionPresenceChanged, UserID: userID, Online: online, At: at.UTC()}
		if err := p.Stream.Send(ctx, PresenceTopic, event); err != nil {
			logger.Warn().Err(err).Msg("failed to mirror presence change to stream")
		}
	}
	return result
}

// Targets returns the connection ids of conns, skipping exclude.
func Targets(conns []connectiondao.Connection, exclude string) []string {
	targets := make([]string, 0, len(conns))
	for _, c := range conns {
		if c.ConnectionID == exclude {
			continue
		}
		targets = append(targets, c.ConnectionID)
	}
	return targets
}

// Report is a point-in-time summary of the registry.
type Report struct {
	At          time.Time `json:"at"`
	Connections int       `json:"connections"`
	Users       int       `json:"users"`
	UserIDs     []string  `json:"userIds"`
}

// Report scans the registry and summarizes who is online.
func (p *Presence) Report(ctx context.Context) (Report, error) {
	conns, err := p.Registry.Scan(ctx)
	if err != nil {
		return Report{}, err
	}
	userIDs := OnlineUsers(conns)
	p.Metrics.Gauge(ctx, mylgcli.OnlineUsersMetric, float64(len(userIDs)))
	return Report{
		At:          p.now().UTC(),
		Connections: len(conns),
		Users:       len(userIDs),
		UserIDs:     userIDs,
	}, nil
}
