package mylgapi

import (
	"context"
	_ "embed"

	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylggql "github.com/jazbelrose/mylg-presence/mylg-gql"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
)

//go:embed presence.gql
var schema string

// Resolver is the root graphql resolver.
type Resolver struct {
	presence Presence
	config   mylggql.BaseConfig
}

func NewResolver(service mylgcli.Service, presence Presence) *Resolver {
	return &Resolver{
		presence: presence,
		config:   mylggql.NewConfig(service),
	}
}

func (r *Resolver) Schema() string {
	return schema
}

func (r *Resolver) Config() *mylggql.BaseConfig {
	return &r.config
}

func (r *Resolver) OnlineUsers(ctx context.Context) ([]string, error) {
	return r.presence.OnlineUsers(ctx)
}

func (r *Resolver) Presence(ctx context.Context, args struct{ UserID string }) (*PresenceResolver, error) {
	status, err := r.presence.Status(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	return &PresenceResolver{status: status}, nil
}

type PresenceResolver struct {
	status mylgws.UserStatus
}

func (p *PresenceResolver) UserID() string {
	return p.status.UserID
}

func (p *PresenceResolver) Online() bool {
	return p.status.Online
}

func (p *PresenceResolver) Sessions() int32 {
	return int32(p.status.Sessions)
}
