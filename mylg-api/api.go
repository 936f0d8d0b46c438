// Package mylgapi serves read-only presence queries over REST and GraphQL.
package mylgapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	mylggql "github.com/jazbelrose/mylg-presence/mylg-gql"
	mylgrest "github.com/jazbelrose/mylg-presence/mylg-rest"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
)

// Presence answers presence queries. *mylgws.Presence satisfies it.
type Presence interface {
	OnlineUsers(ctx context.Context) ([]string, error)
	Status(ctx context.Context, userID string) (mylgws.UserStatus, error)
}

// OnlineUsers is the body of GET /presence.
type OnlineUsers struct {
	UserIDs []string  `json:"userIds"`
	At      time.Time `json:"at"`
}

type api struct {
	presence Presence
	now      func() time.Time
}

// Router builds the presence api: REST routes plus the graphql endpoint.
func Router(service mylgcli.Service, presence Presence) (chi.Router, error) {
	a := &api{presence: presence, now: time.Now}

	router := mylgrest.Middlewares(service, chi.NewRouter())
	router.Get("/presence", mylgrest.CacheControl(a.onlineUsers, 5))
	router.Get("/presence/{userId}", mylgrest.CacheControl(a.status, 5))

	if err := mylggql.Mount(router, NewResolver(service, presence)); err != nil {
		return nil, err
	}
	return router, nil
}

func (a *api) onlineUsers(w http.ResponseWriter, req *http.Request) {
	userIDs, err := a.presence.OnlineUsers(req.Context())
	if err != nil {
		mylgrest.WriteError(w, req, http.StatusInternalServerError, err)
		return
	}
	if userIDs == nil {
		userIDs = []string{}
	}
	mylgrest.WriteJSON(w, http.StatusOK, OnlineUsers{UserIDs: userIDs, At: a.now().UTC()})
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	status, err := a.presence.Status(req.Context(), chi.URLParam(req, "userId"))
	if err != nil {
		mylgrest.WriteError(w, req, http.StatusInternalServerError, err)
		return
	}
	mylgrest.WriteJSON(w, http.StatusOK, status)
}
