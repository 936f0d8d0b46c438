// Package mylgws manages WebSocket connection lifecycle and user presence for
// an API Gateway WebSocket API: connections are tracked in a registry table,
// and presence changes are fanned out to every connected client.
package mylgws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/rs/zerolog"
)

const defaultConnTTL = 24 * time.Hour

// Handler handles API Gateway WebSocket lifecycle events.
type Handler struct {
	*Presence
	ConnTTL time.Duration // TTL for connection records (default 24 hours)
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	base := zerolog.Nop()
	var metrics *mylgcli.Metrics
	if h.Presence != nil {
		base, metrics = h.Logger, h.Metrics
	}
	logger := base.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()
	ctx = logger.WithContext(ctx)

	defer metrics.Timing(ctx, mylgcli.ResponseTimeMetric, time.Now(), mylgcli.Operation(req.RequestContext.RouteKey))

	switch req.RequestContext.RouteKey {
	case "$connect":
		return h.Connect(ctx, logger, req)
	case "$disconnect":
		return h.Disconnect(ctx, logger, req)
	case "$default":
		return h.Default(ctx, logger, req)
	default:
		logger.Warn().Msg("unknown route")
		return response(http.StatusBadRequest, "Unknown route"), nil
	}
}

// Connect registers a newly opened connection and announces its user.
//
// Only a missing identity or a failed registration reject the connection;
// session dedup, the snapshot, and the broadcast are best-effort.
func (h *Handler) Connect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	if h.Presence == nil || h.Registry == nil {
		logger.Error().Msg("connection registry not configured")
		return response(http.StatusInternalServerError, "Registry not configured"), nil
	}

	connID := req.RequestContext.ConnectionID
	if connID == "" {
		logger.Warn().Msg("missing connection id")
		return response(http.StatusBadRequest, "Missing connectionId"), nil
	}

	userID := AuthorizedUserID(req.RequestContext.Authorizer)
	if userID == "" {
		logger.Warn().Msg("no authorized user on connect, refusing")
		h.Metrics.Event(ctx, mylgcli.ConnectRejectedMetric)
		return response(http.StatusForbidden, "Forbidden"), nil
	}

	offered := ParseProtocols(header(req, ProtocolHeader))
	sessionID := SessionFromProtocols(offered)
	logger = logger.With().Str("user_id", userID).Str("session_id", sessionID).Logger()

	if sessionID != "" {
		h.supersedeSession(ctx, logger, connID, userID, sessionID)
	}

	ttl := h.ConnTTL
	if ttl <= 0 {
		ttl = defaultConnTTL
	}
	now := h.now()
	conn := connectiondao.Connection{
		ConnectionID: connID,
		UserID:       userID,
		SessionID:    sessionID,
		ConnectedAt:  now.Unix(),
		ExpiresAt:    now.Add(ttl).Unix(),
		Endpoint:     endpoint(req),
		Stage:        req.RequestContext.Stage,
		SourceIP:     req.RequestContext.Identity.SourceIP,
		UserAgent:    req.RequestContext.Identity.UserAgent,
	}

	if err := h.Registry.Insert(ctx, conn); err != nil {
		if errors.Is(err, connectiondao.ErrConnectionExists) {
			logger.Error().Err(err).Msg("connection id already registered")
		} else {
			logger.Error().Err(err).Msg("failed to store connection")
		}
		return response(http.StatusInternalServerError, "Failed to connect"), nil
	}
	logger.Info().Msg("connection established")
	h.Metrics.Event(ctx, mylgcli.ConnectMetric)

	h.announceArrival(ctx, logger, conn)

	resp := response(http.StatusOK, "Connected")
	if protocol, ok := ChooseProtocol(offered); ok {
		resp.Headers = map[string]string{ProtocolHeader: protocol}
	}
	return resp, nil
}

// supersedeSession deletes earlier rows for the same (user, session) pair so
// a refreshed tab replaces its dead connection instead of leaving a ghost.
// Not transactional with the following insert; concurrent connects for the
// same pair may briefly leave two rows.
func (h *Handler) supersedeSession(ctx context.Context, logger zerolog.Logger, connID, userID, sessionID string) {
	prior, err := h.Registry.QueryBySession(ctx, userID, sessionID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to look up prior session connections")
		return
	}
	for _, c := range prior {
		if c.ConnectionID == connID {
			// a redelivered connect must still trip the conditional insert
			continue
		}
		if err := h.Registry.Delete(ctx, c.ConnectionID); err != nil {
			logger.Warn().Err(err).Str("prior_connection_id", c.ConnectionID).Msg("failed to delete superseded connection")
			continue
		}
		logger.Info().Str("prior_connection_id", c.ConnectionID).Msg("superseded prior session connection")
	}
}

// announceArrival sends the snapshot to the new connection and broadcasts
// the user as online to everyone else, from a single registry scan.
func (h *Handler) announceArrival(ctx context.Context, logger zerolog.Logger, conn connectiondao.Connection) {
	conns, err := h.Registry.Scan(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list connections for presence")
		return
	}

	// the scan is eventually consistent and may predate our own insert
	h.SendSnapshot(ctx, logger, conn.ConnectionID, conns, conn.UserID)
	h.AnnounceTo(ctx, logger, conn.UserID, true, Targets(conns, conn.ConnectionID))
}

// Disconnect removes a closing connection and, when it was the user's last
// one, announces the user as offline. Every outcome past input validation is
// a 200: cleanup must never leave the gateway retrying a dead connection.
func (h *Handler) Disconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	if connID == "" {
		logger.Warn().Msg("missing connection id")
		return response(http.StatusBadRequest, "Missing connectionId"), nil
	}
	if h.Presence == nil || h.Registry == nil {
		logger.Error().Msg("connection registry not configured")
		return response(http.StatusInternalServerError, "Registry not configured"), nil
	}
	h.Metrics.Event(ctx, mylgcli.DisconnectMetric)

	// consistent read: whether to broadcast depends on knowing the owner
	conn, err := h.Registry.Get(ctx, connID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve connection owner")
	}

	var userID string
	if conn != nil {
		userID = conn.UserID
	}
	if userID == "" {
		h.deleteConnection(ctx, logger, connID)
		logger.Info().Msg("connection closed, no owner resolved")
		return response(http.StatusOK, "Disconnected"), nil
	}
	logger = logger.With().Str("user_id", userID).Logger()

	if h.hasOtherSession(ctx, logger, userID) {
		h.deleteConnection(ctx, logger, connID)
		logger.Info().Msg("connection closed, other sessions remain")
		return response(http.StatusOK, "Disconnected"), nil
	}

	// Last session: announce first, then delete. A crash in between leaves an
	// early offline announcement rather than a user stuck online.
	h.Announce(ctx, logger, userID, false, connID)
	h.Metrics.Event(ctx, mylgcli.OfflineBroadcastMetric)
	h.deleteConnection(ctx, logger, connID)

	logger.Info().Msg("connection closed, user offline")
	return response(http.StatusOK, "Disconnected"), nil
}

// hasOtherSession reports whether the user index holds at least two rows for
// userID, the closing connection being one of them. The index is eventually
// consistent; a stale "yes" only delays the offline broadcast. Query errors
// report false so the offline signal is not suppressed.
func (h *Handler) hasOtherSession(ctx context.Context, logger zerolog.Logger, userID string) bool {
	conns, err := h.Registry.QueryByUser(ctx, userID, 2)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to count user sessions, treating as last session")
		return false
	}
	return len(conns) >= 2
}

func (h *Handler) deleteConnection(ctx context.Context, logger zerolog.Logger, connID string) {
	if err := h.Registry.Delete(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to delete connection")
	}
}

// Default handles client messages sent on the $default route.
func (h *Handler) Default(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	if h.Presence == nil || h.Registry == nil {
		logger.Error().Msg("connection registry not configured")
		return response(http.StatusInternalServerError, "Registry not configured"), nil
	}

	msg, err := ParseRequest(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		return response(http.StatusBadRequest, "Invalid message"), nil
	}

	connID := req.RequestContext.ConnectionID
	switch msg.Action {
	case ActionPing:
		if err := h.Transport.Send(ctx, connID, PongMessage()); err != nil {
			logger.Warn().Err(err).Msg("failed to send pong")
		}
	case ActionGetPresence:
		conns, err := h.Registry.Scan(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to list connections for presence")
			return response(http.StatusInternalServerError, "Failed to load presence"), nil
		}
		h.SendSnapshot(ctx, logger, connID, conns)
	default:
		logger.Debug().Str("action", msg.Action).Msg("unhandled action")
	}
	return response(http.StatusOK, "OK"), nil
}

// AuthorizedUserID extracts the user id placed in the request context by the
// upstream authorizer: "userId", falling back to "principalId". HTTP-style
// authorizers nest their context under "lambda".
func AuthorizedUserID(authorizer interface{}) string {
	m, ok := authorizer.(map[string]interface{})
	if !ok {
		return ""
	}
	if nested, ok := m["lambda"].(map[string]interface{}); ok {
		if id := AuthorizedUserID(nested); id != "" {
			return id
		}
	}
	for _, key := range []string{"userId", "principalId"} {
		if id, ok := m[key].(string); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// header looks up a request header case-insensitively.
func header(req events.APIGatewayWebsocketProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, vs := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return strings.Join(vs, ",")
		}
	}
	return ""
}

func endpoint(req events.APIGatewayWebsocketProxyRequest) string {
	if req.RequestContext.DomainName == "" {
		return ""
	}
	return "https://" + req.RequestContext.DomainName + "/" + req.RequestContext.Stage
}

func response(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Body: body}
}
