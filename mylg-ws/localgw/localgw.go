// Package localgw stands in for API Gateway when running in console mode. It
// accepts WebSocket upgrades, invokes the lifecycle handler with synthesized
// gateway events, and delivers handler output to the held sockets.
package localgw

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	mylgws "github.com/jazbelrose/mylg-presence/mylg-ws"
	"github.com/rs/zerolog"
)

const (
	readLimit    = int64(32 << 10)
	writeTimeout = 10 * time.Second
)

// EventHandler is the lifecycle handler the gateway routes to.
// *mylgws.Handler satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(data)
}

func (c *client) writeLocked(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// closed reports whether a write failed because the socket is gone, as
// opposed to a timeout or other transient failure.
func closed(err error) bool {
	var closeErr *websocket.CloseError
	switch {
	case errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &closeErr):
		return true
	default:
		return false
	}
}

// Gateway is a local WebSocket gateway. It also implements mylgws.Transport.
type Gateway struct {
	Handler EventHandler
	Logger  zerolog.Logger
	Stage   string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	pending map[string][][]byte // messages sent during $connect, before the upgrade
}

func New(logger zerolog.Logger) *Gateway {
	return &Gateway{
		Logger: logger,
		Stage:  "local",
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[string]*client{},
		pending: map[string][][]byte{},
	}
}

// Routes returns the gateway's http handler.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", g.ServeWS)
	return r
}

// ListenAndServe serves the gateway on the given port until ctx is done.
func (g *Gateway) ListenAndServe(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%v", port),
		Handler:           g.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	g.Logger.Info().Int("port", port).Msg("local websocket gateway listening on /ws")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Send implements mylgws.Transport. Unknown ids and closed sockets report
// mylgws.ErrGone.
func (g *Gateway) Send(_ context.Context, connectionID string, data []byte) error {
	g.mu.Lock()
	if queued, ok := g.pending[connectionID]; ok {
		g.pending[connectionID] = append(queued, data)
		g.mu.Unlock()
		return nil
	}
	c, ok := g.clients[connectionID]
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("posting to connection %v: %w", connectionID, mylgws.ErrGone)
	}
	if err := c.write(data); err != nil {
		if closed(err) {
			return fmt.Errorf("posting to connection %v: %v: %w", connectionID, err, mylgws.ErrGone)
		}
		// a gorilla connection is unusable after a failed write; closing it
		// lets the read loop run $disconnect
		_ = c.conn.Close()
		return fmt.Errorf("posting to connection %v: %w", connectionID, err)
	}
	return nil
}

// ServeWS runs $connect for the request and upgrades it when the handler
// accepts. The user id is taken from the userId query parameter in place of
// an authorizer.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	logger := g.Logger.With().Str("connection_id", connID).Logger()

	g.mu.Lock()
	g.pending[connID] = nil
	g.mu.Unlock()

	req := g.event(r, connID, "$connect", "")
	if userID := r.URL.Query().Get("userId"); userID != "" {
		req.RequestContext.Authorizer = map[string]interface{}{"userId": userID}
	}
	req.Headers = map[string]string{}
	for name := range r.Header {
		req.Headers[name] = r.Header.Get(name)
	}

	resp, err := g.Handler.HandleEvent(r.Context(), req)
	if err != nil || resp.StatusCode != http.StatusOK {
		g.drop(connID)
		status := resp.StatusCode
		if err != nil || status == 0 {
			status = http.StatusInternalServerError
		}
		logger.Info().Int("status", status).Msg("connect refused")
		http.Error(w, resp.Body, status)
		return
	}

	header := http.Header{}
	if protocol := resp.Headers[mylgws.ProtocolHeader]; protocol != "" {
		header.Set(mylgws.ProtocolHeader, protocol)
	}
	conn, err := g.upgrader.Upgrade(w, r, header)
	if err != nil {
		logger.Warn().Err(err).Msg("upgrade failed")
		g.drop(connID)
		g.disconnect(connID, r)
		return
	}

	// sends arriving during the flush wait on writeMu, keeping queue order
	c := &client{conn: conn}
	c.writeMu.Lock()
	g.mu.Lock()
	queued := g.pending[connID]
	delete(g.pending, connID)
	g.clients[connID] = c
	g.mu.Unlock()

	for _, data := range queued {
		if err := c.writeLocked(data); err != nil {
			logger.Warn().Err(err).Msg("failed to flush queued message")
		}
	}
	c.writeMu.Unlock()

	go g.readLoop(connID, c, r)
}

func (g *Gateway) readLoop(connID string, c *client, r *http.Request) {
	logger := g.Logger.With().Str("connection_id", connID).Logger()
	defer func() {
		g.drop(connID)
		_ = c.conn.Close()
		g.disconnect(connID, r)
	}()

	c.conn.SetReadLimit(readLimit)
	for {
		_, body, err := c.conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("connection closed")
			return
		}
		req := g.event(r, connID, "$default", string(body))
		if _, err := g.Handler.HandleEvent(context.Background(), req); err != nil {
			logger.Warn().Err(err).Msg("failed to handle message")
		}
	}
}

func (g *Gateway) disconnect(connID string, r *http.Request) {
	req := g.event(r, connID, "$disconnect", "")
	if _, err := g.Handler.HandleEvent(context.Background(), req); err != nil {
		g.Logger.Warn().Err(err).Str("connection_id", connID).Msg("failed to handle disconnect")
	}
}

func (g *Gateway) drop(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, connID)
	delete(g.clients, connID)
}

func (g *Gateway) event(r *http.Request, connID, routeKey, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body: body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     routeKey,
			Stage:        g.Stage,
			DomainName:   r.Host,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  r.RemoteAddr,
				UserAgent: r.UserAgent(),
			},
		},
	}
}
