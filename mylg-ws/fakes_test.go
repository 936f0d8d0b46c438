package mylgws

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/rs/zerolog"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// fakeTransport records every delivery and can be told to report targets as
// gone or failing.
type fakeTransport struct {
	mu   sync.Mutex
	sent map[string][][]byte
	gone map[string]bool
	fail map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent: map[string][][]byte{},
		gone: map[string]bool{},
		fail: map[string]error{},
	}
}

func (f *fakeTransport) Send(_ context.Context, connectionID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gone[connectionID] {
		return fmt.Errorf("posting to connection %v: %w", connectionID, ErrGone)
	}
	if err := f.fail[connectionID]; err != nil {
		return err
	}
	f.sent[connectionID] = append(f.sent[connectionID], data)
	return nil
}

func (f *fakeTransport) actions(connectionID, action string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out [][]byte
	for _, data := range f.sent[connectionID] {
		var req Request
		if err := json.Unmarshal(data, &req); err == nil && req.Action == action {
			out = append(out, data)
		}
	}
	return out
}

func (f *fakeTransport) changes(connectionID string) []PresenceChanged {
	var out []PresenceChanged
	for _, data := range f.actions(connectionID, ActionPresenceChanged) {
		var event PresenceChanged
		if err := json.Unmarshal(data, &event); err == nil {
			out = append(out, event)
		}
	}
	return out
}

// changeTargets lists, sorted, the connections that received any presenceChanged.
func (f *fakeTransport) changeTargets() []string {
	f.mu.Lock()
	ids := make([]string, 0, len(f.sent))
	for id := range f.sent {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	var targets []string
	for _, id := range ids {
		if len(f.changes(id)) > 0 {
			targets = append(targets, id)
		}
	}
	sort.Strings(targets)
	return targets
}

func (f *fakeTransport) snapshots(connectionID string) []PresenceSnapshot {
	var out []PresenceSnapshot
	for _, data := range f.actions(connectionID, ActionPresenceSnapshot) {
		var event PresenceSnapshot
		if err := json.Unmarshal(data, &event); err == nil {
			out = append(out, event)
		}
	}
	return out
}

// flakyRegistry wraps the in-memory registry with injectable failures.
type flakyRegistry struct {
	*connectiondao.Memory
	insertErr       error
	getErr          error
	deleteErr       error
	scanErr         error
	querySessionErr error
	queryUserErr    error
}

func (r *flakyRegistry) Insert(ctx context.Context, conn connectiondao.Connection) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.Memory.Insert(ctx, conn)
}

func (r *flakyRegistry) Get(ctx context.Context, id string) (*connectiondao.Connection, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.Memory.Get(ctx, id)
}

func (r *flakyRegistry) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Memory.Delete(ctx, id)
}

func (r *flakyRegistry) Scan(ctx context.Context) ([]connectiondao.Connection, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	return r.Memory.Scan(ctx)
}

func (r *flakyRegistry) QueryBySession(ctx context.Context, userID, sessionID string) ([]connectiondao.Connection, error) {
	if r.querySessionErr != nil {
		return nil, r.querySessionErr
	}
	return r.Memory.QueryBySession(ctx, userID, sessionID)
}

func (r *flakyRegistry) QueryByUser(ctx context.Context, userID string, limit int64) ([]connectiondao.Connection, error) {
	if r.queryUserErr != nil {
		return nil, r.queryUserErr
	}
	return r.Memory.QueryByUser(ctx, userID, limit)
}

func newTestHandler(registry Registry, transport Transport) *Handler {
	return &Handler{
		Presence: &Presence{
			Registry:  registry,
			Transport: transport,
			Logger:    zerolog.Nop(),
			Now:       func() time.Time { return fixedNow },
		},
	}
}

func seed(registry *connectiondao.Memory, connID, userID, sessionID string) {
	_ = registry.Insert(context.Background(), connectiondao.Connection{
		ConnectionID: connID,
		UserID:       userID,
		SessionID:    sessionID,
		ConnectedAt:  fixedNow.Unix(),
		ExpiresAt:    fixedNow.Add(24 * time.Hour).Unix(),
	})
}

func connectRequest(connID, userID, protocols string) events.APIGatewayWebsocketProxyRequest {
	req := events.APIGatewayWebsocketProxyRequest{
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     "$connect",
			Stage:        "dev",
			DomainName:   "abc123.execute-api.us-east-1.amazonaws.com",
		},
	}
	if userID != "" {
		req.RequestContext.Authorizer = map[string]interface{}{"userId": userID, "role": "member"}
	}
	if protocols != "" {
		req.Headers = map[string]string{"sec-websocket-protocol": protocols}
	}
	return req
}

func disconnectRequest(connID string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     "$disconnect",
		},
	}
}

func defaultRequest(connID, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     "$default",
		},
		Body: body,
	}
}

func rowIDs(registry *connectiondao.Memory) []string {
	conns, _ := registry.Scan(context.Background())
	ids := Targets(conns, "")
	sort.Strings(ids)
	return ids
}
