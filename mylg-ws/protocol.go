package mylgws

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
)

// Presence actions sent to clients, plus the requests clients may send on
// the $default route.
const (
	ActionPresenceChanged  = "presenceChanged"
	ActionPresenceSnapshot = "presenceSnapshot"
	ActionPing             = "ping"
	ActionPong             = "pong"
	ActionGetPresence      = "getPresence"
)

// ProtocolHeader carries the client's offered sub-protocols. The first token
// is echoed back; the second, when present, is the session id.
const ProtocolHeader = "Sec-WebSocket-Protocol"

// PresenceChanged announces that a user came online or went offline.
type PresenceChanged struct {
	Action string    `json:"action"`
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// PresenceSnapshot lists every user with at least one registered connection.
type PresenceSnapshot struct {
	Action  string    `json:"action"`
	UserIDs []string  `json:"userIds"`
	At      time.Time `json:"at"`
}

// Request is a client message on the $default route.
type Request struct {
	Action string `json:"action"`
}

// ChangedMessage encodes a presenceChanged event.
func ChangedMessage(userID string, online bool, at time.Time) ([]byte, error) {
	b, err := json.Marshal(PresenceChanged{
		Action: ActionPresenceChanged,
		UserID: userID,
		Online: online,
		At:     at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling presenceChanged: %w", err)
	}
	return b, nil
}

// SnapshotMessage encodes a presenceSnapshot event.
func SnapshotMessage(userIDs []string, at time.Time) ([]byte, error) {
	if userIDs == nil {
		userIDs = []string{}
	}
	b, err := json.Marshal(PresenceSnapshot{
		Action:  ActionPresenceSnapshot,
		UserIDs: userIDs,
		At:      at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling presenceSnapshot: %w", err)
	}
	return b, nil
}

// PongMessage returns a pong reply.
func PongMessage() []byte {
	b, _ := json.Marshal(Request{Action: ActionPong})
	return b
}

// ParseRequest parses a $default route body.
func ParseRequest(body string) (*Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.Action == "" {
		return nil, fmt.Errorf("missing action")
	}
	return &req, nil
}

// OnlineUsers returns the sorted, distinct user ids across conns, plus any
// extra ids supplied.
func OnlineUsers(conns []connectiondao.Connection, extra ...string) []string {
	seen := map[string]struct{}{}
	for _, c := range conns {
		if c.UserID != "" {
			seen[c.UserID] = struct{}{}
		}
	}
	for _, id := range extra {
		if id != "" {
			seen[id] = struct{}{}
		}
	}

	userIDs := make([]string, 0, len(seen))
	for id := range seen {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	return userIDs
}

// ParseProtocols splits a Sec-WebSocket-Protocol header value into its
// non-empty, trimmed tokens.
func ParseProtocols(header string) []string {
	var offered []string
	for _, token := range strings.Split(header, ",") {
		if token = strings.TrimSpace(token); token != "" {
			offered = append(offered, token)
		}
	}
	return offered
}

// ChooseProtocol picks the single sub-protocol to echo back during the
// handshake: always the first offered token. The handshake fails if the
// response names a protocol the client did not offer, or more than one.
func ChooseProtocol(offered []string) (string, bool) {
	if len(offered) == 0 {
		return "", false
	}
	return offered[0], true
}

// SessionFromProtocols extracts the client session id, carried as the second
// offered sub-protocol token.
func SessionFromProtocols(offered []string) string {
	if len(offered) < 2 {
		return ""
	}
	return offered[1]
}
