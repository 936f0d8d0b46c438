package connectiondao

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process connection registry with the same semantics as
// DAO. Console mode uses it when no DynamoDB endpoint is configured.
type Memory struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

func NewMemory() *Memory {
	return &Memory{conns: map[string]Connection{}}
}

func (m *Memory) Insert(_ context.Context, conn Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[conn.ConnectionID]; ok {
		return fmt.Errorf("failed to insert connection %v: %w", conn.ConnectionID, ErrConnectionExists)
	}
	m.conns[conn.ConnectionID] = conn
	return nil
}

func (m *Memory) Get(_ context.Context, connectionID string) (*Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[connectionID]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

func (m *Memory) Delete(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conns, connectionID)
	return nil
}

// Scan returns every connection ordered by connection id.
func (m *Memory) Scan(_ context.Context) ([]Connection, error) {
	return m.filter(func(Connection) bool { return true }, 0), nil
}

func (m *Memory) QueryBySession(_ context.Context, userID, sessionID string) ([]Connection, error) {
	return m.filter(func(c Connection) bool {
		return c.UserID == userID && c.SessionID == sessionID
	}, 0), nil
}

func (m *Memory) QueryByUser(_ context.Context, userID string, limit int64) ([]Connection, error) {
	return m.filter(func(c Connection) bool { return c.UserID == userID }, limit), nil
}

// Len reports the number of registered connections.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

func (m *Memory) filter(keep func(Connection) bool, limit int64) []Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var conns []Connection
	for _, c := range m.conns {
		if keep(c) {
			conns = append(conns, c)
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].ConnectedAt != conns[j].ConnectedAt {
			return conns[i].ConnectedAt < conns[j].ConnectedAt
		}
		return conns[i].ConnectionID < conns[j].ConnectionID
	})
	if limit > 0 && int64(len(conns)) > limit {
		conns = conns[:limit]
	}
	return conns
}
