package mylgws

import (
	"context"

	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
)

// Registry is the connection store the handlers depend on. Every operation
// touches a single item; no multi-row transactions are required.
// *connectiondao.DAO and *connectiondao.Memory both satisfy it.
type Registry interface {
	// Insert stores conn if no row with the same connection id exists,
	// otherwise it returns an error wrapping connectiondao.ErrConnectionExists.
	Insert(ctx context.Context, conn connectiondao.Connection) error
	// Get is a strongly consistent read; it returns nil, nil when absent.
	Get(ctx context.Context, connectionID string) (*connectiondao.Connection, error)
	Delete(ctx context.Context, connectionID string) error
	Scan(ctx context.Context) ([]connectiondao.Connection, error)
	QueryBySession(ctx context.Context, userID, sessionID string) ([]connectiondao.Connection, error)
	QueryByUser(ctx context.Context, userID string, limit int64) ([]connectiondao.Connection, error)
}
