package ledger

import (
	"context"
	"log"
	"strings"
)

// Open selects a ledger backend from the database URL: postgres:// URLs use
// the connection-pooled Postgres store, anything else is treated as a SQLite
// file path. An empty URL falls back to the in-memory store, which keeps the
// service usable for local experiments but loses records on restart.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case databaseURL == "":
		log.Printf("No database configured; using in-memory ledger (records are not durable)")
		return NewMemoryStore(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return ConnectPostgres(ctx, databaseURL)
	default:
		return OpenSQLite(strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}
