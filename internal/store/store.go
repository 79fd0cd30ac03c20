// Package store persists tracked tokens, price history, the blacklist, and
// alert-tier configuration behind one interface with two interchangeable
// backends: an embedded SQLite engine (default) and a remote PostgreSQL
// engine, selected by the presence of a database URL (spec §4.2, §6).
package store

import (
	"context"
	"time"

	"github.com/dexter-labs/tokentracker/internal/model"
)

// Store is the persistence contract the orchestrator depends on. All
// methods are safe for concurrent use; implementations serialize writes
// internally so callers never need an external lock around a call.
type Store interface {
	// UpsertToken replaces the row keyed by ContractAddress. Fields the
	// caller leaves unset on the passed struct overwrite prior values —
	// callers are expected to pass the full current in-memory record.
	UpsertToken(ctx context.Context, t *model.Token) error

	// GetTokensSince loads every token spotted strictly after cutoff,
	// newest multiplier first.
	GetTokensSince(ctx context.Context, cutoff time.Time) ([]*model.Token, error)

	// AppendPriceHistory records one short-window snapshot row.
	AppendPriceHistory(ctx context.Context, tokenID string, mc, vol float64) error

	// BlacklistAdd is idempotent and also removes addr from the tokens table.
	BlacklistAdd(ctx context.Context, addr, name string) error
	BlacklistContains(ctx context.Context, addr string) (bool, error)
	BlacklistList(ctx context.Context) ([]model.BlacklistEntry, error)
	BlacklistRemove(ctx context.Context, addr string) error

	// PurgeDegen deletes only degen tokens and the price history of those
	// tokens; price history of other tokens, the alert-tier rows and the
	// blacklist table are left as they are, and the schema is not recreated.
	PurgeDegen(ctx context.Context) error

	SaveAlertTiers(ctx context.Context, tiers model.AlertTiers) error
	LoadAlertTiers(ctx context.Context) (model.AlertTiers, error)

	Close() error
}

// New selects the backend from databaseURL: any non-empty URL opens the
// remote Postgres store, an empty one opens the embedded SQLite store at
// sqlitePath.
func New(databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		return newPostgresStore(databaseURL)
	}
	return newSQLiteStore(sqlitePath)
}
