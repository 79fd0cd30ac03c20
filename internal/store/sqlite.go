package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dexter-labs/tokentracker/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	id TEXT PRIMARY KEY,
	contract_address TEXT UNIQUE NOT NULL,
	name TEXT, symbol TEXT, chain_short TEXT, logo_url TEXT,
	spotted_at INTEGER, spotted_mc REAL,
	current_mc REAL, previous_mc REAL,
	peak_mc REAL, peak_multiplier REAL,
	volume_24h REAL, previous_volume_24h REAL,
	price_usd REAL, total_supply REAL,
	tx_metrics_json TEXT,
	last_metrics_update INTEGER,
	mc_10s_ago REAL, vol_10s_ago REAL, snap_10s_at INTEGER,
	mc_10m_ago REAL, snap_10m_at INTEGER,
	source TEXT, holder_rank INTEGER,
	holder_spotted_at INTEGER, holder_spotted_mc REAL,
	holder_peak_mc REAL, holder_peak_multiplier REAL,
	needs_data_fetch INTEGER, announced INTEGER,
	last_updated INTEGER, last_db_save INTEGER
);
CREATE TABLE IF NOT EXISTS price_history (
	token_id TEXT, timestamp_ms INTEGER, market_cap REAL, volume REAL
);
CREATE TABLE IF NOT EXISTS blacklist (
	contract_address TEXT PRIMARY KEY, name TEXT, blacklisted_at INTEGER
);
CREATE TABLE IF NOT EXISTS alert_tiers (
	id INTEGER PRIMARY KEY AUTOINCREMENT, tier1 REAL, tier2 REAL, tier3 REAL, set_at INTEGER
);
`

const upsertTokenQuery = `
INSERT INTO tokens (
	id, contract_address, name, symbol, chain_short, logo_url,
	spotted_at, spotted_mc, current_mc, previous_mc, peak_mc, peak_multiplier,
	volume_24h, previous_volume_24h, price_usd, total_supply, tx_metrics_json,
	last_metrics_update, mc_10s_ago, vol_10s_ago, snap_10s_at, mc_10m_ago, snap_10m_at,
	source, holder_rank, holder_spotted_at, holder_spotted_mc, holder_peak_mc,
	holder_peak_multiplier, needs_data_fetch, announced, last_updated, last_db_save
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(contract_address) DO UPDATE SET
	name=excluded.name, symbol=excluded.symbol, chain_short=excluded.chain_short, logo_url=excluded.logo_url,
	spotted_at=excluded.spotted_at, spotted_mc=excluded.spotted_mc,
	current_mc=excluded.current_mc, previous_mc=excluded.previous_mc,
	peak_mc=excluded.peak_mc, peak_multiplier=excluded.peak_multiplier,
	volume_24h=excluded.volume_24h, previous_volume_24h=excluded.previous_volume_24h,
	price_usd=excluded.price_usd, total_supply=excluded.total_supply,
	tx_metrics_json=excluded.tx_metrics_json, last_metrics_update=excluded.last_metrics_update,
	mc_10s_ago=excluded.mc_10s_ago, vol_10s_ago=excluded.vol_10s_ago, snap_10s_at=excluded.snap_10s_at,
	mc_10m_ago=excluded.mc_10m_ago, snap_10m_at=excluded.snap_10m_at,
	source=excluded.source, holder_rank=excluded.holder_rank,
	holder_spotted_at=excluded.holder_spotted_at, holder_spotted_mc=excluded.holder_spotted_mc,
	holder_peak_mc=excluded.holder_peak_mc, holder_peak_multiplier=excluded.holder_peak_multiplier,
	needs_data_fetch=excluded.needs_data_fetch, announced=excluded.announced,
	last_updated=excluded.last_updated, last_db_save=excluded.last_db_save
`

// sqliteStore is the embedded backend, grounded on gurre-prime-fix-md-go's
// WAL-mode DSN and prepared-statement shape for the hot upsert path.
type sqliteStore struct {
	db         *sql.DB
	path       string
	stmtUpsert *sql.Stmt
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	s := &sqliteStore{path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) open() error {
	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	stmt, err := db.Prepare(upsertTokenQuery)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("prepare upsert statement: %w", err)
	}
	s.db = db
	s.stmtUpsert = stmt
	return nil
}

func (s *sqliteStore) Close() error {
	if s.stmtUpsert != nil {
		_ = s.stmtUpsert.Close()
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertToken(ctx context.Context, t *model.Token) error {
	var txJSON sql.NullString
	if t.TxMetrics != nil {
		b, err := json.Marshal(t.TxMetrics)
		if err != nil {
			return fmt.Errorf("marshal tx_metrics: %w", err)
		}
		txJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.stmtUpsert.ExecContext(ctx,
		t.ID, t.ContractAddress, t.Name, t.Symbol, t.ChainShort, t.LogoURL,
		unixMs(t.SpottedAt), t.SpottedMC, t.CurrentMC, t.PreviousMC, t.PeakMC, t.PeakMultiplier,
		t.Volume24h, t.PreviousVolume24h, t.PriceUSD, t.TotalSupply, txJSON,
		unixMs(t.LastMetricsUpdate), t.MC10sAgo, t.Vol10sAgo, unixMs(t.Snap10sAt), t.MC10mAgo, unixMs(t.Snap10mAt),
		string(t.Source), t.HolderRank, unixMs(t.HolderSpottedAt), t.HolderSpottedMC, t.HolderPeakMC,
		t.HolderPeakMultiplier, boolToInt(t.NeedsDataFetch), boolToInt(t.Announced), unixMs(t.LastUpdated), unixMs(t.LastDBSave),
	)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", t.ContractAddress, err)
	}
	return nil
}

func (s *sqliteStore) GetTokensSince(ctx context.Context, cutoff time.Time) ([]*model.Token, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, contract_address, name, symbol, chain_short, logo_url,
		spotted_at, spotted_mc, current_mc, previous_mc, peak_mc, peak_multiplier,
		volume_24h, previous_volume_24h, price_usd, total_supply, tx_metrics_json,
		last_metrics_update, mc_10s_ago, vol_10s_ago, snap_10s_at, mc_10m_ago, snap_10m_at,
		source, holder_rank, holder_spotted_at, holder_spotted_mc, holder_peak_mc,
		holder_peak_multiplier, needs_data_fetch, announced, last_updated, last_db_save
		FROM tokens WHERE spotted_at > ? ORDER BY peak_multiplier DESC`, unixMs(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query tokens since: %w", err)
	}
	defer rows.Close()

	var out []*model.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(rows rowScanner) (*model.Token, error) {
	var t model.Token
	var spottedAt, lastMetrics, snap10s, snap10m, holderSpottedAt, lastUpdated, lastDBSave int64
	var txJSON sql.NullString
	var source string
	var needsData, announced int

	err := rows.Scan(
		&t.ID, &t.ContractAddress, &t.Name, &t.Symbol, &t.ChainShort, &t.LogoURL,
		&spottedAt, &t.SpottedMC, &t.CurrentMC, &t.PreviousMC, &t.PeakMC, &t.PeakMultiplier,
		&t.Volume24h, &t.PreviousVolume24h, &t.PriceUSD, &t.TotalSupply, &txJSON,
		&lastMetrics, &t.MC10sAgo, &t.Vol10sAgo, &snap10s, &t.MC10mAgo, &snap10m,
		&source, &t.HolderRank, &holderSpottedAt, &t.HolderSpottedMC, &t.HolderPeakMC,
		&t.HolderPeakMultiplier, &needsData, &announced, &lastUpdated, &lastDBSave,
	)
	if err != nil {
		return nil, fmt.Errorf("scan token row: %w", err)
	}

	t.Source = model.Source(source)
	t.NeedsDataFetch = needsData != 0
	t.Announced = announced != 0
	t.SpottedAt = msToTime(spottedAt)
	t.LastMetricsUpdate = msToTime(lastMetrics)
	t.Snap10sAt = msToTime(snap10s)
	t.Snap10mAt = msToTime(snap10m)
	t.HolderSpottedAt = msToTime(holderSpottedAt)
	t.LastUpdated = msToTime(lastUpdated)
	t.LastDBSave = msToTime(lastDBSave)

	if txJSON.Valid {
		var tx model.TxWindow
		if err := json.Unmarshal([]byte(txJSON.String), &tx); err == nil {
			t.TxMetrics = &tx
		}
	}
	return &t, nil
}

func (s *sqliteStore) AppendPriceHistory(ctx context.Context, tokenID string, mc, vol float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (token_id, timestamp_ms, market_cap, volume) VALUES (?,?,?,?)`,
		tokenID, time.Now().UnixMilli(), mc, vol)
	if err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

func (s *sqliteStore) BlacklistAdd(ctx context.Context, addr, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin blacklist_add tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blacklist (contract_address, name, blacklisted_at) VALUES (?,?,?)
		 ON CONFLICT(contract_address) DO NOTHING`,
		addr, name, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("insert blacklist row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE contract_address = ?`, addr); err != nil {
		return fmt.Errorf("delete blacklisted token: %w", err)
	}
	return tx.Commit()
}

func (s *sqliteStore) BlacklistContains(ctx context.Context, addr string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM blacklist WHERE contract_address = ?`, addr).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *sqliteStore) BlacklistList(ctx context.Context) ([]model.BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT contract_address, name, blacklisted_at FROM blacklist ORDER BY blacklisted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var out []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		var at int64
		if err := rows.Scan(&e.ContractAddress, &e.Name, &at); err != nil {
			return nil, fmt.Errorf("scan blacklist row: %w", err)
		}
		e.BlacklistedAt = msToTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) BlacklistRemove(ctx context.Context, addr string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE contract_address = ?`, addr); err != nil {
		return fmt.Errorf("remove from blacklist: %w", err)
	}
	return nil
}

// PurgeDegen deletes only degen-sourced token rows (and their price
// history), leaving holder/ex-holder rows and the blacklist untouched, then
// VACUUMs the main file and checkpoints+truncates the WAL so the -wal/-shm
// shadow files left on disk shrink along with it (spec §4.2).
func (s *sqliteStore) PurgeDegen(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge tx: %w", err)
	}
	defer tx.Rollback()

	degenSource := string(model.SourceDegen)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM price_history WHERE token_id IN (SELECT id FROM tokens WHERE source = ?)`,
		degenSource); err != nil {
		return fmt.Errorf("delete degen price history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE source = ?`, degenSource); err != nil {
		return fmt.Errorf("delete degen tokens: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purge tx: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum after purge: %w", err)
	}
	// TRUNCATE checkpoints every WAL frame into the main file and truncates
	// the -wal file to zero bytes; the -shm index shrinks along with it.
	// Without this the shadow files keep growing even though VACUUM
	// compacted the main database file itself.
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint wal after purge: %w", err)
	}
	return nil
}

func (s *sqliteStore) SaveAlertTiers(ctx context.Context, tiers model.AlertTiers) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_tiers (tier1, tier2, tier3, set_at) VALUES (?,?,?,?)`,
		tiers.Tier1, tiers.Tier2, tiers.Tier3, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save alert tiers: %w", err)
	}
	return nil
}

func (s *sqliteStore) LoadAlertTiers(ctx context.Context) (model.AlertTiers, error) {
	var tiers model.AlertTiers
	err := s.db.QueryRowContext(ctx,
		`SELECT tier1, tier2, tier3 FROM alert_tiers ORDER BY set_at DESC LIMIT 1`,
	).Scan(&tiers.Tier1, &tiers.Tier2, &tiers.Tier3)
	if err == sql.ErrNoRows {
		return model.DefaultAlertTiers(), nil
	}
	if err != nil {
		return model.AlertTiers{}, fmt.Errorf("load alert tiers: %w", err)
	}
	return tiers, nil
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
