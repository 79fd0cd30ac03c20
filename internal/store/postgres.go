package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dexter-labs/tokentracker/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	id TEXT PRIMARY KEY,
	contract_address TEXT UNIQUE NOT NULL,
	name TEXT, symbol TEXT, chain_short TEXT, logo_url TEXT,
	spotted_at TIMESTAMPTZ, spotted_mc DOUBLE PRECISION,
	current_mc DOUBLE PRECISION, previous_mc DOUBLE PRECISION,
	peak_mc DOUBLE PRECISION, peak_multiplier DOUBLE PRECISION,
	volume_24h DOUBLE PRECISION, previous_volume_24h DOUBLE PRECISION,
	price_usd DOUBLE PRECISION, total_supply DOUBLE PRECISION,
	tx_metrics_json JSONB,
	last_metrics_update TIMESTAMPTZ,
	mc_10s_ago DOUBLE PRECISION, vol_10s_ago DOUBLE PRECISION, snap_10s_at TIMESTAMPTZ,
	mc_10m_ago DOUBLE PRECISION, snap_10m_at TIMESTAMPTZ,
	source TEXT, holder_rank INTEGER,
	holder_spotted_at TIMESTAMPTZ, holder_spotted_mc DOUBLE PRECISION,
	holder_peak_mc DOUBLE PRECISION, holder_peak_multiplier DOUBLE PRECISION,
	needs_data_fetch BOOLEAN, announced BOOLEAN,
	last_updated TIMESTAMPTZ, last_db_save TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS price_history (
	token_id TEXT, timestamp_ms BIGINT, market_cap DOUBLE PRECISION, volume DOUBLE PRECISION
);
CREATE TABLE IF NOT EXISTS blacklist (
	contract_address TEXT PRIMARY KEY, name TEXT, blacklisted_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS alert_tiers (
	id BIGSERIAL PRIMARY KEY, tier1 DOUBLE PRECISION, tier2 DOUBLE PRECISION, tier3 DOUBLE PRECISION, set_at TIMESTAMPTZ
);
`

const pgUpsertTokenQuery = `
INSERT INTO tokens (
	id, contract_address, name, symbol, chain_short, logo_url,
	spotted_at, spotted_mc, current_mc, previous_mc, peak_mc, peak_multiplier,
	volume_24h, previous_volume_24h, price_usd, total_supply, tx_metrics_json,
	last_metrics_update, mc_10s_ago, vol_10s_ago, snap_10s_at, mc_10m_ago, snap_10m_at,
	source, holder_rank, holder_spotted_at, holder_spotted_mc, holder_peak_mc,
	holder_peak_multiplier, needs_data_fetch, announced, last_updated, last_db_save
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
ON CONFLICT (contract_address) DO UPDATE SET
	name=EXCLUDED.name, symbol=EXCLUDED.symbol, chain_short=EXCLUDED.chain_short, logo_url=EXCLUDED.logo_url,
	spotted_at=EXCLUDED.spotted_at, spotted_mc=EXCLUDED.spotted_mc,
	current_mc=EXCLUDED.current_mc, previous_mc=EXCLUDED.previous_mc,
	peak_mc=EXCLUDED.peak_mc, peak_multiplier=EXCLUDED.peak_multiplier,
	volume_24h=EXCLUDED.volume_24h, previous_volume_24h=EXCLUDED.previous_volume_24h,
	price_usd=EXCLUDED.price_usd, total_supply=EXCLUDED.total_supply,
	tx_metrics_json=EXCLUDED.tx_metrics_json, last_metrics_update=EXCLUDED.last_metrics_update,
	mc_10s_ago=EXCLUDED.mc_10s_ago, vol_10s_ago=EXCLUDED.vol_10s_ago, snap_10s_at=EXCLUDED.snap_10s_at,
	mc_10m_ago=EXCLUDED.mc_10m_ago, snap_10m_at=EXCLUDED.snap_10m_at,
	source=EXCLUDED.source, holder_rank=EXCLUDED.holder_rank,
	holder_spotted_at=EXCLUDED.holder_spotted_at, holder_spotted_mc=EXCLUDED.holder_spotted_mc,
	holder_peak_mc=EXCLUDED.holder_peak_mc, holder_peak_multiplier=EXCLUDED.holder_peak_multiplier,
	needs_data_fetch=EXCLUDED.needs_data_fetch, announced=EXCLUDED.announced,
	last_updated=EXCLUDED.last_updated, last_db_save=EXCLUDED.last_db_save
`

// postgresStore is the remote backend, grounded on Outblock-flowindex's
// pgxpool construction and query style (internal/repository/postgres.go).
type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(dbURL string) (*postgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) UpsertToken(ctx context.Context, t *model.Token) error {
	var txJSON []byte
	if t.TxMetrics != nil {
		b, err := json.Marshal(t.TxMetrics)
		if err != nil {
			return fmt.Errorf("marshal tx_metrics: %w", err)
		}
		txJSON = b
	}

	_, err := s.pool.Exec(ctx, pgUpsertTokenQuery,
		t.ID, t.ContractAddress, t.Name, t.Symbol, t.ChainShort, t.LogoURL,
		nilIfZero(t.SpottedAt), t.SpottedMC, t.CurrentMC, t.PreviousMC, t.PeakMC, t.PeakMultiplier,
		t.Volume24h, t.PreviousVolume24h, t.PriceUSD, t.TotalSupply, txJSON,
		nilIfZero(t.LastMetricsUpdate), t.MC10sAgo, t.Vol10sAgo, nilIfZero(t.Snap10sAt), t.MC10mAgo, nilIfZero(t.Snap10mAt),
		string(t.Source), t.HolderRank, nilIfZero(t.HolderSpottedAt), t.HolderSpottedMC, t.HolderPeakMC,
		t.HolderPeakMultiplier, t.NeedsDataFetch, t.Announced, nilIfZero(t.LastUpdated), nilIfZero(t.LastDBSave),
	)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", t.ContractAddress, err)
	}
	return nil
}

func (s *postgresStore) GetTokensSince(ctx context.Context, cutoff time.Time) ([]*model.Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT
		id, contract_address, name, symbol, chain_short, logo_url,
		spotted_at, spotted_mc, current_mc, previous_mc, peak_mc, peak_multiplier,
		volume_24h, previous_volume_24h, price_usd, total_supply, tx_metrics_json,
		last_metrics_update, mc_10s_ago, vol_10s_ago, snap_10s_at, mc_10m_ago, snap_10m_at,
		source, holder_rank, holder_spotted_at, holder_spotted_mc, holder_peak_mc,
		holder_peak_multiplier, needs_data_fetch, announced, last_updated, last_db_save
		FROM tokens WHERE spotted_at > $1 ORDER BY peak_multiplier DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query tokens since: %w", err)
	}
	defer rows.Close()

	var out []*model.Token
	for rows.Next() {
		t, err := scanPgToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanPgToken(rows pgx.Rows) (*model.Token, error) {
	var t model.Token
	var spottedAt, lastMetrics, snap10s, snap10m, holderSpottedAt, lastUpdated, lastDBSave *time.Time
	var txJSON []byte
	var source string

	err := rows.Scan(
		&t.ID, &t.ContractAddress, &t.Name, &t.Symbol, &t.ChainShort, &t.LogoURL,
		&spottedAt, &t.SpottedMC, &t.CurrentMC, &t.PreviousMC, &t.PeakMC, &t.PeakMultiplier,
		&t.Volume24h, &t.PreviousVolume24h, &t.PriceUSD, &t.TotalSupply, &txJSON,
		&lastMetrics, &t.MC10sAgo, &t.Vol10sAgo, &snap10s, &t.MC10mAgo, &snap10m,
		&source, &t.HolderRank, &holderSpottedAt, &t.HolderSpottedMC, &t.HolderPeakMC,
		&t.HolderPeakMultiplier, &t.NeedsDataFetch, &t.Announced, &lastUpdated, &lastDBSave,
	)
	if err != nil {
		return nil, fmt.Errorf("scan token row: %w", err)
	}

	t.Source = model.Source(source)
	t.SpottedAt = derefTime(spottedAt)
	t.LastMetricsUpdate = derefTime(lastMetrics)
	t.Snap10sAt = derefTime(snap10s)
	t.Snap10mAt = derefTime(snap10m)
	t.HolderSpottedAt = derefTime(holderSpottedAt)
	t.LastUpdated = derefTime(lastUpdated)
	t.LastDBSave = derefTime(lastDBSave)

	if len(txJSON) > 0 {
		var tx model.TxWindow
		if err := json.Unmarshal(txJSON, &tx); err == nil {
			t.TxMetrics = &tx
		}
	}
	return &t, nil
}

func (s *postgresStore) AppendPriceHistory(ctx context.Context, tokenID string, mc, vol float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (token_id, timestamp_ms, market_cap, volume) VALUES ($1,$2,$3,$4)`,
		tokenID, time.Now().UnixMilli(), mc, vol)
	if err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

func (s *postgresStore) BlacklistAdd(ctx context.Context, addr, name string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin blacklist_add tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO blacklist (contract_address, name, blacklisted_at) VALUES ($1,$2,$3)
		 ON CONFLICT (contract_address) DO NOTHING`,
		addr, name, time.Now()); err != nil {
		return fmt.Errorf("insert blacklist row: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tokens WHERE contract_address = $1`, addr); err != nil {
		return fmt.Errorf("delete blacklisted token: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *postgresStore) BlacklistContains(ctx context.Context, addr string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM blacklist WHERE contract_address = $1`, addr).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *postgresStore) BlacklistList(ctx context.Context) ([]model.BlacklistEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT contract_address, name, blacklisted_at FROM blacklist ORDER BY blacklisted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var out []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		if err := rows.Scan(&e.ContractAddress, &e.Name, &e.BlacklistedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *postgresStore) BlacklistRemove(ctx context.Context, addr string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM blacklist WHERE contract_address = $1`, addr); err != nil {
		return fmt.Errorf("remove from blacklist: %w", err)
	}
	return nil
}

// PurgeDegen deletes only degen-sourced token rows (and their price
// history), leaving holder/ex-holder rows and the blacklist untouched.
// There is no on-disk shadow-file artifact to clean up for a remote
// backend (spec §4.2's removal clause is SQLite-specific).
func (s *postgresStore) PurgeDegen(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin purge tx: %w", err)
	}
	defer tx.Rollback(ctx)

	degenSource := string(model.SourceDegen)
	if _, err := tx.Exec(ctx,
		`DELETE FROM price_history WHERE token_id IN (SELECT id FROM tokens WHERE source = $1)`,
		degenSource); err != nil {
		return fmt.Errorf("delete degen price history: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tokens WHERE source = $1`, degenSource); err != nil {
		return fmt.Errorf("delete degen tokens: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit purge tx: %w", err)
	}
	return nil
}

func (s *postgresStore) SaveAlertTiers(ctx context.Context, tiers model.AlertTiers) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_tiers (tier1, tier2, tier3, set_at) VALUES ($1,$2,$3,$4)`,
		tiers.Tier1, tiers.Tier2, tiers.Tier3, time.Now())
	if err != nil {
		return fmt.Errorf("save alert tiers: %w", err)
	}
	return nil
}

func (s *postgresStore) LoadAlertTiers(ctx context.Context) (model.AlertTiers, error) {
	var tiers model.AlertTiers
	err := s.pool.QueryRow(ctx,
		`SELECT tier1, tier2, tier3 FROM alert_tiers ORDER BY set_at DESC LIMIT 1`,
	).Scan(&tiers.Tier1, &tiers.Tier2, &tiers.Tier3)
	if err == pgx.ErrNoRows {
		return model.DefaultAlertTiers(), nil
	}
	if err != nil {
		return model.AlertTiers{}, fmt.Errorf("load alert tiers: %w", err)
	}
	return tiers, nil
}

func nilIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
