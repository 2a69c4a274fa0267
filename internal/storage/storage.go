// Package storage provides SQLite-backed persistence for discovered markets and trade decisions.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/polytrend/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db           *sql.DB
	maxDecisions int
}

// MarketRecord is a discovered market handle together with the asset and period it was resolved for.
type MarketRecord struct {
	Asset           string
	Market          models.Market
	PeriodTimestamp int64
	DiscoveredAt    time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/polytrend/data.db.
func New(maxDecisions int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "polytrend", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxDecisions: maxDecisions}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS markets (
			slug            TEXT PRIMARY KEY,
			asset           TEXT NOT NULL,
			condition_id    TEXT NOT NULL,
			market_id       TEXT,
			question        TEXT,
			up_token_id     TEXT,
			down_token_id   TEXT,
			active          INTEGER NOT NULL,
			closed          INTEGER NOT NULL,
			period_ts       INTEGER NOT NULL,
			discovered_at   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id              TEXT PRIMARY KEY,
			asset           TEXT NOT NULL,
			kind            TEXT NOT NULL,
			token_id        TEXT,
			price           REAL NOT NULL,
			shares          REAL NOT NULL,
			index_type      TEXT NOT NULL,
			up_index        REAL,
			down_index      REAL,
			period_ts       INTEGER NOT NULL,
			time_remaining  INTEGER NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_markets_asset ON markets(asset, period_ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordMarket inserts or refreshes a discovered market handle.
func (s *Storage) RecordMarket(asset string, market *models.Market, period int64, discoveredAt time.Time) error {
	if err := market.Validate(); err != nil {
		return fmt.Errorf("invalid market: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO markets
			(slug, asset, condition_id, market_id, question, up_token_id, down_token_id,
			 active, closed, period_ts, discovered_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(slug) DO UPDATE SET
			condition_id=excluded.condition_id, market_id=excluded.market_id,
			question=excluded.question, up_token_id=excluded.up_token_id,
			down_token_id=excluded.down_token_id, active=excluded.active,
			closed=excluded.closed, period_ts=excluded.period_ts,
			discovered_at=excluded.discovered_at`,
		market.Slug, asset, market.ConditionID, market.ID, market.Question,
		market.UpTokenID, market.DownTokenID,
		boolToInt(market.Active), boolToInt(market.Closed),
		period, discoveredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record market: %w", err)
	}
	return nil
}

func (s *Storage) GetMarket(slug string) (*MarketRecord, error) {
	row := s.db.QueryRow(`SELECT `+marketCols+` FROM markets WHERE slug = ?`, slug)
	rec, err := scanMarket(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: market %s", models.ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return rec, nil
}

// LatestMarket returns the most recently discovered market for asset.
func (s *Storage) LatestMarket(asset string) (*MarketRecord, error) {
	row := s.db.QueryRow(`SELECT `+marketCols+` FROM markets WHERE asset = ?
		ORDER BY period_ts DESC, discovered_at DESC LIMIT 1`, asset)
	rec, err := scanMarket(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no market recorded for %s", models.ErrNotFound, asset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest market: %w", err)
	}
	return rec, nil
}

// AddDecision appends a decision and trims the journal to the configured cap.
func (s *Storage) AddDecision(d *models.Decision) error {
	if d.ID == "" {
		return errors.New("invalid decision: id must not be empty")
	}
	if d.Action.Kind == models.NoAction {
		return errors.New("invalid decision: no action")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO decisions
			(id, asset, kind, token_id, price, shares, index_type,
			 up_index, down_index, period_ts, time_remaining, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Asset, d.Action.Kind.String(), d.TokenID, d.Action.Price, d.Action.Shares,
		d.IndexType.String(), nullFloat(d.UpIndex), nullFloat(d.DownIndex),
		d.PeriodTimestamp, d.TimeRemainingSeconds, d.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	if err := rotateDecisions(tx, s.maxDecisions); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRecentDecisions returns up to k decisions, newest first.
func (s *Storage) GetRecentDecisions(k int) ([]models.Decision, error) {
	rows, err := s.db.Query(`
		SELECT id, asset, kind, token_id, price, shares, index_type,
		       up_index, down_index, period_ts, time_remaining, created_at
		FROM decisions ORDER BY created_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.Decision
	for rows.Next() {
		var d models.Decision
		var kind, indexType string
		var tokenID sql.NullString
		var upIndex, downIndex sql.NullFloat64
		var createdAtNano int64

		err := rows.Scan(
			&d.ID, &d.Asset, &kind, &tokenID, &d.Action.Price, &d.Action.Shares, &indexType,
			&upIndex, &downIndex, &d.PeriodTimestamp, &d.TimeRemainingSeconds, &createdAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		if d.Action.Kind, err = parseActionKind(kind); err != nil {
			return nil, err
		}
		if d.IndexType, err = models.ParseIndexType(indexType); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.TokenID = tokenID.String
		d.UpIndex = floatPtr(upIndex)
		d.DownIndex = floatPtr(downIndex)
		d.CreatedAt = time.Unix(0, createdAtNano)
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

func (s *Storage) CountDecisions() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return n, nil
}

// RotateDecisions keeps at most maxDecisions newest decisions by created_at.
func (s *Storage) RotateDecisions() error {
	return rotateDecisions(s.db, s.maxDecisions)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func rotateDecisions(db execer, limit int) error {
	if limit <= 0 {
		return nil
	}
	_, err := db.Exec(`
		DELETE FROM decisions WHERE id NOT IN (
			SELECT id FROM decisions ORDER BY created_at DESC LIMIT ?
		)`, limit)
	if err != nil {
		return fmt.Errorf("failed to rotate decisions: %w", err)
	}
	return nil
}

const marketCols = `slug, asset, condition_id, market_id, question, up_token_id, down_token_id,
	active, closed, period_ts, discovered_at`

func scanMarket(scan func(...any) error) (*MarketRecord, error) {
	var rec MarketRecord
	var marketID, question, upToken, downToken sql.NullString
	var active, closed int
	var discoveredAtNano int64
	err := scan(
		&rec.Market.Slug, &rec.Asset, &rec.Market.ConditionID, &marketID, &question,
		&upToken, &downToken, &active, &closed, &rec.PeriodTimestamp, &discoveredAtNano,
	)
	if err != nil {
		return nil, err
	}
	rec.Market.ID = marketID.String
	rec.Market.Question = question.String
	rec.Market.UpTokenID = upToken.String
	rec.Market.DownTokenID = downToken.String
	rec.Market.Active = active != 0
	rec.Market.Closed = closed != 0
	rec.DiscoveredAt = time.Unix(0, discoveredAtNano)
	return &rec, nil
}

func parseActionKind(s string) (models.ActionKind, error) {
	for _, k := range []models.ActionKind{models.BuyUp, models.BuyDown, models.SellUp, models.SellDown} {
		if k.String() == s {
			return k, nil
		}
	}
	return models.NoAction, fmt.Errorf("unknown action kind %q", s)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
