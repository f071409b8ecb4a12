package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/games"
)

// PostgresStore keeps the cache in the feature_cache table, one row per
// (year, week) holding that week's records keyed by game id.
type PostgresStore struct {
	db *Database
}

// NewPostgresStore creates a store over a migrated database.
func NewPostgresStore(db *Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load reads every week row. An empty table yields the seed.
func (s *PostgresStore) Load(ctx context.Context) (Cache, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		"SELECT year, week, games FROM feature_cache ORDER BY year, week")
	if err != nil {
		return nil, fmt.Errorf("query feature cache: %w", err)
	}
	defer rows.Close()

	c := make(Cache)
	for rows.Next() {
		var (
			year, week int
			raw        []byte
		)
		if err := rows.Scan(&year, &week, &raw); err != nil {
			return nil, fmt.Errorf("scan feature cache: %w", err)
		}
		byID := make(map[int64]games.Record)
		if err := json.Unmarshal(raw, &byID); err != nil {
			return nil, fmt.Errorf("%w: year %d week %d: %v", ErrCorruptCache, year, week, err)
		}
		if c[year] == nil {
			c[year] = make(map[int]map[int64]games.Record)
		}
		c[year][week] = byID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature cache: %w", err)
	}

	if len(c) == 0 {
		return Seed(), nil
	}
	return c, nil
}

// Persist replaces the whole table inside one transaction.
func (s *PostgresStore) Persist(ctx context.Context, c Cache) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM feature_cache"); err != nil {
		return fmt.Errorf("clear feature cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO feature_cache (year, week, games) VALUES ($1, $2, $3)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, year := range sortedKeys(c) {
		for _, week := range sortedKeys(c[year]) {
			b, err := json.Marshal(c[year][week])
			if err != nil {
				return fmt.Errorf("encode year %d week %d: %w", year, week, err)
			}
			if _, err := stmt.ExecContext(ctx, year, week, b); err != nil {
				return fmt.Errorf("insert year %d week %d: %w", year, week, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.db.logger.Info("persisted feature cache", zap.Int("years", len(c)))
	return nil
}
