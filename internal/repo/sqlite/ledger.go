package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

func (s *Store) RecordOutcome(ctx context.Context, url string, outcome domain.Outcome) error {
	var column string
	switch outcome {
	case domain.OutcomeReachable:
		column = "uptime_counts"
	case domain.OutcomeUnreachable:
		column = "downtime_counts"
	default:
		return nil
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if err := ensureStats(ctx, tx, url); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE historical_stats SET `+column+` = `+column+` + 1, date_modified = ? WHERE site = ?`, now(), url)
		if err != nil {
			return fmt.Errorf("increment %s: %w", column, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("increment %s: %d rows affected", column, n)
		}
		return nil
	})
}

func ensureStats(ctx context.Context, tx *sql.Tx, url string) error {
	ts := now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO websites (site, date_created) VALUES (?, ?) ON CONFLICT DO NOTHING`, url, ts); err != nil {
		return fmt.Errorf("ensure site: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO historical_stats (site, date_created, date_modified) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		url, ts, ts); err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}
	return nil
}

const statsSelect = `SELECT site, uptime_counts, downtime_counts, date_created, date_modified FROM historical_stats`

func (s *Store) GetStats(ctx context.Context, url string) (*domain.StatsRecord, error) {
	var rec *domain.StatsRecord
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		if err := ensureStats(ctx, tx, url); err != nil {
			return err
		}
		r, err := scanStats(tx.QueryRowContext(ctx, statsSelect+` WHERE site = ?`, url))
		rec = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) ListStats(ctx context.Context) ([]domain.StatsRecord, error) {
	rows, err := s.db.QueryContext(ctx, statsSelect+` ORDER BY date_created DESC`)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()
	var out []domain.StatsRecord
	for rows.Next() {
		r, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanStats(row scanner) (*domain.StatsRecord, error) {
	var (
		r                domain.StatsRecord
		up, down         int64
		created, updated string
	)
	if err := row.Scan(&r.SiteURL, &up, &down, &created, &updated); err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	r.UpCount, r.DownCount = uint64(up), uint64(down)
	r.CreatedAt, r.UpdatedAt = parseTime(created), parseTime(updated)
	return &r, nil
}
