package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

// ---- CredentialStore ----

func (s *Store) GetScheme(ctx context.Context, url string) (*domain.AuthenticationScheme, error) {
	const q = `SELECT kind, session_cookies, api_token, bearer_token, date_created, date_modified
	             FROM authentication_schemes WHERE site = $1`
	var (
		row repo.SchemeRow
		sc  = domain.AuthenticationScheme{SiteURL: url}
	)
	err := s.pool.QueryRow(ctx, q, url).Scan(
		&row.Kind, &row.SessionCookies, &row.APIToken, &row.BearerToken, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheme: %w", err)
	}
	cred, err := row.Credential()
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", url, err)
	}
	sc.Credential = cred
	return &sc, nil
}

func (s *Store) UpsertCredential(ctx context.Context, url string, cred domain.Credential, allowKindChange bool) error {
	row, err := repo.EncodeScheme(cred)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var stored string
		err := tx.QueryRow(ctx,
			`SELECT kind FROM authentication_schemes WHERE site = $1 FOR UPDATE`, url).Scan(&stored)
		existing := domain.KindNone
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("lock scheme: %w", err)
		default:
			existing, _ = domain.ParseAuthKind(stored)
		}
		if err := repo.CheckKindChange(existing, cred, allowKindChange); err != nil {
			return fmt.Errorf("site %s: %w", url, err)
		}
		// other slots are nulled so only the current kind's slot is populated
		_, err = tx.Exec(ctx, `
INSERT INTO authentication_schemes (site, kind, session_cookies, api_token, bearer_token)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (site) DO UPDATE
   SET kind = EXCLUDED.kind,
       session_cookies = EXCLUDED.session_cookies,
       api_token = EXCLUDED.api_token,
       bearer_token = EXCLUDED.bearer_token,
       date_modified = now()`,
			url, row.Kind, row.SessionCookies, row.APIToken, row.BearerToken)
		if pgCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("upsert scheme: %w", err)
		}
		return nil
	})
}

// ---- StatsLedger ----

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
	// UPDATE takes the row lock, so concurrent increments serialize instead of
	// overwriting each other.
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := ensureStats(ctx, tx, url); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE historical_stats SET `+column+` = `+column+` + 1, date_modified = now() WHERE site = $1`, url)
		if err != nil {
			return fmt.Errorf("increment %s: %w", column, err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("increment %s: %d rows affected", column, tag.RowsAffected())
		}
		return nil
	})
}

func ensureStats(ctx context.Context, tx pgx.Tx, url string) error {
	if _, err := tx.Exec(ctx, `INSERT INTO websites (site) VALUES ($1) ON CONFLICT DO NOTHING`, url); err != nil {
		return fmt.Errorf("ensure site: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO historical_stats (site) VALUES ($1) ON CONFLICT DO NOTHING`, url); err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context, url string) (*domain.StatsRecord, error) {
	var rec *domain.StatsRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := ensureStats(ctx, tx, url); err != nil {
			return err
		}
		r, err := scanStats(tx.QueryRow(ctx, statsSelect+` WHERE site = $1`, url))
		rec = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) ListStats(ctx context.Context) ([]domain.StatsRecord, error) {
	rows, err := s.pool.Query(ctx, statsSelect+` ORDER BY date_created DESC`)
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

const statsSelect = `SELECT site, uptime_counts, downtime_counts, date_created, date_modified FROM historical_stats`

func scanStats(row pgx.Row) (*domain.StatsRecord, error) {
	var (
		r        domain.StatsRecord
		up, down int64
	)
	if err := row.Scan(&r.SiteURL, &up, &down, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	r.UpCount, r.DownCount = uint64(up), uint64(down)
	return &r, nil
}
