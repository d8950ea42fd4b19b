package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps everything in one SQLite file. A single connection serializes
// writers, so ledger increments never race.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Info("sqlite_ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// transaction runs fn inside a transaction, committing only if fn succeeds.
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// ---- SiteStore ----

func (s *Store) AddSite(ctx context.Context, site *domain.Site) error {
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	if site.Status == "" {
		site.Status = domain.StatusUnknown
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO websites (site, has_authentication, status, date_created) VALUES (?, ?, ?, ?)`,
		site.URL, site.RequiresAuthentication, string(site.Status), site.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isUnique(err) {
		return fmt.Errorf("site %s: %w", site.URL, repo.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site, has_authentication, status, date_created FROM websites ORDER BY date_created DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *site)
	}
	return out, rows.Err()
}

func (s *Store) GetSite(ctx context.Context, url string) (*domain.Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`SELECT site, has_authentication, status, date_created FROM websites WHERE site = ?`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	return site, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (*domain.Site, error) {
	var (
		site            domain.Site
		status, created string
	)
	if err := row.Scan(&site.URL, &site.RequiresAuthentication, &status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan site: %w", err)
	}
	site.Status = domain.Status(status)
	site.CreatedAt = parseTime(created)
	return &site, nil
}

func (s *Store) SetStatus(ctx context.Context, url string, status domain.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE websites SET status = ? WHERE site = ?`, string(status), url)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	return nil
}

// DeleteSite relies on ON DELETE CASCADE for dependent rows.
func (s *Store) DeleteSite(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM websites WHERE site = ?`, url)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	return nil
}

// ---- CredentialStore ----

func (s *Store) GetScheme(ctx context.Context, url string) (*domain.AuthenticationScheme, error) {
	var (
		row              repo.SchemeRow
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, session_cookies, api_token, bearer_token, date_created, date_modified
		   FROM authentication_schemes WHERE site = ?`, url,
	).Scan(&row.Kind, &row.SessionCookies, &row.APIToken, &row.BearerToken, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheme: %w", err)
	}
	cred, err := row.Credential()
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", url, err)
	}
	return &domain.AuthenticationScheme{
		SiteURL:    url,
		Credential: cred,
		CreatedAt:  parseTime(created),
		UpdatedAt:  parseTime(updated),
	}, nil
}

func (s *Store) UpsertCredential(ctx context.Context, url string, cred domain.Credential, allowKindChange bool) error {
	row, err := repo.EncodeScheme(cred)
	if err != nil {
		return err
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		var stored string
		err := tx.QueryRowContext(ctx, `SELECT kind FROM authentication_schemes WHERE site = ?`, url).Scan(&stored)
		existing := domain.KindNone
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read scheme: %w", err)
		default:
			existing, _ = domain.ParseAuthKind(stored)
		}
		if err := repo.CheckKindChange(existing, cred, allowKindChange); err != nil {
			return fmt.Errorf("site %s: %w", url, err)
		}
		ts := now()
		_, err = tx.ExecContext(ctx, `
INSERT INTO authentication_schemes (site, kind, session_cookies, api_token, bearer_token, date_created, date_modified)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (site) DO UPDATE
   SET kind = excluded.kind,
       session_cookies = excluded.session_cookies,
       api_token = excluded.api_token,
       bearer_token = excluded.bearer_token,
       date_modified = excluded.date_modified`,
			url, row.Kind, row.SessionCookies, row.APIToken, row.BearerToken, ts, ts)
		if isForeignKey(err) {
			return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("upsert scheme: %w", err)
		}
		return nil
	})
}

// ---- GroupStore ----

func (s *Store) AddGroup(ctx context.Context, g *domain.NotifyGroup) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notify_groups (name, site, date_created) VALUES (?, ?, ?)`,
			g.Name, g.SiteURL, g.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		for _, email := range g.Subscribers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO people (email_address) VALUES (?) ON CONFLICT DO NOTHING`, email); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO notify_group_emails (group_name, email_address) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				g.Name, email); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case isUnique(err):
		return fmt.Errorf("group %s: %w", g.Name, repo.ErrDuplicate)
	case isForeignKey(err):
		return fmt.Errorf("site %s: %w", g.SiteURL, repo.ErrNotFound)
	case err != nil:
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *Store) GroupsForSite(ctx context.Context, url string) ([]domain.NotifyGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT g.name, g.site, g.date_created, e.email_address
  FROM notify_groups g
  LEFT JOIN notify_group_emails e ON e.group_name = g.name
 WHERE g.site = ?
 ORDER BY g.name, e.email_address`, url)
	if err != nil {
		return nil, fmt.Errorf("groups for site: %w", err)
	}
	defer rows.Close()

	var out []domain.NotifyGroup
	for rows.Next() {
		var (
			g       domain.NotifyGroup
			created string
			email   sql.NullString
		)
		if err := rows.Scan(&g.Name, &g.SiteURL, &created, &email); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].Name != g.Name {
			g.CreatedAt = parseTime(created)
			out = append(out, g)
		}
		if email.Valid {
			last := &out[len(out)-1]
			last.Subscribers = append(last.Subscribers, email.String)
		}
	}
	return out, rows.Err()
}
