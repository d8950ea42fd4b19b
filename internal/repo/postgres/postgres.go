package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ---- SiteStore ----

func (s *Store) AddSite(ctx context.Context, site *domain.Site) error {
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	if site.Status == "" {
		site.Status = domain.StatusUnknown
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO websites (site, has_authentication, status, date_created)
		 VALUES ($1, $2, $3, $4)`,
		site.URL, site.RequiresAuthentication, string(site.Status), site.CreatedAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return fmt.Errorf("site %s: %w", site.URL, repo.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT site, has_authentication, status, date_created
		   FROM websites
		  ORDER BY date_created DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		var (
			site   domain.Site
			status string
		)
		if err := rows.Scan(&site.URL, &site.RequiresAuthentication, &status, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		site.Status = domain.Status(status)
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *Store) GetSite(ctx context.Context, url string) (*domain.Site, error) {
	var (
		site   domain.Site
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT site, has_authentication, status, date_created FROM websites WHERE site = $1`, url,
	).Scan(&site.URL, &site.RequiresAuthentication, &status, &site.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	site.Status = domain.Status(status)
	return &site, nil
}

func (s *Store) SetStatus(ctx context.Context, url string, status domain.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE websites SET status = $2 WHERE site = $1`, url, string(status))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSite(ctx context.Context, url string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM websites WHERE site = $1`, url)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	return nil
}

// ---- GroupStore ----

func (s *Store) AddGroup(ctx context.Context, g *domain.NotifyGroup) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO notify_groups (name, site, date_created) VALUES ($1, $2, $3)`,
			g.Name, g.SiteURL, g.CreatedAt); err != nil {
			return err
		}
		for _, email := range g.Subscribers {
			if _, err := tx.Exec(ctx,
				`INSERT INTO people (email_address) VALUES ($1) ON CONFLICT DO NOTHING`, email); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO notify_group_emails (group_name, email_address) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`, g.Name, email); err != nil {
				return err
			}
		}
		return nil
	})
	switch pgCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("group %s: %w", g.Name, repo.ErrDuplicate)
	case codeForeignKeyViolation:
		return fmt.Errorf("site %s: %w", g.SiteURL, repo.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *Store) GroupsForSite(ctx context.Context, url string) ([]domain.NotifyGroup, error) {
	rows, err := s.pool.Query(ctx, `
SELECT g.name, g.site, g.date_created, e.email_address
  FROM notify_groups g
  LEFT JOIN notify_group_emails e ON e.group_name = g.name
 WHERE g.site = $1
 ORDER BY g.name, e.email_address`, url)
	if err != nil {
		return nil, fmt.Errorf("groups for site: %w", err)
	}
	defer rows.Close()

	var out []domain.NotifyGroup
	for rows.Next() {
		var (
			g     domain.NotifyGroup
			email *string
		)
		if err := rows.Scan(&g.Name, &g.SiteURL, &g.CreatedAt, &email); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].Name != g.Name {
			out = append(out, g)
		}
		if email != nil {
			last := &out[len(out)-1]
			last.Subscribers = append(last.Subscribers, *email)
		}
	}
	return out, rows.Err()
}
