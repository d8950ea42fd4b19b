package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	sites   map[string]*domain.Site
	schemes map[string]*domain.AuthenticationScheme
	stats   map[string]*domain.StatsRecord
	groups  map[string]*domain.NotifyGroup
}

func New() *Store {
	return &Store{
		sites:   make(map[string]*domain.Site),
		schemes: make(map[string]*domain.AuthenticationScheme),
		stats:   make(map[string]*domain.StatsRecord),
		groups:  make(map[string]*domain.NotifyGroup),
	}
}

func (m *Store) Close() error { return nil }

// ---- SiteStore ----

func (m *Store) AddSite(ctx context.Context, s *domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[s.URL]; ok {
		return fmt.Errorf("site %s: %w", s.URL, repo.ErrDuplicate)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = domain.StatusUnknown
	}
	cp := *s
	m.sites[s.URL] = &cp
	return nil
}

func (m *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b domain.Site) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *Store) GetSite(ctx context.Context, url string) (*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[url]
	if !ok {
		return nil, fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *Store) SetStatus(ctx context.Context, url string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[url]
	if !ok {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	s.Status = status
	return nil
}

func (m *Store) DeleteSite(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[url]; !ok {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	delete(m.sites, url)
	delete(m.schemes, url)
	delete(m.stats, url)
	for name, g := range m.groups {
		if g.SiteURL == url {
			delete(m.groups, name)
		}
	}
	return nil
}

// ensureSite mirrors the lazy get-or-create of sites referenced by stats.
// Caller holds m.mu.
func (m *Store) ensureSite(url string, now time.Time) {
	if _, ok := m.sites[url]; !ok {
		m.sites[url] = &domain.Site{URL: url, Status: domain.StatusUnknown, CreatedAt: now}
	}
}

// ---- CredentialStore ----

func (m *Store) GetScheme(ctx context.Context, url string) (*domain.AuthenticationScheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.schemes[url]
	if !ok {
		return nil, nil
	}
	cp := *sc
	cp.Credential = cloneCredential(sc.Credential)
	return &cp, nil
}

func (m *Store) UpsertCredential(ctx context.Context, url string, cred domain.Credential, allowKindChange bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[url]; !ok {
		return fmt.Errorf("site %s: %w", url, repo.ErrNotFound)
	}
	now := time.Now().UTC()
	sc, ok := m.schemes[url]
	if !ok {
		m.schemes[url] = &domain.AuthenticationScheme{
			SiteURL:    url,
			Credential: cloneCredential(cred),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return nil
	}
	if err := repo.CheckKindChange(sc.Kind(), cred, allowKindChange); err != nil {
		return fmt.Errorf("site %s: %w", url, err)
	}
	sc.Credential = cloneCredential(cred)
	sc.UpdatedAt = now
	return nil
}

func cloneCredential(c domain.Credential) domain.Credential {
	if s, ok := c.(domain.SessionCredential); ok {
		return domain.SessionCredential{Cookies: maps.Clone(s.Cookies)}
	}
	return c
}

// ---- StatsLedger ----

func (m *Store) RecordOutcome(ctx context.Context, url string, outcome domain.Outcome) error {
	if outcome != domain.OutcomeReachable && outcome != domain.OutcomeUnreachable {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.statsLocked(url)
	if outcome == domain.OutcomeReachable {
		rec.UpCount++
	} else {
		rec.DownCount++
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Store) GetStats(ctx context.Context, url string) (*domain.StatsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.statsLocked(url)
	return &cp, nil
}

func (m *Store) statsLocked(url string) *domain.StatsRecord {
	rec, ok := m.stats[url]
	if !ok {
		now := time.Now().UTC()
		m.ensureSite(url, now)
		rec = &domain.StatsRecord{SiteURL: url, CreatedAt: now, UpdatedAt: now}
		m.stats[url] = rec
	}
	return rec
}

func (m *Store) ListStats(ctx context.Context) ([]domain.StatsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.StatsRecord, 0, len(m.stats))
	for _, r := range m.stats {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b domain.StatsRecord) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// ---- GroupStore ----

func (m *Store) AddGroup(ctx context.Context, g *domain.NotifyGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[g.Name]; ok {
		return fmt.Errorf("group %s: %w", g.Name, repo.ErrDuplicate)
	}
	if _, ok := m.sites[g.SiteURL]; !ok {
		return fmt.Errorf("site %s: %w", g.SiteURL, repo.ErrNotFound)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	cp := *g
	cp.Subscribers = slices.Clone(g.Subscribers)
	m.groups[g.Name] = &cp
	return nil
}

func (m *Store) GroupsForSite(ctx context.Context, url string) ([]domain.NotifyGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.NotifyGroup
	for _, g := range m.groups {
		if g.SiteURL != url {
			continue
		}
		cp := *g
		cp.Subscribers = slices.Clone(g.Subscribers)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b domain.NotifyGroup) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

var _ repo.Store = (*Store)(nil)
