package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrSchemeConflict = errors.New("authentication scheme kind conflict")
)

// Ports implemented by the memory, postgres and sqlite adapters.
type SiteStore interface {
	// AddSite returns ErrDuplicate if the URL is already registered.
	AddSite(ctx context.Context, s *domain.Site) error
	ListSites(ctx context.Context) ([]domain.Site, error)
	// GetSite returns ErrNotFound for unknown URLs.
	GetSite(ctx context.Context, url string) (*domain.Site, error)
	SetStatus(ctx context.Context, url string, status domain.Status) error
	// DeleteSite removes the site with its scheme, stats and groups.
	DeleteSite(ctx context.Context, url string) error
}

type CredentialStore interface {
	// GetScheme returns nil, nil if the site has no scheme.
	GetScheme(ctx context.Context, url string) (*domain.AuthenticationScheme, error)
	// UpsertCredential creates the scheme on first call and overwrites the
	// matching slot afterwards. Switching kinds requires allowKindChange,
	// otherwise ErrSchemeConflict is returned.
	UpsertCredential(ctx context.Context, url string, cred domain.Credential, allowKindChange bool) error
}

type StatsLedger interface {
	// RecordOutcome increments exactly one counter for reachable/unreachable
	// outcomes and does nothing for ambiguous ones. Each call is atomic.
	RecordOutcome(ctx context.Context, url string, outcome domain.Outcome) error
	// GetStats creates the record on first lookup.
	GetStats(ctx context.Context, url string) (*domain.StatsRecord, error)
	ListStats(ctx context.Context) ([]domain.StatsRecord, error)
}

type GroupStore interface {
	AddGroup(ctx context.Context, g *domain.NotifyGroup) error
	GroupsForSite(ctx context.Context, url string) ([]domain.NotifyGroup, error)
}

// Store is everything a persistence adapter provides.
type Store interface {
	SiteStore
	CredentialStore
	StatsLedger
	GroupStore
	Close() error
}

// CheckKindChange returns ErrSchemeConflict when a stored scheme would switch
// kind without the caller asking for it. Adapters share it.
func CheckKindChange(existing domain.AuthKind, next domain.Credential, allowKindChange bool) error {
	if existing == domain.KindNone || existing == next.Kind() || allowKindChange {
		return nil
	}
	return fmt.Errorf("%w: stored %s, got %s", ErrSchemeConflict, existing, next.Kind())
}
