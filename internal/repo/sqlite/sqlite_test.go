package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "data", "sweep.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Sites(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: "https://a.example", RequiresAuthentication: true}))
	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: "https://b.example"}))
	require.ErrorIs(t, store.AddSite(ctx, &domain.Site{URL: "https://a.example"}), repo.ErrDuplicate)

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 2)

	require.NoError(t, store.SetStatus(ctx, "https://a.example", domain.StatusUp))
	got, err := store.GetSite(ctx, "https://a.example")
	require.NoError(t, err)
	assert.True(t, got.RequiresAuthentication)
	assert.Equal(t, domain.StatusUp, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = store.GetSite(ctx, "https://missing.example")
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.ErrorIs(t, store.SetStatus(ctx, "https://missing.example", domain.StatusDown), repo.ErrNotFound)
}

func TestSQLiteStore_DeleteSiteCascades(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := "https://gone.example"

	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: url, RequiresAuthentication: true}))
	require.NoError(t, store.UpsertCredential(ctx, url, domain.TokenCredential{Token: "abc"}, false))
	require.NoError(t, store.RecordOutcome(ctx, url, domain.OutcomeReachable))
	require.NoError(t, store.AddGroup(ctx, &domain.NotifyGroup{Name: "ops", SiteURL: url, Subscribers: []string{"a@x.io"}}))

	require.NoError(t, store.DeleteSite(ctx, url))
	_, err := store.GetSite(ctx, url)
	require.ErrorIs(t, err, repo.ErrNotFound)
	sc, err := store.GetScheme(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, sc)
	gs, err := store.GroupsForSite(ctx, url)
	require.NoError(t, err)
	assert.Empty(t, gs)
	all, err := store.ListStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.ErrorIs(t, store.DeleteSite(ctx, url), repo.ErrNotFound)
}

func TestSQLiteStore_Credentials(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := "https://app.example"
	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: url, RequiresAuthentication: true}))

	sc, err := store.GetScheme(ctx, url)
	require.NoError(t, err)
	require.Nil(t, sc)

	session := domain.SessionCredential{Cookies: map[string]string{"sessionid": "s1", "csrftoken": "c1"}}
	require.NoError(t, store.UpsertCredential(ctx, url, session, false))

	sc, err = store.GetScheme(ctx, url)
	require.NoError(t, err)
	require.Equal(t, domain.KindSession, sc.Kind())
	require.Equal(t, session, sc.Credential)

	err = store.UpsertCredential(ctx, url, domain.BearerCredential{Token: "jwt"}, false)
	require.ErrorIs(t, err, repo.ErrSchemeConflict)

	require.NoError(t, store.UpsertCredential(ctx, url, domain.BearerCredential{Token: "jwt"}, true))
	sc, err = store.GetScheme(ctx, url)
	require.NoError(t, err)
	require.Equal(t, domain.BearerCredential{Token: "jwt"}, sc.Credential)

	err = store.UpsertCredential(ctx, "https://unregistered.example", domain.TokenCredential{Token: "x"}, false)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestSQLiteStore_LedgerCountsEveryIncrement(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := "https://ledger.example"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.RecordOutcome(ctx, url, domain.OutcomeReachable))
		}()
	}
	wg.Wait()
	require.NoError(t, store.RecordOutcome(ctx, url, domain.OutcomeUnreachable))
	require.NoError(t, store.RecordOutcome(ctx, url, domain.OutcomeAmbiguous))

	rec, err := store.GetStats(ctx, url)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.UpCount)
	assert.EqualValues(t, 1, rec.DownCount)

	// the ledger created the site lazily
	site, err := store.GetSite(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, site.Status)

	all, err := store.ListStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSQLiteStore_Groups(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: "https://a.example"}))

	require.NoError(t, store.AddGroup(ctx, &domain.NotifyGroup{
		Name: "ops", SiteURL: "https://a.example", Subscribers: []string{"a@x.io", "b@x.io"},
	}))
	require.NoError(t, store.AddGroup(ctx, &domain.NotifyGroup{
		Name: "oncall", SiteURL: "https://a.example", Subscribers: []string{"a@x.io"},
	}))
	require.ErrorIs(t, store.AddGroup(ctx, &domain.NotifyGroup{Name: "ops", SiteURL: "https://a.example"}), repo.ErrDuplicate)
	require.ErrorIs(t, store.AddGroup(ctx, &domain.NotifyGroup{Name: "x", SiteURL: "https://nope"}), repo.ErrNotFound)

	gs, err := store.GroupsForSite(ctx, "https://a.example")
	require.NoError(t, err)
	require.Len(t, gs, 2)
	assert.Equal(t, "oncall", gs[0].Name)
	assert.Equal(t, []string{"a@x.io"}, gs[0].Subscribers)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, gs[1].Subscribers)
}
