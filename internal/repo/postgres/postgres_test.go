package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	store, err := New(context.Background(), dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Use a unique URL per run to avoid UNIQUE(site) collisions with previous runs.
func uniqueURL(name string) string {
	return fmt.Sprintf("https://example.com/%s-%d", name, time.Now().UTC().UnixNano())
}

func TestPostgresStore_SitesAndStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := uniqueURL("site")

	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: url, RequiresAuthentication: true}))
	require.ErrorIs(t, store.AddSite(ctx, &domain.Site{URL: url}), repo.ErrDuplicate)

	require.NoError(t, store.SetStatus(ctx, url, domain.StatusDown))
	got, err := store.GetSite(ctx, url)
	require.NoError(t, err)
	require.True(t, got.RequiresAuthentication)
	require.Equal(t, domain.StatusDown, got.Status)

	_, err = store.GetSite(ctx, uniqueURL("missing"))
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestPostgresStore_DeleteSite(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := uniqueURL("delete")

	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: url, RequiresAuthentication: true}))
	require.NoError(t, store.UpsertCredential(ctx, url, domain.BearerCredential{Token: "jwt"}, false))
	require.NoError(t, store.DeleteSite(ctx, url))

	_, err := store.GetSite(ctx, url)
	require.ErrorIs(t, err, repo.ErrNotFound)
	sc, err := store.GetScheme(ctx, url)
	require.NoError(t, err)
	require.Nil(t, sc)
	require.ErrorIs(t, store.DeleteSite(ctx, url), repo.ErrNotFound)
}

func TestPostgresStore_CredentialUpsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := uniqueURL("creds")
	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: url, RequiresAuthentication: true}))

	sc, err := store.GetScheme(ctx, url)
	require.NoError(t, err)
	require.Nil(t, sc)

	cookies := domain.SessionCredential{Cookies: map[string]string{"sessionid": "s1"}}
	require.NoError(t, store.UpsertCredential(ctx, url, cookies, false))
	require.ErrorIs(t, store.UpsertCredential(ctx, url, domain.TokenCredential{Token: "abc"}, false), repo.ErrSchemeConflict)
	require.NoError(t, store.UpsertCredential(ctx, url, domain.TokenCredential{Token: "abc"}, true))

	sc, err = store.GetScheme(ctx, url)
	require.NoError(t, err)
	require.Equal(t, domain.TokenCredential{Token: "abc"}, sc.Credential)
}

func TestPostgresStore_ConcurrentRecordOutcome(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := uniqueURL("ledger")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.RecordOutcome(ctx, url, domain.OutcomeReachable))
		}()
	}
	wg.Wait()
	require.NoError(t, store.RecordOutcome(ctx, url, domain.OutcomeAmbiguous))

	rec, err := store.GetStats(ctx, url)
	require.NoError(t, err)
	require.EqualValues(t, 2, rec.UpCount)
	require.EqualValues(t, 0, rec.DownCount)
}

func TestPostgresStore_Groups(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	url := uniqueURL("groups")
	require.NoError(t, store.AddSite(ctx, &domain.Site{URL: url}))

	name := fmt.Sprintf("ops-%d", time.Now().UnixNano())
	require.NoError(t, store.AddGroup(ctx, &domain.NotifyGroup{
		Name: name, SiteURL: url, Subscribers: []string{"a@example.com", "b@example.com"},
	}))
	require.ErrorIs(t, store.AddGroup(ctx, &domain.NotifyGroup{Name: name, SiteURL: url}), repo.ErrDuplicate)

	gs, err := store.GroupsForSite(ctx, url)
	require.NoError(t, err)
	require.Len(t, gs, 1)
	require.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, gs[0].Subscribers)
}
