package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/probe"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

// ErrConfiguration marks a site that requires authentication but has no
// usable stored credential.
var ErrConfiguration = errors.New("site requires authentication but has no usable scheme")

// Notifier accepts a downtime alert without blocking.
type Notifier interface {
	Enqueue(siteURL string) bool
}

type Coordinator struct {
	Logger      *zap.Logger
	Sites       repo.SiteStore
	Credentials repo.CredentialStore
	Ledger      repo.StatsLedger
	Prober      probe.Prober
	Notifier    Notifier
	Timeout     time.Duration
	Concurrency int

	// one sweep at a time
	mu sync.Mutex
}

func NewCoordinator(
	logger *zap.Logger,
	store repo.Store,
	prober probe.Prober,
	notifier Notifier,
	timeout time.Duration,
	concurrency int,
) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		Logger:      logger,
		Sites:       store,
		Credentials: store,
		Ledger:      store,
		Prober:      prober,
		Notifier:    notifier,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// siteResult is the per-site contribution to a Summary.
type siteResult struct {
	outcome       domain.Outcome
	misconfigured bool
	failed        bool
	notified      bool
}

// RunSweep checks every registered site once. It always completes: per-site
// failures are logged and counted, never returned.
func (c *Coordinator) RunSweep(ctx context.Context) (sum Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum = Summary{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := c.Logger.With(zap.String("sweep_id", sum.ID))
	defer func() {
		sum.DurationMS = time.Since(sum.StartedAt).Milliseconds()
		log.Info("sweep_done",
			zap.Int("sites", sum.Sites),
			zap.Int("up", sum.Up),
			zap.Int("down", sum.Down),
			zap.Int("ambiguous", sum.Ambiguous),
			zap.Int("misconfigured", sum.Misconfigured),
			zap.Int("errors", sum.Errors),
			zap.Int64("duration_ms", sum.DurationMS),
		)
	}()

	sites, err := c.Sites.ListSites(ctx)
	if err != nil {
		log.Error("sweep_list_error", zap.Error(err))
		sum.Errors++
		return sum
	}
	sum.Sites = len(sites)
	if len(sites) == 0 {
		return sum
	}

	results := make([]siteResult, len(sites))
	var g errgroup.Group
	g.SetLimit(c.Concurrency)
	for i, site := range sites {
		i, site := i, site
		g.Go(func() error {
			results[i] = c.checkSite(ctx, log, site)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch r.outcome {
		case domain.OutcomeReachable:
			sum.Up++
		case domain.OutcomeUnreachable:
			sum.Down++
		default:
			sum.Ambiguous++
		}
		if r.misconfigured {
			sum.Misconfigured++
		}
		if r.failed {
			sum.Errors++
		}
		if r.notified {
			sum.Notified++
		}
	}
	return sum
}

func (c *Coordinator) checkSite(ctx context.Context, log *zap.Logger, site domain.Site) (res siteResult) {
	log = log.With(zap.String("site", site.URL))
	defer func() {
		if p := recover(); p != nil {
			log.Error("sweep_site_panic", zap.Any("panic", p))
			res = siteResult{outcome: domain.OutcomeAmbiguous, failed: true}
		}
	}()

	cred, err := c.resolveCredential(ctx, site)
	if err != nil {
		log.Warn("sweep_site_misconfigured", zap.Error(err))
		res = siteResult{outcome: domain.OutcomeUnreachable, misconfigured: true}
	} else {
		pctx, cancel := context.WithTimeout(ctx, c.Timeout)
		out := c.Prober.Probe(pctx, site.URL, cred)
		cancel()
		if ctx.Err() != nil {
			// shutting down: the failed probe says nothing about the site
			log.Info("sweep_site_abandoned", zap.Error(ctx.Err()))
			return siteResult{outcome: domain.OutcomeAmbiguous, failed: true}
		}
		res.outcome = out.Outcome

		fields := []zap.Field{
			zap.Int("status", out.StatusCode),
			zap.Float64("latency_ms", out.LatencyMS),
			zap.String("outcome", out.Outcome.String()),
			zap.String("reason", out.Message),
		}
		switch {
		case out.NetworkError:
			dns := probe.Diagnose(ctx, site.URL)
			fields = append(fields, zap.String("dns", string(dns.Class)))
			log.Warn("sweep_site_network_error", fields...)
		case out.Outcome == domain.OutcomeAmbiguous:
			log.Warn("sweep_ambiguous", fields...)
		default:
			log.Debug("sweep_site_checked", fields...)
		}
	}

	if err := c.Ledger.RecordOutcome(ctx, site.URL, res.outcome); err != nil {
		log.Error("sweep_record_error", zap.Error(err))
		res.failed = true
	}
	if status, ok := res.outcome.Status(); ok {
		if err := c.Sites.SetStatus(ctx, site.URL, status); err != nil {
			log.Error("sweep_status_error", zap.Error(err))
			res.failed = true
		}
	}
	if res.outcome == domain.OutcomeUnreachable && c.Notifier != nil {
		res.notified = c.Notifier.Enqueue(site.URL)
	}
	return res
}

func (c *Coordinator) resolveCredential(ctx context.Context, site domain.Site) (domain.Credential, error) {
	if !site.RequiresAuthentication {
		return nil, nil
	}
	scheme, err := c.Credentials.GetScheme(ctx, site.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !scheme.Usable() {
		return nil, ErrConfiguration
	}
	return scheme.Credential, nil
}
