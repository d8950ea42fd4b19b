package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/repo"
)

// Job is one pending downtime alert. Attempts counts sends tried so far.
type Job struct {
	SiteURL    string
	Attempts   int
	MaxRetries int
}

type Options struct {
	From         string
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 100
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

// Dispatcher hands downtime alerts to a fixed pool of workers. Enqueue never
// blocks the caller; a full queue drops the alert.
type Dispatcher struct {
	log       *zap.Logger
	groups    repo.GroupStore
	transport Transport
	opts      Options

	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	start  sync.Once
}

func NewDispatcher(log *zap.Logger, groups repo.GroupStore, transport Transport, opts Options) *Dispatcher {
	opts.defaults()
	return &Dispatcher{
		log:       log,
		groups:    groups,
		transport: transport,
		opts:      opts,
		queue:     make(chan Job, opts.QueueSize),
	}
}

// Start launches the workers. Jobs run with contexts derived from ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.start.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				for job := range d.queue {
					d.process(ctx, job)
				}
			}()
		}
		d.log.Info("notify_started", zap.Int("workers", d.opts.Workers), zap.Int("queue", d.opts.QueueSize))
	})
}

// Stop refuses new jobs, drains the queue and waits for the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	d.log.Info("notify_stopped")
}

func (d *Dispatcher) Enqueue(siteURL string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notify_dropped", zap.String("site", siteURL), zap.String("reason", "stopped"))
		return false
	}
	select {
	case d.queue <- Job{SiteURL: siteURL, MaxRetries: d.opts.MaxRetries}:
		return true
	default:
		d.log.Warn("notify_dropped", zap.String("site", siteURL), zap.String("reason", "queue_full"))
		return false
	}
}

func (d *Dispatcher) process(parent context.Context, job Job) {
	ctx, cancel := context.WithTimeout(parent, d.opts.Timeout)
	defer cancel()

	err := d.deliver(ctx, &job)
	switch {
	case errors.Is(err, ErrNoRecipients):
		d.log.Info("notify_no_recipients", zap.String("site", job.SiteURL))
	case err != nil:
		d.log.Error("notify_failed",
			zap.String("site", job.SiteURL),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		)
	default:
		d.log.Info("notify_sent", zap.String("site", job.SiteURL), zap.Int("attempts", job.Attempts))
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job *Job) error {
	groups, err := d.groups.GroupsForSite(ctx, job.SiteURL)
	if err != nil {
		return fmt.Errorf("resolve groups: %w", err)
	}
	var recipients []string
	for _, g := range groups {
		recipients = append(recipients, g.Subscribers...)
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	msg := DowntimeMessage(job.SiteURL, d.opts.From, recipients)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.opts.RetryBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(job.MaxRetries)), ctx)

	return backoff.RetryNotify(func() error {
		job.Attempts++
		return d.transport.Send(ctx, msg)
	}, policy, func(err error, wait time.Duration) {
		d.log.Warn("notify_retry",
			zap.String("site", job.SiteURL),
			zap.Int("attempt", job.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}
