package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arunvm123/ticketinventory/cache"
	"github.com/arunvm123/ticketinventory/metrics"
	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
)

// RetrySink receives purges that kept failing after all local attempts.
type RetrySink interface {
	PublishPurge(ctx context.Context, req model.PurgeRequest) error
}

// PurgeResult reports what a purge removed and which patterns it could not.
type PurgeResult struct {
	Deleted int64
	Failed  []KeyPattern
	Err     error
}

func (r PurgeResult) OK() bool { return len(r.Failed) == 0 }

type Options struct {
	Policy Policy

	// Timeout bounds one purge attempt. Keys not reached in time are left to TTL.
	Timeout       time.Duration
	Attempts      int
	Backoff       time.Duration
	ScanBatchSize int

	QueueSize int
	Workers   int

	// Async skips the inline first attempt in OnWriteCommitted and hands every
	// purge to the background pool.
	Async bool

	Sink RetrySink
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 500 * time.Millisecond
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 100 * time.Millisecond
	}
	if o.ScanBatchSize <= 0 {
		o.ScanBatchSize = 500
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

type purgeJob struct {
	cause    model.DomainEvent
	patterns []KeyPattern
	attempts int
}

// Coordinator turns committed writes into cache purges. Nothing it does can
// fail the write that triggered it.
type Coordinator struct {
	store cache.Store
	opts  Options

	mu      sync.RWMutex
	closed  bool
	jobs    chan purgeJob
	quit    chan struct{}
	workers sync.WaitGroup
	pending sync.WaitGroup
}

// NewCoordinator starts the background purge pool. Call Close to stop it.
func NewCoordinator(store cache.Store, opts Options) *Coordinator {
	c := &Coordinator{
		store: store,
		opts:  opts.withDefaults(),
		quit:  make(chan struct{}),
	}
	c.jobs = make(chan purgeJob, c.opts.QueueSize)

	for i := 0; i < c.opts.Workers; i++ {
		c.workers.Add(1)
		go c.work(i)
	}
	return c
}

func (c *Coordinator) RegisterWriteEffect(ev model.DomainEvent) []KeyPattern {
	return c.opts.Policy.RegisterWriteEffect(ev)
}

// Purge deletes exact keys in one call and each wildcard through a prefix scan.
// It never returns an error; failures are reported in the result.
func (c *Coordinator) Purge(ctx context.Context, patterns []KeyPattern) PurgeResult {
	var res PurgeResult
	if len(patterns) == 0 {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	start := time.Now()

	var exact []string
	var exactPatterns []KeyPattern
	var errs []error
	for _, p := range patterns {
		if !p.IsWildcard() {
			exact = append(exact, string(p))
			exactPatterns = append(exactPatterns, p)
		}
	}
	if len(exact) > 0 {
		n, err := c.store.Delete(ctx, exact...)
		res.Deleted += n
		if err != nil {
			res.Failed = append(res.Failed, exactPatterns...)
			errs = append(errs, fmt.Errorf("delete %v: %w", exact, err))
		}
	}

	for _, p := range patterns {
		if !p.IsWildcard() {
			continue
		}
		n, err := c.store.DeleteByPrefix(ctx, p.Prefix(), c.opts.ScanBatchSize)
		res.Deleted += n
		if err != nil {
			res.Failed = append(res.Failed, p)
			errs = append(errs, fmt.Errorf("scan %s: %w", p, err))
		}
	}
	res.Err = errors.Join(errs...)

	outcome := "ok"
	switch {
	case len(res.Failed) == len(patterns):
		outcome = "failed"
	case len(res.Failed) > 0:
		outcome = "partial"
	}
	metrics.RecordPurge(outcome, res.Deleted, time.Since(start))

	if res.OK() {
		zlog.Debug().Int("patterns", len(patterns)).Int64("deleted", res.Deleted).Msg("cache purged")
	} else {
		zlog.Warn().Err(res.Err).Str("outcome", outcome).Int("failed", len(res.Failed)).Msg("cache purge incomplete")
	}
	return res
}

// OnWriteCommitted is called after a store transaction commits. Unless Async
// is set it makes one bounded purge attempt inline so the caller's next read
// misses; anything left over is retried in the background.
func (c *Coordinator) OnWriteCommitted(ev model.DomainEvent) {
	patterns := c.RegisterWriteEffect(ev)
	if len(patterns) == 0 {
		return
	}

	job := purgeJob{cause: ev, patterns: patterns}
	if !c.opts.Async {
		res := c.Purge(context.Background(), patterns)
		if res.OK() {
			return
		}
		job.patterns = res.Failed
		job.attempts = 1
	}
	c.enqueue(job)
}

func (c *Coordinator) enqueue(job purgeJob) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		metrics.RecordPurgeDropped("closed")
		zlog.Warn().Str("cause", string(job.cause.Type)).Msg("purge dropped, coordinator closed")
		return
	}

	c.pending.Add(1)
	select {
	case c.jobs <- job:
	default:
		c.pending.Done()
		metrics.RecordPurgeDropped("queue_full")
		zlog.Warn().Str("cause", string(job.cause.Type)).Msg("purge queue full, relying on TTL")
	}
}

func (c *Coordinator) work(id int) {
	defer c.workers.Done()
	for job := range c.jobs {
		c.retry(job)
		c.pending.Done()
	}
	zlog.Debug().Int("worker", id).Msg("purge worker stopped")
}

func (c *Coordinator) retry(job purgeJob) {
	for job.attempts < c.opts.Attempts {
		if job.attempts > 0 {
			wait := c.opts.Backoff << (job.attempts - 1)
			select {
			case <-time.After(wait):
			case <-c.quit:
				c.handOff(job)
				return
			}
		}

		res := c.Purge(context.Background(), job.patterns)
		job.attempts++
		if res.OK() {
			return
		}
		job.patterns = res.Failed
	}
	c.handOff(job)
}

// handOff publishes a purge that exhausted local retries.
func (c *Coordinator) handOff(job purgeJob) {
	if c.opts.Sink == nil {
		metrics.RecordPurgeDropped("retries_exhausted")
		zlog.Warn().Str("cause", string(job.cause.Type)).Int("attempts", job.attempts).
			Msg("purge retries exhausted, relying on TTL")
		return
	}

	patterns := make([]string, len(job.patterns))
	for i, p := range job.patterns {
		patterns[i] = string(p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	err := c.opts.Sink.PublishPurge(ctx, model.PurgeRequest{
		Patterns: patterns,
		Cause:    job.cause,
		Attempts: job.attempts,
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		metrics.RecordPurgeDropped("sink_failed")
		zlog.Error().Err(err).Strs("patterns", patterns).Msg("failed to publish purge for retry")
	}
}

// Wait blocks until every queued purge has finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Close stops accepting purges and waits for the pool to drain or ctx to end.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.jobs)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(c.quit)
		<-done
		return ctx.Err()
	}
}

// PurgeStrings purges patterns received over the wire.
func (c *Coordinator) PurgeStrings(ctx context.Context, patterns []string) PurgeResult {
	kp := make([]KeyPattern, len(patterns))
	for i, p := range patterns {
		kp[i] = KeyPattern(p)
	}
	return c.Purge(ctx, kp)
}
