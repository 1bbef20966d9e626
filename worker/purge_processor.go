package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arunvm123/ticketinventory/invalidation"
	messaging "github.com/arunvm123/ticketinventory/messaging/kafka"
	"github.com/arunvm123/ticketinventory/metrics"
	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the processor needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Purger performs a bounded purge of wire-format key patterns.
type Purger interface {
	PurgeStrings(ctx context.Context, patterns []string) invalidation.PurgeResult
}

// PurgeProcessor consumes purge retries and runs them on a fixed worker pool.
// A purge that fails again goes back on the topic until MaxRedeliveries, after
// which the entry is left to expire by TTL.
type PurgeProcessor struct {
	reader      MessageReader
	purger      Purger
	republisher invalidation.RetrySink

	maxRedeliveries int
	backoff         time.Duration

	// Worker pool for managing goroutines
	workerPool chan chan kafka.Message
	workers    []*PurgeWorker
	running    sync.WaitGroup

	// Metrics
	processedCount atomic.Int64
	activeWorkers  atomic.Int64
}

type PurgeWorker struct {
	id         int
	processor  *PurgeProcessor
	jobChannel chan kafka.Message
	workerPool chan chan kafka.Message
	quit       chan struct{}
}

type Options struct {
	MaxWorkers      int
	MaxRedeliveries int
	// Backoff is slept per previous attempt before a redelivered purge runs.
	Backoff time.Duration
}

func NewPurgeProcessor(reader MessageReader, purger Purger, republisher invalidation.RetrySink, opts Options) *PurgeProcessor {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 8
	}
	if opts.MaxRedeliveries <= 0 {
		opts.MaxRedeliveries = 5
	}

	processor := &PurgeProcessor{
		reader:          reader,
		purger:          purger,
		republisher:     republisher,
		maxRedeliveries: opts.MaxRedeliveries,
		backoff:         opts.Backoff,
		workerPool:      make(chan chan kafka.Message, opts.MaxWorkers),
		workers:         make([]*PurgeWorker, opts.MaxWorkers),
	}

	for i := 0; i < opts.MaxWorkers; i++ {
		processor.workers[i] = &PurgeWorker{
			id:         i,
			processor:  processor,
			jobChannel: make(chan kafka.Message),
			workerPool: processor.workerPool,
			quit:       make(chan struct{}),
		}
	}

	return processor
}

// Start reads purge requests until ctx ends, then stops the pool.
func (p *PurgeProcessor) Start(ctx context.Context) error {
	zlog.Info().Int("workers", len(p.workers)).Msg("starting purge processor")

	for _, worker := range p.workers {
		worker.start()
	}
	go p.reportMetrics(ctx)
	defer p.shutdown()

	for {
		msg, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			zlog.Error().Err(err).Msg("error reading purge message")
			continue
		}

		// Dispatch to worker pool (blocks if all workers busy)
		select {
		case jobChannel := <-p.workerPool:
			select {
			case jobChannel <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *PurgeWorker) start() {
	w.processor.running.Add(1)
	go func() {
		defer w.processor.running.Done()
		for {
			// Register this worker in the pool
			select {
			case w.workerPool <- w.jobChannel:
			case <-w.quit:
				return
			}

			select {
			case job := <-w.jobChannel:
				w.processor.activeWorkers.Add(1)
				if err := w.processor.process(job); err != nil {
					zlog.Warn().Err(err).Int("worker", w.id).Msg("purge message failed")
				}
				w.processor.processedCount.Add(1)
				w.processor.activeWorkers.Add(-1)

			case <-w.quit:
				zlog.Debug().Int("worker", w.id).Msg("purge worker shutting down")
				return
			}
		}
	}()
}

func (p *PurgeProcessor) shutdown() {
	zlog.Info().Msg("shutting down purge workers")
	for _, worker := range p.workers {
		close(worker.quit)
	}

	done := make(chan struct{})
	go func() {
		p.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		zlog.Info().Int64("processed", p.processedCount.Load()).Msg("all purge workers finished")
	case <-time.After(30 * time.Second):
		zlog.Warn().Msg("purge worker shutdown timed out")
	}
}

func (p *PurgeProcessor) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			zlog.Info().
				Int64("processed", p.processedCount.Load()).
				Int64("active_workers", p.activeWorkers.Load()).
				Msg("purge processor metrics")
		}
	}
}

// process runs one purge request. Undecodable messages are dropped.
func (p *PurgeProcessor) process(msg kafka.Message) error {
	req, err := messaging.DecodePurgeRequest(msg)
	if err != nil {
		metrics.RecordWorkerMessage("invalid")
		return err
	}

	if p.backoff > 0 && req.Attempts > 0 {
		time.Sleep(p.backoff * time.Duration(req.Attempts))
	}

	res := p.purger.PurgeStrings(context.Background(), req.Patterns)
	if res.OK() {
		metrics.RecordWorkerMessage("ok")
		zlog.Debug().Strs("patterns", req.Patterns).Int64("deleted", res.Deleted).Msg("purge retry succeeded")
		return nil
	}

	return p.redeliver(req, res)
}

func (p *PurgeProcessor) redeliver(req model.PurgeRequest, res invalidation.PurgeResult) error {
	req.Attempts++
	if req.Attempts >= p.maxRedeliveries || p.republisher == nil {
		metrics.RecordWorkerMessage("dropped")
		zlog.Error().Err(res.Err).Strs("patterns", req.Patterns).Int("attempts", req.Attempts).
			Msg("giving up on purge, entries expire by TTL")
		return res.Err
	}

	failed := make([]string, len(res.Failed))
	for i, f := range res.Failed {
		failed[i] = f.String()
	}
	req.Patterns = failed
	req.FailedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.republisher.PublishPurge(ctx, req); err != nil {
		metrics.RecordWorkerMessage("dropped")
		return err
	}
	metrics.RecordWorkerMessage("requeued")
	return nil
}
