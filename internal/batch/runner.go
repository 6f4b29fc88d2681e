// Package batch fans a document list out over a bounded worker pool and
// collects per-document outcomes back in discovery order.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sheldon123z/invoice-ocr/internal/locate"
	"github.com/sheldon123z/invoice-ocr/internal/observability/metrics"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
	"github.com/sheldon123z/invoice-ocr/internal/provider"
)

// Processor runs one document to a terminal outcome.
type Processor interface {
	Process(ctx context.Context, doc locate.Document) pipeline.Outcome
}

// Progress reports one finished document. Index is the position in the
// discovery order, Done the number of documents finished so far.
type Progress struct {
	Index   int
	Done    int
	Total   int
	Outcome pipeline.Outcome
}

type Config struct {
	// Concurrency bounds the worker pool; values below 1 run sequentially.
	Concurrency int

	// RatePerSec caps provider calls across all workers; 0 disables the
	// limiter.
	RatePerSec float64
}

type Runner struct {
	proc     Processor
	cfg      Config
	metrics  *metrics.BatchMetrics
	provider string
	logger   *slog.Logger
}

func NewRunner(proc Processor, cfg Config, m *metrics.BatchMetrics, providerName string, logger *slog.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		proc:     proc,
		cfg:      cfg,
		metrics:  m,
		provider: providerName,
		logger:   logger,
	}
}

// Run processes every document and returns the outcomes re-sorted by
// discovery index, so concurrent completion order never leaks into
// reports. On cancellation the documents finished so far are returned
// together with the context's error; in-flight calls are not aborted,
// only no new documents are started.
//
// progress may be nil; when set, the caller must drain it.
func (r *Runner) Run(ctx context.Context, docs []locate.Document, progress chan<- Progress) ([]pipeline.Outcome, error) {
	results := make([]pipeline.Outcome, len(docs))
	processed := make([]bool, len(docs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	workers := r.cfg.Concurrency
	if workers > len(docs) && len(docs) > 0 {
		workers = len(docs)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if r.metrics != nil {
					r.metrics.StartDocument()
				}
				start := time.Now()
				out := r.proc.Process(ctx, docs[i])
				if r.metrics != nil {
					r.metrics.FinishDocument(r.provider, time.Since(start), len(out.Errors) > 0)
				}

				mu.Lock()
				results[i] = out
				processed[i] = true
				done++
				n := done
				mu.Unlock()

				if progress != nil {
					select {
					case progress <- Progress{Index: i, Done: n, Total: len(docs), Outcome: out}:
					case <-ctx.Done():
					}
				}
			}
		}()
	}

	var cancelErr error
dispatch:
	for i := range docs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelErr = ctx.Err()
			r.logger.Warn("batch.cancelled", "dispatched", i, "total", len(docs))
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	outs := make([]pipeline.Outcome, 0, len(docs))
	for i := range docs {
		if processed[i] {
			outs = append(outs, results[i])
		}
	}
	return outs, cancelErr
}

// limitedProvider gates Call on a shared rate limiter and records the
// call outcome.
type limitedProvider struct {
	inner   provider.Provider
	limiter *rate.Limiter
	metrics *metrics.BatchMetrics
	name    string
}

// LimitProvider wraps a provider with the batch-wide rate limit and call
// metrics. A zero rate returns the provider untouched except for metrics.
func LimitProvider(p provider.Provider, ratePerSec float64, m *metrics.BatchMetrics, name string) provider.Provider {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &limitedProvider{inner: p, limiter: limiter, metrics: m, name: name}
}

func (l *limitedProvider) Call(ctx context.Context, imagePath, instruction string) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	text, err := l.inner.Call(ctx, imagePath, instruction)
	if l.metrics != nil {
		l.metrics.ObserveProviderCall(l.name, err)
	}
	return text, err
}
