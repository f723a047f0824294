// Package validate probes catalog stream URLs concurrently and reports
// per-channel reachability as the probes finish.
package validate

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/chancat/internal/catalog"
	"github.com/snapetech/chancat/internal/httpclient"
	"github.com/snapetech/chancat/internal/safeurl"
)

// Result is one channel's probe outcome.
type Result struct {
	URL       string
	State     catalog.Reachability
	FromCache bool
}

// Progress is emitted once per finished probe. Completed counts results
// emitted so far (this one included); Total is fixed for the whole run.
type Progress struct {
	Completed int
	Total     int
	Record    Result
}

// Summary aggregates a finished run.
type Summary struct {
	Total       int
	Reachable   int
	Unreachable int
	FromCache   int
}

// Validator probes channel URLs with a bounded worker pool. Fields may be
// left zero; Run falls back to defaults. A Validator is single-use.
type Validator struct {
	Client      *http.Client
	Concurrency int
	Timeout     time.Duration
	// BatchSize bounds how many channels are dispatched before the pool
	// drains; batches run sequentially so a Stop never strands more than
	// one batch of in-flight work.
	BatchSize int
	Policy    ProbePolicy
	// Limiter, when set, paces probe starts across all workers.
	Limiter  *rate.Limiter
	Cache    *ProbeCache
	CacheTTL time.Duration

	initOnce sync.Once
	stopOnce sync.Once
	stop     chan struct{}
}

const (
	defaultConcurrency = 10
	defaultTimeout     = 8 * time.Second
	defaultBatchSize   = 200
)

// Stop asks a running validation to wind down: no new probes are dispatched,
// probes already in flight run to completion and still produce progress
// records. Safe to call from any goroutine, any number of times.
func (v *Validator) Stop() {
	v.init()
	v.stopOnce.Do(func() { close(v.stop) })
}

func (v *Validator) init() {
	v.initOnce.Do(func() { v.stop = make(chan struct{}) })
}

// Run probes every URL and streams progress on the returned channel, which
// closes when the run finishes (all probed, Stop drained, or ctx done).
// Every record carries a terminal state: unknown never appears in a Result.
// Cancelling ctx abandons the run: pending records are discarded so workers
// never block on a consumer that has gone away. Stop, by contrast, keeps
// every in-flight record.
func (v *Validator) Run(ctx context.Context, urls []string) <-chan Progress {
	v.init()
	client := v.Client
	if client == nil {
		client = httpclient.Default()
	}
	concurrency := v.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	batchSize := v.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	out := make(chan Progress, concurrency)
	total := len(urls)
	completed := 0
	var emitMu sync.Mutex

	// One critical section per emit so Completed values arrive in order.
	// Cancelled runs drop the record instead of blocking forever on an
	// abandoned channel.
	emit := func(r Result) {
		emitMu.Lock()
		defer emitMu.Unlock()
		completed++
		select {
		case out <- Progress{Completed: completed, Total: total, Record: r}:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

	batches:
		for start := 0; start < len(urls); start += batchSize {
			end := start + batchSize
			if end > len(urls) {
				end = len(urls)
			}
			for _, u := range urls[start:end] {
				select {
				case <-v.stop:
					break batches
				case <-ctx.Done():
					break batches
				default:
				}

				if v.Cache != nil && v.CacheTTL > 0 {
					if state, fresh := v.Cache.Fresh(u, v.CacheTTL); fresh {
						emit(Result{URL: u, State: state, FromCache: true})
						continue
					}
				}
				if !safeurl.IsHTTPOrHTTPS(u) {
					emit(Result{URL: u, State: catalog.Unreachable})
					continue
				}

				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					break batches
				}
				wg.Add(1)
				go func(u string) {
					defer wg.Done()
					defer func() { <-sem }()
					if v.Limiter != nil {
						if err := v.Limiter.Wait(ctx); err != nil {
							emit(Result{URL: u, State: catalog.Unreachable})
							return
						}
					}
					state := catalog.Unreachable
					if probeStream(ctx, client, u, timeout, v.Policy) {
						state = catalog.Reachable
					}
					if v.Cache != nil {
						v.Cache.Put(u, state)
					}
					emit(Result{URL: u, State: state})
				}(u)
			}
			// Drain the pool before the next batch.
			wg.Wait()
		}
		wg.Wait()
	}()
	return out
}

// Summarize drains a progress channel into a Summary.
func Summarize(progress <-chan Progress) Summary {
	var s Summary
	for p := range progress {
		s.Total++
		switch p.Record.State {
		case catalog.Reachable:
			s.Reachable++
		case catalog.Unreachable:
			s.Unreachable++
		}
		if p.Record.FromCache {
			s.FromCache++
		}
	}
	return s
}
