package httpclient

import (
	"net/url"
	"sync"
)

// HostSemaphore is a per-host concurrency limiter. The fetcher's directory
// size checks and the validator's probes can fan out hundreds of requests;
// without a per-host cap they would all land on the same upstream at once.
//
// Usage: acquire before sending a request, release when the response arrives.
//
//	release := sem.Acquire(candidateURL)
//	defer release()
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// NewHostSemaphore returns a limiter allowing up to concurrency in-flight
// requests per scheme+host.
func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for rawURL's host and returns a
// release func. The full URL may be passed; only scheme+host is keyed on.
func (h *HostSemaphore) Acquire(rawURL string) func() {
	sem := h.semFor(rawURL)
	sem <- struct{}{}
	return func() { <-sem }
}

func (h *HostSemaphore) semFor(rawURL string) chan struct{} {
	// Normalise: strip path/query, keep scheme+host.
	if u, err := url.Parse(rawURL); err == nil {
		rawURL = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[rawURL]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[rawURL] = s
	}
	h.mu.Unlock()
	return s
}
