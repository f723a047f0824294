package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/snapetech/chancat/internal/httpclient"
	"github.com/snapetech/chancat/internal/metrics"
	"github.com/snapetech/chancat/internal/normalize"
	"github.com/snapetech/chancat/internal/safeurl"
)

// ErrAllSourcesFailed is returned by FetchAll only when every configured
// source failed. Partial failure is a normal, non-error outcome.
var ErrAllSourcesFailed = errors.New("no sources reachable")

const maxDocumentBytes = 512 << 20 // hard cap per fetched document

// Document is one successfully fetched and decoded source document.
type Document struct {
	Source    Descriptor
	URL       string // the candidate URL that actually succeeded
	Text      string
	FromCache bool
}

// Fetcher retrieves documents from configured sources with bounded
// parallelism. All collaborators are injected so tests can run it against
// httptest servers and a temp-dir cache.
type Fetcher struct {
	Client      *http.Client
	Cache       *Cache // nil disables caching
	HostSem     *httpclient.HostSemaphore
	Retry       httpclient.RetryPolicy
	Concurrency int   // sources fetched in parallel
	MinSize     int64 // directory candidates below this are skipped
	TopN        int   // directory candidates fetched, largest first
}

// FetchAll fetches every source concurrently. Per-source failures are logged
// and contained; the returned documents are ordered by source priority. The
// error is non-nil only when all sources fail (ErrAllSourcesFailed) — callers
// can then distinguish "nothing reachable" from storage trouble downstream.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Descriptor) ([]Document, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	client := f.Client
	if client == nil {
		client = httpclient.Default()
	}
	f.Client = client
	if f.HostSem == nil {
		f.HostSem = httpclient.NewHostSemaphore(4)
	}
	concurrency := f.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	if f.TopN <= 0 {
		f.TopN = 10
	}

	ordered := make([]Descriptor, len(sources))
	copy(ordered, sources)
	sortByPriority(ordered)

	results := make([][]Document, len(ordered))
	errs := make([]error, len(ordered))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range ordered {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			results[i], errs[i] = f.fetchSource(ctx, ordered[i])
		}(i)
	}
	wg.Wait()

	var out []Document
	failed := 0
	for i, s := range ordered {
		if errs[i] != nil {
			failed++
			metrics.FetchFailures.WithLabelValues(s.Name).Inc()
			log.Printf("fetch[%s]: skipped: %v", s.Name, errs[i])
			continue
		}
		out = append(out, results[i]...)
	}
	if failed == len(ordered) {
		return nil, fmt.Errorf("%w: all %d sources failed", ErrAllSourcesFailed, len(ordered))
	}
	return out, nil
}

// fetchSource tries a source's candidate URLs in order (or, for a directory
// source, discovers and ranks candidates first). It succeeds as soon as one
// usable document is obtained.
func (f *Fetcher) fetchSource(ctx context.Context, s Descriptor) ([]Document, error) {
	metrics.FetchAttempts.WithLabelValues(s.Name).Inc()
	if s.IsDirectory {
		return f.fetchDirectory(ctx, s)
	}
	var lastErr error
	for _, u := range s.URLs {
		doc, err := f.fetchDocument(ctx, s, u)
		if err != nil {
			lastErr = err
			log.Printf("fetch[%s]: candidate %s failed: %v", s.Name, u, err)
			continue
		}
		return []Document{doc}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate urls")
	}
	return nil, lastErr
}

// fetchDirectory lists the directory page, keeps candidates matching the
// source's patterns and size threshold, and fetches the TopN largest. The
// source succeeds when at least one of them yields a usable document.
func (f *Fetcher) fetchDirectory(ctx context.Context, s Descriptor) ([]Document, error) {
	var lastErr error
	for _, listURL := range s.URLs {
		candidates, err := f.listCandidates(ctx, listURL, s.FilePatterns)
		if err != nil {
			lastErr = err
			continue
		}
		if len(candidates) == 0 {
			lastErr = fmt.Errorf("listing %s: no entries match patterns", listURL)
			continue
		}
		picked := f.selectLargest(ctx, candidates, f.MinSize, f.TopN)
		if len(picked) == 0 {
			lastErr = fmt.Errorf("listing %s: no candidates above size threshold", listURL)
			continue
		}
		var docs []Document
		for _, u := range picked {
			doc, err := f.fetchDocument(ctx, s, u)
			if err != nil {
				log.Printf("fetch[%s]: candidate %s failed: %v", s.Name, u, err)
				continue
			}
			docs = append(docs, doc)
		}
		if len(docs) > 0 {
			return docs, nil
		}
		lastErr = fmt.Errorf("listing %s: every selected candidate failed", listURL)
	}
	if lastErr == nil {
		lastErr = errors.New("no listing urls")
	}
	return nil, lastErr
}

// fetchDocument retrieves one candidate URL: cache first, then the network.
// The cache stores decompressed bytes, so decompression happens exactly once
// per TTL window.
func (f *Fetcher) fetchDocument(ctx context.Context, s Descriptor, u string) (Document, error) {
	if !safeurl.IsHTTPOrHTTPS(u) {
		return Document{}, fmt.Errorf("unsupported scheme: %s", u)
	}
	if f.Cache != nil {
		if data, ok := f.Cache.Get(u); ok {
			metrics.CacheHits.Inc()
			return Document{Source: s, URL: u, Text: normalize.DecodeText(data), FromCache: true}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	release := f.HostSem.Acquire(u)
	resp, err := httpclient.DoWithRetry(ctx, f.Client, req, f.Retry)
	release()
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("get %s: %s", u, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Document{}, fmt.Errorf("get %s: read: %w", u, err)
	}
	if len(raw) == 0 {
		return Document{}, fmt.Errorf("get %s: empty body", u)
	}

	data := normalize.Decompress(u, raw)
	text := normalize.DecodeText(data)
	if err := sanityCheck(s.Kind, text); err != nil {
		return Document{}, fmt.Errorf("get %s: %w", u, err)
	}
	if f.Cache != nil {
		if err := f.Cache.Put(u, data); err != nil {
			log.Printf("fetch[%s]: cache write failed: %v", s.Name, err)
		}
	}
	return Document{Source: s, URL: u, Text: text}, nil
}

// sanityCheck rejects bodies that cannot possibly parse as the source's kind
// (typically an HTML error page served with status 200).
func sanityCheck(kind Kind, text string) error {
	head := strings.TrimSpace(text)
	if len(head) > 256 {
		head = head[:256]
	}
	switch kind {
	case KindPlaylist:
		if !strings.Contains(head, "#EXT") {
			return errors.New("not an m3u document")
		}
	case KindGuide:
		if !strings.HasPrefix(head, "<") {
			return errors.New("not an xml document")
		}
	}
	return nil
}
