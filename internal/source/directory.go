package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/snapetech/chancat/internal/httpclient"
)

// candidate is one file discovered on a directory listing page.
type candidate struct {
	URL  string
	Size int64
}

// listCandidates fetches a directory listing page and returns the hrefs whose
// basename matches any of the glob patterns, resolved against the page URL.
func (f *Fetcher) listCandidates(ctx context.Context, listURL string, patterns []string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.DoWithRetry(ctx, f.Client, req, f.Retry)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing %s: %s", listURL, resp.Status)
	}

	base, err := url.Parse(listURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", listURL, err)
	}

	var out []string
	seen := make(map[string]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" || a.Val == "" {
					continue
				}
				ref, err := base.Parse(a.Val)
				if err != nil {
					continue
				}
				if !matchesAny(path.Base(ref.Path), patterns) {
					continue
				}
				abs := ref.String()
				if _, dup := seen[abs]; dup {
					continue
				}
				seen[abs] = struct{}{}
				out = append(out, abs)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func matchesAny(name string, patterns []string) bool {
	name = strings.ToLower(name)
	for _, p := range patterns {
		if ok, err := path.Match(strings.ToLower(p), name); err == nil && ok {
			return true
		}
	}
	return false
}

// selectLargest sizes every candidate concurrently (HEAD, per-host bounded),
// drops those below minSize, and returns the topN largest URLs in descending
// size order. Larger guide dumps are assumed more complete.
func (f *Fetcher) selectLargest(ctx context.Context, urls []string, minSize int64, topN int) []string {
	sized := make([]candidate, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			release := f.HostSem.Acquire(u)
			defer release()
			sized[i] = candidate{URL: u, Size: f.contentLength(ctx, u)}
		}(i, u)
	}
	wg.Wait()

	kept := sized[:0]
	for _, c := range sized {
		if c.Size >= minSize {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Size > kept[j].Size })
	if len(kept) > topN {
		kept = kept[:topN]
	}
	out := make([]string, len(kept))
	for i, c := range kept {
		out[i] = c.URL
	}
	return out
}

// contentLength HEADs u and returns its Content-Length, or -1 on any failure
// (treated as below every threshold).
func (f *Fetcher) contentLength(ctx context.Context, u string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return -1
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}
	return resp.ContentLength
}
