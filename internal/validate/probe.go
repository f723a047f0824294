package validate

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/chancat/internal/httpclient"
	"github.com/snapetech/chancat/internal/metrics"
)

// ProbePolicy tunes what counts as a live stream. The zero value uses the
// built-in content-type list and a 4KiB readability check.
type ProbePolicy struct {
	// ContentTypes are substrings that mark a response as a stream without
	// reading the body.
	ContentTypes []string
	// ChunkBytes is how much of the body to attempt to read when the
	// content type is inconclusive.
	ChunkBytes int
}

var defaultContentTypes = []string{
	"mpegurl", "m3u8", "mp2t", "dash+xml",
	"video/", "audio/", "application/octet-stream",
}

func (p ProbePolicy) contentTypes() []string {
	if len(p.ContentTypes) > 0 {
		return p.ContentTypes
	}
	return defaultContentTypes
}

func (p ProbePolicy) chunkBytes() int {
	if p.ChunkBytes > 0 {
		return p.ChunkBytes
	}
	return 4 * 1024
}

// probeStream issues a GET against streamURL and reports whether it looks
// like a live stream: any 2xx status, and either a streaming content type or
// a body that yields at least one byte within the timeout.
func probeStream(ctx context.Context, client *http.Client, streamURL string, timeout time.Duration, policy ProbePolicy) bool {
	start := time.Now()
	ok := doProbe(ctx, client, streamURL, timeout, policy)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if ok {
		metrics.Probes.WithLabelValues("reachable").Inc()
	} else {
		metrics.Probes.WithLabelValues("unreachable").Inc()
	}
	return ok
}

func doProbe(ctx context.Context, client *http.Client, streamURL string, timeout time.Duration, policy ProbePolicy) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	for _, marker := range policy.contentTypes() {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	// Inconclusive content type: a stream that actually delivers bytes
	// still counts.
	n, _ := io.ReadFull(resp.Body, make([]byte, policy.chunkBytes()))
	return n > 0
}
