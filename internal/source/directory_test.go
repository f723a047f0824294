package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// directoryServer serves a fake listing page plus the files it links to.
// sizes maps file name → body size; names not in sizes 404.
func directoryServer(t *testing.T, sizes map[string]int) *httptest.Server {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><body><h1>Index of /epg</h1><ul>")
	for name := range sizes {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, name, name)
	}
	b.WriteString(`<li><a href="../">Parent</a></li><li><a href="readme.txt">readme.txt</a></li>`)
	b.WriteString("</ul></body></html>")
	listing := b.String()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/epg/" {
			fmt.Fprint(w, listing)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/epg/")
		size, ok := sizes[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body := "<tv>" + strings.Repeat("x", size) + "</tv>"
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, body)
	}))
}

func TestListCandidates_patternsAndRelativeURLs(t *testing.T) {
	srv := directoryServer(t, map[string]int{
		"us.xml":    100,
		"uk.xml.gz": 100,
		"notes.md":  100,
	})
	defer srv.Close()

	f := newFetcher(t, time.Hour)
	f.Client = srv.Client()
	got, err := f.listCandidates(context.Background(), srv.URL+"/epg/", []string{"*.xml", "*.xml.gz"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		srv.URL + "/epg/us.xml":    true,
		srv.URL + "/epg/uk.xml.gz": true,
	}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v", got)
	}
	for _, u := range got {
		if !want[u] {
			t.Errorf("unexpected candidate %s", u)
		}
	}
}

func TestSelectLargest_topNOfThoseAboveThreshold(t *testing.T) {
	// 15 candidates: 3 below the 1000-byte threshold, 12 above.
	sizes := make(map[string]int, 15)
	for i := 1; i <= 12; i++ {
		sizes[fmt.Sprintf("big%02d.xml", i)] = 1000 + i*100
	}
	for i := 1; i <= 3; i++ {
		sizes[fmt.Sprintf("tiny%d.xml", i)] = 10
	}
	srv := directoryServer(t, sizes)
	defer srv.Close()

	f := newFetcher(t, time.Hour)
	f.Client = srv.Client()
	candidates, err := f.listCandidates(context.Background(), srv.URL+"/epg/", []string{"*.xml"})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 15 {
		t.Fatalf("expected 15 candidates; got %d", len(candidates))
	}

	// Bodies are wrapped in <tv></tv>, so threshold compares against size+9.
	picked := f.selectLargest(context.Background(), candidates, 1000, 10)
	if len(picked) != 10 {
		t.Fatalf("expected the 10 largest of the 12 above threshold; got %d", len(picked))
	}
	// The two smallest of the big files (big01, big02) must be cut.
	for _, u := range picked {
		if strings.Contains(u, "tiny") || strings.Contains(u, "big01.") || strings.Contains(u, "big02.") {
			t.Errorf("picked %s; want only the 10 largest", u)
		}
	}
	// Descending size order: first pick is the largest file.
	if !strings.Contains(picked[0], "big12") {
		t.Errorf("picked[0] = %s; want big12", picked[0])
	}
}

func TestSelectLargest_unreachableCandidatesDropped(t *testing.T) {
	srv := directoryServer(t, map[string]int{"a.xml": 5000})
	defer srv.Close()

	f := newFetcher(t, time.Hour)
	f.Client = srv.Client()
	urls := []string{srv.URL + "/epg/a.xml", srv.URL + "/epg/missing.xml"}
	picked := f.selectLargest(context.Background(), urls, 1000, 10)
	if len(picked) != 1 || !strings.Contains(picked[0], "a.xml") {
		t.Errorf("picked = %v", picked)
	}
}
