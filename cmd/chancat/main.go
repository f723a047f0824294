// Command chancat builds and serves a merged IPTV channel catalog.
//
//	refresh   Fetch all configured sources, merge, link guide data, persist
//	validate  Probe stream URLs and record per-channel reachability
//	export    Write the catalog as an M3U playlist or XMLTV guide
//	query     Filter and page through the stored catalog
//	serve     HTTP API: channel queries, playlist/guide exports, metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/chancat/internal/catalog"
	"github.com/snapetech/chancat/internal/config"
	"github.com/snapetech/chancat/internal/export"
	"github.com/snapetech/chancat/internal/gateway"
	"github.com/snapetech/chancat/internal/httpclient"
	"github.com/snapetech/chancat/internal/merge"
	"github.com/snapetech/chancat/internal/normalize"
	"github.com/snapetech/chancat/internal/source"
	"github.com/snapetech/chancat/internal/store"
	"github.com/snapetech/chancat/internal/validate"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[chancat] ")

	refreshCmd := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshSources := refreshCmd.String("sources", "", "YAML source descriptors (default: CHANCAT_SOURCES_FILE or built-ins)")
	refreshGuide := refreshCmd.String("guide", "guide.xml", "Where to write the merged XMLTV guide")

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateName := validateCmd.String("name", "", "Only probe channels whose name matches (supports AND/OR/NOT)")
	validateGroup := validateCmd.String("group", "", "Only probe channels in matching groups (a|b|c for any-of)")
	validateAll := validateCmd.Bool("all", false, "Probe every channel, not just the never-probed ones")
	validateVerbose := validateCmd.Bool("v", false, "Log every probe result")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportFormat := exportCmd.String("format", "m3u", "Output format: m3u or xmltv")
	exportOut := exportCmd.String("o", "", "Output file (default: stdout)")
	exportName := exportCmd.String("name", "", "Name filter (supports AND/OR/NOT)")
	exportGroup := exportCmd.String("group", "", "Group filter (a|b|c for any-of)")
	exportGuideFile := exportCmd.String("guide", "guide.xml", "Guide file written by refresh (xmltv format only)")

	queryCmd := flag.NewFlagSet("query", flag.ExitOnError)
	queryName := queryCmd.String("name", "", "Name filter (supports AND/OR/NOT)")
	queryGroup := queryCmd.String("group", "", "Group filter (a|b|c for any-of)")
	queryResolution := queryCmd.String("resolution", "", "Quality bucket: SD, HD, FHD or 4K")
	queryReachable := queryCmd.String("reachable", "", "Probe state: reachable, unreachable or unknown")
	queryGuideOnly := queryCmd.Bool("guide-only", false, "Only channels with linked guide data")
	queryCount := queryCmd.Bool("count", false, "Print the match count only")
	queryJSON := queryCmd.Bool("json", false, "Print channels as JSON")
	queryLimit := queryCmd.Int("limit", 50, "Page size (-1 = everything)")
	queryOffset := queryCmd.Int("offset", 0, "Page offset")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: CHANCAT_LISTEN_ADDR)")
	serveGuideFile := serveCmd.String("guide", "guide.xml", "Guide file written by refresh")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <refresh|validate|export|query|serve> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  refresh   Fetch sources, merge, link guide, persist catalog\n")
		fmt.Fprintf(os.Stderr, "  validate  Probe stream URLs, record reachability\n")
		fmt.Fprintf(os.Stderr, "  export    Write the catalog as M3U or XMLTV\n")
		fmt.Fprintf(os.Stderr, "  query     Filter and page through the stored catalog\n")
		fmt.Fprintf(os.Stderr, "  serve     HTTP API over the stored catalog\n")
		os.Exit(1)
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "refresh":
		_ = refreshCmd.Parse(os.Args[2:])
		sourcesFile := *refreshSources
		if sourcesFile == "" {
			sourcesFile = cfg.SourcesFile
		}
		if err := runRefresh(ctx, cfg, sourcesFile, *refreshGuide); err != nil {
			log.Printf("Refresh failed: %v", err)
			os.Exit(1)
		}

	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		f := store.Filter{Name: *validateName, Group: *validateGroup}
		if !*validateAll {
			unknown := catalog.ReachUnknown
			f.Reachable = &unknown
		}
		if err := runValidate(ctx, cfg, f, *validateVerbose); err != nil {
			log.Printf("Validate failed: %v", err)
			os.Exit(1)
		}

	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		f := store.Filter{Name: *exportName, Group: *exportGroup}
		if err := runExport(ctx, cfg, *exportFormat, *exportOut, *exportGuideFile, f); err != nil {
			log.Printf("Export failed: %v", err)
			os.Exit(1)
		}

	case "query":
		_ = queryCmd.Parse(os.Args[2:])
		f := store.Filter{Name: *queryName, Group: *queryGroup, Resolution: *queryResolution}
		if *queryReachable != "" {
			state := catalog.ParseReachability(*queryReachable)
			f.Reachable = &state
		}
		if *queryGuideOnly {
			yes := true
			f.HasGuideData = &yes
		}
		if err := runQuery(ctx, cfg, f, *queryCount, *queryJSON, *queryLimit, *queryOffset); err != nil {
			log.Printf("Query failed: %v", err)
			os.Exit(1)
		}

	case "serve":
		_ = serveCmd.Parse(os.Args[2:])
		addr := *serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		if err := runServe(ctx, cfg, addr, *serveGuideFile); err != nil {
			log.Printf("Serve failed: %v", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand %q\n", os.Args[1])
		os.Exit(1)
	}
}

// runRefresh is the full catalog pipeline: fetch every source, parse, merge,
// link guide data, then persist to the database, JSON snapshot and guide file.
func runRefresh(ctx context.Context, cfg *config.Config, sourcesFile, guidePath string) error {
	sources := source.DefaultDescriptors()
	if sourcesFile != "" {
		loaded, err := source.LoadDescriptors(sourcesFile)
		if err != nil {
			return fmt.Errorf("load sources: %w", err)
		}
		sources = loaded
	}
	cache, err := source.NewCache(cfg.CacheDir, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	fetcher := &source.Fetcher{
		Client:      httpclient.WithTimeout(cfg.FetchTimeout),
		Cache:       cache,
		HostSem:     httpclient.NewHostSemaphore(cfg.PerHostRequests),
		Retry:       httpclient.DefaultRetryPolicy,
		Concurrency: cfg.FetchConcurrency,
		MinSize:     cfg.DirectoryMinSize,
		TopN:        cfg.DirectoryTopN,
	}
	docs, err := fetcher.FetchAll(ctx, sources)
	if err != nil {
		return err
	}

	var lists [][]catalog.Channel
	var guides []*catalog.GuideData
	for _, doc := range docs {
		switch doc.Source.Kind {
		case source.KindPlaylist:
			channels, err := normalize.ParsePlaylist(strings.NewReader(doc.Text))
			if err != nil {
				log.Printf("refresh[%s]: parse %s: %v", doc.Source.Name, doc.URL, err)
				continue
			}
			log.Printf("refresh[%s]: %d channels from %s (cache=%v)", doc.Source.Name, len(channels), doc.URL, doc.FromCache)
			lists = append(lists, channels)
		case source.KindGuide:
			guide, err := normalize.ParseGuide(strings.NewReader(doc.Text))
			if err != nil {
				log.Printf("refresh[%s]: parse %s: %v", doc.Source.Name, doc.URL, err)
				continue
			}
			log.Printf("refresh[%s]: guide with %d channels from %s", doc.Source.Name, len(guide.Channels), doc.URL)
			guides = append(guides, guide)
		}
	}
	if len(lists) == 0 && len(guides) == 0 {
		return fmt.Errorf("%w: no fetched document parsed", source.ErrAllSourcesFailed)
	}

	merged := merge.Channels(lists...)
	guide := merge.Guides(guides...)
	rep := merge.LinkGuide(merged, guide)
	log.Printf("Merged %d channels; guide-linked %d/%d %v", len(merged), rep.Matched, rep.Total, rep.Methods)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Upsert(ctx, merged); err != nil {
		return err
	}
	if err := st.SetMeta(ctx, "last_refresh", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	if cfg.SnapshotPath != "" {
		snap := catalog.NewSnapshot()
		snap.Replace(merged)
		if err := snap.Save(cfg.SnapshotPath); err != nil {
			log.Printf("Snapshot save failed: %v", err)
		} else {
			log.Printf("Snapshot written to %s", cfg.SnapshotPath)
		}
	}
	if guidePath != "" && len(guide.Channels) > 0 {
		if err := writeGuideFile(guidePath, guide); err != nil {
			log.Printf("Guide write failed: %v", err)
		} else {
			log.Printf("Guide written to %s (%d channels)", guidePath, len(guide.Channels))
		}
	}
	log.Printf("Catalog refreshed: %d channels in %s", len(merged), cfg.DBPath)
	return nil
}

func writeGuideFile(path string, guide *catalog.GuideData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteGuide(f, guide); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runValidate(ctx context.Context, cfg *config.Config, f store.Filter, verbose bool) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	channels, err := st.Query(ctx, f, -1, 0)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		log.Print("Nothing to probe")
		return nil
	}
	urls := make([]string, len(channels))
	for i, ch := range channels {
		urls[i] = ch.URL
	}

	v := &validate.Validator{
		Client:      httpclient.WithTimeout(cfg.ProbeTimeout),
		Concurrency: cfg.ProbeConcurrency,
		Timeout:     cfg.ProbeTimeout,
		BatchSize:   cfg.ProbeBatchSize,
		Cache:       validate.LoadProbeCache(cfg.ProbeCacheFile),
		CacheTTL:    cfg.ProbeCacheTTL,
	}
	if cfg.ProbeRatePerSec > 0 {
		v.Limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRatePerSec), cfg.ProbeConcurrency)
	}
	// First interrupt winds the run down cleanly; in-flight probes finish
	// and are still recorded.
	go func() {
		<-ctx.Done()
		v.Stop()
	}()
	// A cancellable run context so an early error return below releases the
	// probe workers instead of stranding them on the progress channel.
	probeCtx, cancelProbes := context.WithCancel(context.Background())
	defer cancelProbes()

	log.Printf("Probing %d channels (concurrency %d, timeout %v)", len(urls), cfg.ProbeConcurrency, cfg.ProbeTimeout)
	var sum validate.Summary
	for p := range v.Run(probeCtx, urls) {
		sum.Total++
		switch p.Record.State {
		case catalog.Reachable:
			sum.Reachable++
		case catalog.Unreachable:
			sum.Unreachable++
		}
		if p.Record.FromCache {
			sum.FromCache++
		}
		// Background context: results from in-flight probes must still be
		// recorded after an interrupt.
		if err := st.SetReachable(context.Background(), p.Record.URL, p.Record.State); err != nil {
			return err
		}
		if verbose {
			log.Printf("[%d/%d] %s %s", p.Completed, p.Total, p.Record.State, p.Record.URL)
		} else if p.Completed%100 == 0 {
			log.Printf("[%d/%d]", p.Completed, p.Total)
		}
	}
	if err := v.Cache.Save(cfg.ProbeCacheFile); err != nil {
		log.Printf("Probe cache save failed: %v", err)
	}
	log.Printf("Probed %d: %d reachable, %d unreachable (%d from cache)",
		sum.Total, sum.Reachable, sum.Unreachable, sum.FromCache)
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, format, outPath, guideFile string, f store.Filter) error {
	out := os.Stdout
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	switch format {
	case "m3u":
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		channels, err := st.Query(ctx, f, -1, 0)
		if err != nil {
			return err
		}
		return export.WritePlaylist(out, channels)
	case "xmltv":
		guide, err := loadGuideFile(guideFile)
		if err != nil {
			return err
		}
		return export.WriteGuide(out, guide)
	default:
		return fmt.Errorf("unknown format %q (want m3u or xmltv)", format)
	}
}

func loadGuideFile(path string) (*catalog.GuideData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open guide (run refresh first?): %w", err)
	}
	defer file.Close()
	return normalize.ParseGuide(file)
}

func runQuery(ctx context.Context, cfg *config.Config, f store.Filter, countOnly, asJSON bool, limit, offset int) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	total, err := st.Count(ctx, f)
	if err != nil {
		return err
	}
	if countOnly {
		fmt.Println(total)
		return nil
	}
	channels, err := st.Query(ctx, f, limit, offset)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(channels)
	}
	for _, ch := range channels {
		marks := ""
		if ch.HasGuideData {
			marks += " epg"
		}
		if ch.Reachable != catalog.ReachUnknown {
			marks += " " + ch.Reachable.String()
		}
		fmt.Printf("%-40s %-16s %-6s%s\n", truncate(ch.Name, 40), truncate(ch.Group, 16), ch.Resolution, marks)
	}
	fmt.Printf("-- %d of %d (offset %d)\n", len(channels), total, offset)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func runServe(ctx context.Context, cfg *config.Config, addr, guideFile string) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var guide *catalog.GuideData
	if g, err := loadGuideFile(guideFile); err == nil {
		guide = g
		log.Printf("Guide loaded from %s (%d channels)", guideFile, len(g.Channels))
	} else {
		log.Printf("No guide available: %v", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: (&gateway.Server{Store: st, Guide: guide}).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
