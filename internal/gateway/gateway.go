// Package gateway exposes the catalog over HTTP: JSON channel queries,
// playlist and guide exports, a stream proxy, health, and metrics.
package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/chancat/internal/catalog"
	"github.com/snapetech/chancat/internal/export"
	"github.com/snapetech/chancat/internal/httpclient"
	"github.com/snapetech/chancat/internal/metrics"
	"github.com/snapetech/chancat/internal/safeurl"
	"github.com/snapetech/chancat/internal/store"
)

const defaultPageSize = 100

// Server answers catalog queries from the store. Guide, when set, backs
// /guide.xml.
type Server struct {
	Store *store.Store
	Guide *catalog.GuideData
}

// Router builds the HTTP API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/channels", s.handleChannels)
	r.Get("/channels/count", s.handleCount)
	r.Get("/playlist.m3u", s.handlePlaylist)
	r.Get("/guide.xml", s.handleGuide)
	r.Get("/stream", s.handleStream)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

// filterFromQuery maps request query parameters onto a store filter.
// Unparseable reachable/guide values are reported, not ignored.
func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Name:       q.Get("name"),
		Group:      q.Get("group"),
		Resolution: q.Get("resolution"),
	}
	if v := q.Get("reachable"); v != "" {
		state := catalog.ParseReachability(v)
		if state == catalog.ReachUnknown && !strings.EqualFold(strings.TrimSpace(v), "unknown") {
			return f, fmt.Errorf("bad reachable value %q", v)
		}
		f.Reachable = &state
	}
	if v := q.Get("guide"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, err
		}
		f.HasGuideData = &b
	}
	return f, nil
}

func pageFromQuery(r *http.Request) (limit, offset int) {
	limit, offset = defaultPageSize, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

type channelsResponse struct {
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Channels []catalog.Channel `json:"channels"`
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, offset := pageFromQuery(r)
	total, err := s.Store.Count(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	channels, err := s.Store.Query(r.Context(), f, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []catalog.Channel{}
	}
	writeJSON(w, channelsResponse{Total: total, Limit: limit, Offset: offset, Channels: channels})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	total, err := s.Store.Count(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"total": total})
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	channels, err := s.Store.Query(r.Context(), f, -1, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := export.WritePlaylist(w, channels); err != nil {
		log.Printf("gateway: playlist write: %v", err)
	}
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if err := export.WriteGuide(w, s.Guide); err != nil {
		log.Printf("gateway: guide write: %v", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.Count(r.Context(), store.Filter{}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// handleStream proxies the upstream stream named by ?url= to the client,
// forwarding Range and passing through the upstream content headers.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	if !safeurl.IsHTTPOrHTTPS(target) {
		http.Error(w, "unsupported url scheme", http.StatusBadRequest)
		return
	}
	client := httpclient.Default()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}
	resp, err := client.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	for _, k := range []string{"Content-Length", "Content-Type", "Accept-Ranges"} {
		if v := resp.Header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("gateway: json encode: %v", err)
	}
}
