package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Reachability is the tri-state probe result for a channel URL. Unknown means
// the channel has never been probed; it is structurally distinct from a probe
// that ran and failed.
type Reachability int

const (
	ReachUnknown Reachability = 0
	Reachable    Reachability = 1
	Unreachable  Reachability = 2
)

func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ParseReachability maps a string ("true"/"false"/"reachable"/...) to a
// Reachability. Anything unrecognised is Unknown.
func ParseReachability(s string) Reachability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "reachable", "up", "working":
		return Reachable
	case "false", "unreachable", "down", "dead":
		return Unreachable
	default:
		return ReachUnknown
	}
}

// Channel is one live channel in the catalog. URL is the identity key: after
// a merge no two channels share a URL, and a persisted channel never has an
// empty URL.
type Channel struct {
	URL          string       `json:"url"`
	Name         string       `json:"name"`
	Group        string       `json:"group,omitempty"`
	GuideID      string       `json:"guide_id,omitempty"`
	GuideName    string       `json:"guide_name,omitempty"`
	LogoURL      string       `json:"logo_url,omitempty"`
	HasGuideData bool         `json:"has_guide_data"`
	Reachable    Reachability `json:"reachable"`
	Resolution   string       `json:"resolution,omitempty"`   // free text; bucketed at query time
	ContentType  string       `json:"content_type,omitempty"` // free text classification
	LastUpdated  time.Time    `json:"last_updated"`
}

// Program is one guide entry for a channel. Start/Stop keep the source's
// XMLTV timestamp text; the engine never needs to do date math on them.
type Program struct {
	Start       string `json:"start"`
	Stop        string `json:"stop"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// GuideChannel is a channel declaration from a guide document.
type GuideChannel struct {
	ID           string   `json:"id"`
	DisplayNames []string `json:"display_names,omitempty"`
	LogoURL      string   `json:"logo_url,omitempty"`
}

// GuideData holds one parsed (or merged) guide document. Programs is keyed by
// channel id and ordered; a consumer that only needs presence can use
// HasChannel without touching Programs (rich mode never regresses the
// presence-flag mode).
type GuideData struct {
	Channels []GuideChannel       `json:"channels"`
	Programs map[string][]Program `json:"programs,omitempty"`
}

// HasChannel reports whether id is declared in the guide (exact match).
func (g *GuideData) HasChannel(id string) bool {
	for _, ch := range g.Channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}

// Snapshot is the merged channel set plus refresh bookkeeping, serialized as
// a JSON artifact for consumers that do not read the SQL store.
type Snapshot struct {
	mu          sync.RWMutex
	Channels    []Channel `json:"channels"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Replace swaps in a freshly merged channel set.
func (s *Snapshot) Replace(channels []Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Channels = channels
	s.RefreshedAt = time.Now().UTC()
}

// List returns a copy of the current channel set.
func (s *Snapshot) List() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, len(s.Channels))
	copy(out, s.Channels)
	return out
}

// SetReachable updates the channel with the given URL. Returns true when the
// channel was found. Safe to call concurrently with Save/List.
func (s *Snapshot) SetReachable(url string, r Reachability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Channels {
		if s.Channels[i].URL == url {
			s.Channels[i].Reachable = r
			return true
		}
	}
	return false
}

// Save writes the snapshot to path as JSON using a temp-file-then-rename
// strategy so readers never see a partially-written file.
func (s *Snapshot) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".channels-*.json.tmp")
	if err != nil {
		return fmt.Errorf("snapshot save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("snapshot save: write: %w", writeErr)
		}
		return fmt.Errorf("snapshot save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot save: rename: %w", err)
	}
	return nil
}

// Load replaces the snapshot with the contents of path (JSON).
func (s *Snapshot) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var out struct {
		Channels    []Channel `json:"channels"`
		RefreshedAt time.Time `json:"refreshed_at"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Channels = out.Channels
	s.RefreshedAt = out.RefreshedAt
	return nil
}
