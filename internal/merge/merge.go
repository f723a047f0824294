package merge

import (
	"strings"
	"time"

	"github.com/snapetech/chancat/internal/catalog"
	"github.com/snapetech/chancat/internal/metrics"
)

// Channels merges channel lists from all successfully fetched sources into
// one deduplicated set keyed by URL. Lists must be passed in source-priority
// order: the first occurrence of a URL wins, and a later source only fills
// fields that are still empty (field-level fill, never full overwrite).
// Channels with an empty URL are dropped. Order of first appearance is kept.
func Channels(lists ...[]catalog.Channel) []catalog.Channel {
	byURL := make(map[string]int)
	var out []catalog.Channel
	now := time.Now().UTC()
	for _, list := range lists {
		for _, ch := range list {
			if strings.TrimSpace(ch.URL) == "" {
				continue
			}
			ch.Group = StandardizeGroup(ch.Group)
			idx, seen := byURL[ch.URL]
			if !seen {
				ch.LastUpdated = now
				byURL[ch.URL] = len(out)
				out = append(out, ch)
				continue
			}
			fillEmpty(&out[idx], ch)
		}
	}
	metrics.ChannelsMerged.Set(float64(len(out)))
	return out
}

// fillEmpty copies src fields into dst only where dst is still empty.
// Reachable is deliberately untouched: merge input always carries Unknown.
func fillEmpty(dst *catalog.Channel, src catalog.Channel) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Group == "" {
		dst.Group = src.Group
	}
	if dst.GuideID == "" {
		dst.GuideID = src.GuideID
	}
	if dst.GuideName == "" {
		dst.GuideName = src.GuideName
	}
	if dst.LogoURL == "" {
		dst.LogoURL = src.LogoURL
	}
	if dst.Resolution == "" {
		dst.Resolution = src.Resolution
	}
	if dst.ContentType == "" {
		dst.ContentType = src.ContentType
	}
}

// groupAliases maps lower-cased free-text group fragments to canonical group
// names. Playlists in the wild disagree on spelling ("sport", "Sports",
// "SPORTS HD"); queries work much better against one canonical set.
var groupAliases = []struct {
	fragment  string
	canonical string
}{
	{"news", "News"},
	{"sport", "Sports"},
	{"movie", "Movies"},
	{"cinema", "Movies"},
	{"kids", "Kids"},
	{"children", "Kids"},
	{"music", "Music"},
	{"documentar", "Documentary"},
	{"entertain", "Entertainment"},
}

// StandardizeGroup maps a free-text group title onto the canonical group set
// when a known fragment appears in it; unknown groups pass through trimmed.
func StandardizeGroup(group string) string {
	g := strings.TrimSpace(group)
	if g == "" {
		return ""
	}
	lower := strings.ToLower(g)
	for _, a := range groupAliases {
		if strings.Contains(lower, a.fragment) {
			return a.canonical
		}
	}
	return g
}
