package merge

import (
	"sort"
	"strings"
	"unicode"

	"github.com/snapetech/chancat/internal/catalog"
)

// Guides merges guide documents in source-priority order. Channel metadata is
// first-seen-wins (later sources only fill missing display names / logo);
// program lists are unioned and deduplicated by (channel, start, stop).
func Guides(guides ...*catalog.GuideData) *catalog.GuideData {
	out := &catalog.GuideData{Programs: make(map[string][]catalog.Program)}
	chanIdx := make(map[string]int)
	type progKey struct{ channel, start, stop string }
	seenProg := make(map[progKey]struct{})

	for _, g := range guides {
		if g == nil {
			continue
		}
		for _, ch := range g.Channels {
			idx, seen := chanIdx[ch.ID]
			if !seen {
				chanIdx[ch.ID] = len(out.Channels)
				out.Channels = append(out.Channels, ch)
				continue
			}
			kept := &out.Channels[idx]
			if len(kept.DisplayNames) == 0 {
				kept.DisplayNames = ch.DisplayNames
			}
			if kept.LogoURL == "" {
				kept.LogoURL = ch.LogoURL
			}
		}
		for id, progs := range g.Programs {
			for _, p := range progs {
				k := progKey{channel: id, start: p.Start, stop: p.Stop}
				if _, dup := seenProg[k]; dup {
					continue
				}
				seenProg[k] = struct{}{}
				out.Programs[id] = append(out.Programs[id], p)
			}
		}
	}
	for id := range out.Programs {
		progs := out.Programs[id]
		sort.SliceStable(progs, func(i, j int) bool { return progs[i].Start < progs[j].Start })
	}
	return out
}

// MatchMethod records which strategy linked a channel to a guide id. Kept in
// the diagnostics report only, never persisted.
type MatchMethod string

const (
	MatchIDExact    MatchMethod = "id_exact"
	MatchIDCaseFold MatchMethod = "id_casefold"
	MatchIDStripped MatchMethod = "id_stripped"
	MatchIDBase     MatchMethod = "id_base"
	MatchName       MatchMethod = "name_heuristic"
)

// Report summarises a LinkGuide pass.
type Report struct {
	Total   int
	Matched int
	Methods map[MatchMethod]int
}

// guideIndex holds the precomputed lookup tiers for one merged guide.
type guideIndex struct {
	exact    map[string]struct{}
	casefold map[string]struct{}
	stripped map[string]struct{}
	base     map[string]struct{}
	// normalized display name → unique guide id; "" marks ambiguity
	names map[string]string
}

func buildGuideIndex(guide *catalog.GuideData) *guideIndex {
	idx := &guideIndex{
		exact:    make(map[string]struct{}),
		casefold: make(map[string]struct{}),
		stripped: make(map[string]struct{}),
		base:     make(map[string]struct{}),
		names:    make(map[string]string),
	}
	for _, ch := range guide.Channels {
		id := strings.TrimSpace(ch.ID)
		if id == "" {
			continue
		}
		lower := strings.ToLower(id)
		idx.exact[id] = struct{}{}
		idx.casefold[lower] = struct{}{}
		idx.stripped[stripSpace(lower)] = struct{}{}
		idx.base[baseID(lower)] = struct{}{}
		for _, n := range append([]string{id}, ch.DisplayNames...) {
			nk := NormalizeName(n)
			if nk == "" {
				continue
			}
			if existing, ok := idx.names[nk]; ok && existing != id {
				idx.names[nk] = "" // ambiguous
				continue
			}
			idx.names[nk] = id
		}
	}
	return idx
}

// LinkGuide sets HasGuideData on each channel by matching its guide id
// against the merged guide, trying exact, case-insensitive,
// whitespace-stripped, and dot-delimited-base id forms before falling back
// to a normalized-name heuristic. The returned Report is diagnostic only.
func LinkGuide(channels []catalog.Channel, guide *catalog.GuideData) Report {
	rep := Report{Total: len(channels), Methods: make(map[MatchMethod]int)}
	if guide == nil {
		return rep
	}
	idx := buildGuideIndex(guide)
	for i := range channels {
		method, ok := idx.match(&channels[i])
		channels[i].HasGuideData = ok
		if ok {
			rep.Matched++
			rep.Methods[method]++
		}
	}
	return rep
}

func (idx *guideIndex) match(ch *catalog.Channel) (MatchMethod, bool) {
	id := strings.TrimSpace(ch.GuideID)
	if id != "" {
		if _, ok := idx.exact[id]; ok {
			return MatchIDExact, true
		}
		lower := strings.ToLower(id)
		if _, ok := idx.casefold[lower]; ok {
			return MatchIDCaseFold, true
		}
		if _, ok := idx.stripped[stripSpace(lower)]; ok {
			return MatchIDStripped, true
		}
		if _, ok := idx.base[baseID(lower)]; ok {
			return MatchIDBase, true
		}
	}
	for _, name := range []string{ch.GuideName, ch.Name} {
		nk := NormalizeName(name)
		if nk == "" {
			continue
		}
		if gid, ok := idx.names[nk]; ok && gid != "" {
			return MatchName, true
		}
	}
	return "", false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// baseID returns the id up to the first dot ("cnn.us" → "cnn").
func baseID(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// NormalizeName reduces a channel name to a deterministic matching token:
// punctuation and spacing collapse, quality/region noise tokens drop, and
// the result lowercases to a single joined string.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	toks := strings.Fields(b.String())
	if len(toks) == 0 {
		return ""
	}
	noise := map[string]struct{}{
		"hd": {}, "uhd": {}, "fhd": {}, "sd": {}, "4k": {},
		"us": {}, "usa": {}, "uk": {}, "ca": {}, "canada": {},
		"hq": {}, "vip": {}, "backup": {}, "raw": {},
	}
	out := toks[:0]
	for _, t := range toks {
		if _, drop := noise[t]; drop {
			continue
		}
		out = append(out, t)
	}
	joined := strings.Join(out, "")
	joined = strings.ReplaceAll(joined, "channel", "")
	return joined
}
