package normalize

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/snapetech/chancat/internal/catalog"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// ParsePlaylist reads an M3U document in a streaming fashion and returns its
// channels. A metadata (#EXTINF) line is buffered until the URL line that
// follows it; an orphaned metadata line (blank line, comment, or EOF before a
// URL) is dropped, not fatal.
func ParsePlaylist(r io.Reader) ([]catalog.Channel, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var out []catalog.Channel
	var extinf string
	now := time.Now().UTC()
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			extinf = line
			continue
		}
		if extinf != "" && isStreamURL(line) {
			out = append(out, channelFromEXTINF(extinf, line, now))
			extinf = ""
			continue
		}
		if !strings.HasPrefix(line, "#") {
			extinf = ""
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Format: "m3u", Err: err}
	}
	return out, nil
}

// ParsePlaylistBytes parses an M3U document from memory.
func ParsePlaylistBytes(data []byte) ([]catalog.Channel, error) {
	return ParsePlaylist(bytes.NewReader(data))
}

func isStreamURL(line string) bool {
	return strings.HasPrefix(line, "http://") ||
		strings.HasPrefix(line, "https://") ||
		strings.HasPrefix(line, "rtmp://") ||
		strings.HasPrefix(line, "/")
}

func channelFromEXTINF(extinf, url string, now time.Time) catalog.Channel {
	attrs := parseEXTINF(extinf)
	name := attrs["name"]
	if name == "" {
		name = attrs["tvg-name"]
	}
	return catalog.Channel{
		URL:         url,
		Name:        name,
		Group:       attrs["group-title"],
		GuideID:     attrs["tvg-id"],
		GuideName:   attrs["tvg-name"],
		LogoURL:     attrs["tvg-logo"],
		Resolution:  resolutionMarker(name),
		ContentType: contentTypeFromURL(url),
		LastUpdated: now,
	}
}

// parseEXTINF extracts key="value" attributes plus the trailing display name
// (after the last comma) from an #EXTINF line.
func parseEXTINF(line string) map[string]string {
	m := make(map[string]string)
	line = strings.TrimPrefix(line, "#EXTINF:")
	if idx := strings.LastIndex(line, ","); idx >= 0 && idx+1 < len(line) {
		m["name"] = strings.TrimSpace(line[idx+1:])
		line = line[:idx]
	}
	for {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			break
		}
		before := strings.TrimSpace(line[:eq])
		key := before
		if idx := strings.LastIndex(before, " "); idx >= 0 {
			key = strings.TrimSpace(before[idx+1:])
		}
		line = strings.TrimSpace(line[eq+1:])
		if len(line) < 2 {
			break
		}
		quote := line[0]
		if quote != '"' && quote != '\'' {
			break
		}
		line = line[1:]
		end := strings.IndexByte(line, quote)
		if end < 0 {
			break
		}
		m[key] = line[:end]
		line = line[end+1:]
	}
	return m
}

// resolutionMarker pulls the first recognised quality token out of a channel
// name ("BBC One FHD", "ESPN 720p"). Stored as free text; the store buckets
// it at query time.
func resolutionMarker(name string) string {
	lower := strings.ToLower(name)
	for _, tok := range []string{"2160p", "4k", "uhd", "1080p", "fhd", "720p", "576p", "480p", "hd", "sd"} {
		if containsToken(lower, tok) {
			return tok
		}
	}
	return ""
}

// containsToken matches tok in s on word boundaries so "hd" does not match
// inside "hdmi" or "fhd".
func containsToken(s, tok string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], tok)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(s[i-1])
		afterIdx := i + len(tok)
		after := afterIdx >= len(s) || !isAlnum(s[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(tok)
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func contentTypeFromURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".m3u8"):
		return "hls"
	case strings.HasSuffix(u, ".ts"):
		return "mpegts"
	case strings.HasSuffix(u, ".mpd"):
		return "dash"
	case strings.HasPrefix(u, "rtmp://"):
		return "rtmp"
	default:
		return ""
	}
}
