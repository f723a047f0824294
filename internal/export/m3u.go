// Package export renders the merged catalog back out as standard playlist
// and guide documents.
package export

import (
	"bufio"
	"io"
	"strings"

	"github.com/snapetech/chancat/internal/catalog"
)

// WritePlaylist writes channels to w as an extended M3U playlist. Attribute
// values and display names are sanitized so the output parses back cleanly:
// quotes are dropped from attribute values and commas in the display name
// become spaces.
func WritePlaylist(w io.Writer, channels []catalog.Channel) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("#EXTM3U\n"); err != nil {
		return err
	}
	for _, ch := range channels {
		if strings.TrimSpace(ch.URL) == "" {
			continue
		}
		name := strings.ReplaceAll(ch.Name, ",", " ")
		if name == "" {
			name = ch.URL
		}
		bw.WriteString("#EXTINF:-1")
		writeAttr(bw, "tvg-id", ch.GuideID)
		writeAttr(bw, "tvg-name", ch.GuideName)
		writeAttr(bw, "tvg-logo", ch.LogoURL)
		writeAttr(bw, "group-title", ch.Group)
		bw.WriteString("," + name + "\n")
		if _, err := bw.WriteString(ch.URL + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeAttr(bw *bufio.Writer, key, value string) {
	if value == "" {
		return
	}
	bw.WriteString(" " + key + `="` + sanitizeAttr(value) + `"`)
}

func sanitizeAttr(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	return strings.TrimSpace(s)
}
