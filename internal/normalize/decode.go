package normalize

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"golang.org/x/text/encoding/charmap"
)

// Decompress inflates data when srcURL names a compressed payload (.gz or
// .br suffix, query string ignored). On any decompression failure the raw
// bytes are returned unchanged — some servers serve pre-inflated content
// under a .gz name.
func Decompress(srcURL string, data []byte) []byte {
	u := strings.ToLower(srcURL)
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".gz"):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return data
		}
		out, err := io.ReadAll(zr)
		if err != nil {
			return data
		}
		return out
	case strings.HasSuffix(u, ".br"):
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return data
		}
		return out
	default:
		return data
	}
}

// DecodeText converts arbitrary bytes to a string. The chain is UTF-8,
// Windows-1252 (rejected when it produces replacement runes from undefined
// bytes), Latin-1 (total — every byte maps), and finally a lossy UTF-8 pass.
// It never fails: any input yields some string.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	if s, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil && !bytes.ContainsRune(s, utf8.RuneError) {
		return string(s)
	}
	if s, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(s)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
