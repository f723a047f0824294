package normalize

import (
	"bytes"
	"compress/gzip"
	"testing"
	"unicode/utf8"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompress_gzip(t *testing.T) {
	want := []byte("#EXTM3U\n")
	got := Decompress("http://host/epg.xml.gz", gzipBytes(t, want))
	if !bytes.Equal(got, want) {
		t.Errorf("Decompress gz = %q; want %q", got, want)
	}
}

func TestDecompress_gzipQueryString(t *testing.T) {
	want := []byte("<tv/>")
	got := Decompress("http://host/epg.xml.gz?token=abc", gzipBytes(t, want))
	if !bytes.Equal(got, want) {
		t.Errorf("Decompress = %q; want %q", got, want)
	}
}

func TestDecompress_badGzipFallsBackToRaw(t *testing.T) {
	raw := []byte("not actually gzip")
	got := Decompress("http://host/epg.xml.gz", raw)
	if !bytes.Equal(got, raw) {
		t.Errorf("expected raw bytes back; got %q", got)
	}
}

func TestDecompress_uncompressedURLUntouched(t *testing.T) {
	raw := gzipBytes(t, []byte("data"))
	got := Decompress("http://host/epg.xml", raw)
	if !bytes.Equal(got, raw) {
		t.Error("non-.gz URL must pass bytes through unchanged")
	}
}

func TestDecodeText_utf8(t *testing.T) {
	in := "café 中文"
	if got := DecodeText([]byte(in)); got != in {
		t.Errorf("DecodeText = %q; want %q", got, in)
	}
}

func TestDecodeText_windows1252(t *testing.T) {
	// 0x93/0x94 are curly quotes in Windows-1252, invalid UTF-8.
	got := DecodeText([]byte{0x93, 'h', 'i', 0x94})
	if got != "“hi”" {
		t.Errorf("DecodeText = %q; want curly-quoted hi", got)
	}
}

func TestDecodeText_latin1(t *testing.T) {
	// 0x81 has no printable Windows-1252 mapping; whichever fallback
	// handles it must yield the C1 control U+0081, never an error.
	got := DecodeText([]byte{'a', 0x81, 'b'})
	if got != "a\u0081b" {
		t.Errorf("DecodeText = %q; want a\\u0081b", got)
	}
}

func TestDecodeText_isTotal(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0xff, 0xfe, 0xfd},
		{0x00, 0x80, 0x81, 0xc0},
		[]byte("plain ascii"),
		bytes.Repeat([]byte{0xe0}, 64),
	}
	for _, in := range inputs {
		got := DecodeText(in)
		if !utf8.ValidString(got) {
			t.Errorf("DecodeText(% x) produced invalid UTF-8", in)
		}
	}
}
