package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/snapetech/chancat/internal/catalog"
	"github.com/snapetech/chancat/internal/normalize"
)

func TestWritePlaylistRoundTrip(t *testing.T) {
	in := []catalog.Channel{
		{
			URL: "http://x/cnn.m3u8", Name: "CNN International", Group: "News",
			GuideID: "cnn.us", GuideName: "CNN", LogoURL: "http://l/cnn.png",
		},
		{URL: "http://x/bare.ts"},
		{URL: "", Name: "dropped"},
	}
	var buf bytes.Buffer
	if err := WritePlaylist(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("missing header:\n%s", out)
	}

	parsed, err := normalize.ParsePlaylist(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 channels back; got %d", len(parsed))
	}
	cnn := parsed[0]
	if cnn.URL != "http://x/cnn.m3u8" || cnn.Name != "CNN International" ||
		cnn.Group != "News" || cnn.GuideID != "cnn.us" || cnn.GuideName != "CNN" ||
		cnn.LogoURL != "http://l/cnn.png" {
		t.Errorf("round-trip mismatch: %+v", cnn)
	}
	// Bare channel falls back to its URL as display name.
	if parsed[1].Name != "http://x/bare.ts" {
		t.Errorf("bare name = %q", parsed[1].Name)
	}
}

func TestWritePlaylistSanitizesName(t *testing.T) {
	var buf bytes.Buffer
	err := WritePlaylist(&buf, []catalog.Channel{
		{URL: "http://x/a", Name: `Sky "News", Intl`, Group: `G"1`},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := normalize.ParsePlaylist(strings.NewReader(buf.String()))
	if err != nil || len(parsed) != 1 {
		t.Fatalf("parse back: %v (%d)", err, len(parsed))
	}
	if strings.Contains(parsed[0].Name, ",") {
		t.Errorf("comma survived in name: %q", parsed[0].Name)
	}
	if strings.Contains(parsed[0].Group, `"`) {
		t.Errorf("quote survived in group: %q", parsed[0].Group)
	}
}

func TestWriteGuideRoundTrip(t *testing.T) {
	in := &catalog.GuideData{
		Channels: []catalog.GuideChannel{
			{ID: "cnn.us", DisplayNames: []string{"CNN", "CNN International"}, LogoURL: "http://l/cnn.png"},
			{ID: "bare.id"},
			{ID: ""},
		},
		Programs: map[string][]catalog.Program{
			"cnn.us": {
				{Start: "20260827060000", Stop: "20260827070000", Title: "Morning News", Description: "Headlines", Category: "News"},
			},
		},
	}
	var buf bytes.Buffer
	if err := WriteGuide(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := normalize.ParseGuide(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if len(parsed.Channels) != 2 {
		t.Fatalf("expected 2 channels back; got %d", len(parsed.Channels))
	}
	if !parsed.HasChannel("cnn.us") || !parsed.HasChannel("bare.id") {
		t.Errorf("channels = %+v", parsed.Channels)
	}
	progs := parsed.Programs["cnn.us"]
	if len(progs) != 1 {
		t.Fatalf("programmes = %+v", parsed.Programs)
	}
	p := progs[0]
	if p.Title != "Morning News" || p.Description != "Headlines" || p.Category != "News" ||
		p.Start != "20260827060000" || p.Stop != "20260827070000" {
		t.Errorf("programme round-trip mismatch: %+v", p)
	}
}

func TestWriteGuideEmptySubElementsKept(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGuide(&buf, &catalog.GuideData{
		Channels: []catalog.GuideChannel{{ID: "cnn.us"}},
		Programs: map[string][]catalog.Program{
			"cnn.us": {{Start: "20260827060000", Stop: "20260827070000", Title: "News"}},
		},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	// A programme with no description or category still carries both
	// elements, empty.
	for _, el := range []string{"<desc>", "<category>"} {
		if !strings.Contains(out, el) {
			t.Errorf("missing %s element:\n%s", el, out)
		}
	}
}

func TestWriteGuideFallbackDisplayName(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGuide(&buf, &catalog.GuideData{
		Channels: []catalog.GuideChannel{{ID: "lonely.id"}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "<display-name>lonely.id</display-name>") {
		t.Errorf("no fallback display-name:\n%s", buf.String())
	}
}

func TestWriteGuideNilGuide(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGuide(&buf, nil); err != nil {
		t.Fatalf("write nil: %v", err)
	}
	if !strings.Contains(buf.String(), "<tv") {
		t.Errorf("no root element:\n%s", buf.String())
	}
}
