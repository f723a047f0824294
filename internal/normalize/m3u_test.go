package normalize

import (
	"strings"
	"testing"
)

func TestParsePlaylist_empty(t *testing.T) {
	chans, err := ParsePlaylistBytes([]byte(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(chans) != 0 {
		t.Errorf("expected empty; got %d channels", len(chans))
	}
}

func TestParsePlaylist_attributes(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-id="cnn.us" tvg-name="CNN" tvg-logo="http://logo/cnn.png" group-title="News",CNN International
http://example.com/cnn
`
	chans, err := ParsePlaylistBytes([]byte(m3u))
	if err != nil {
		t.Fatal(err)
	}
	if len(chans) != 1 {
		t.Fatalf("expected 1 channel; got %d", len(chans))
	}
	c := chans[0]
	if c.URL != "http://example.com/cnn" || c.Name != "CNN International" {
		t.Errorf("channel = %+v", c)
	}
	if c.GuideID != "cnn.us" || c.GuideName != "CNN" || c.Group != "News" || c.LogoURL != "http://logo/cnn.png" {
		t.Errorf("attributes = %+v", c)
	}
}

func TestParsePlaylist_orphanEXTINFDropped(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1,Orphan Without URL
#EXTINF:-1,Channel A
http://example.com/a
#EXTINF:-1,Trailing Orphan
`
	chans, err := ParsePlaylistBytes([]byte(m3u))
	if err != nil {
		t.Fatal(err)
	}
	if len(chans) != 1 {
		t.Fatalf("expected 1 channel; got %d", len(chans))
	}
	if chans[0].Name != "Channel A" {
		t.Errorf("chans[0].Name = %q", chans[0].Name)
	}
}

func TestParsePlaylist_consecutivePairsAndBlankLines(t *testing.T) {
	m3u := `#EXTM3U

#EXTINF:-1,Channel A
http://example.com/a
#EXTINF:-1,Channel B
rtmp://example.com/b

#EXTINF:-1,Channel C
http://example.com/c
`
	chans, err := ParsePlaylist(strings.NewReader(m3u))
	if err != nil {
		t.Fatal(err)
	}
	wantNames := []string{"Channel A", "Channel B", "Channel C"}
	wantURLs := []string{"http://example.com/a", "rtmp://example.com/b", "http://example.com/c"}
	if len(chans) != 3 {
		t.Fatalf("expected 3 channels; got %d", len(chans))
	}
	for i := range chans {
		if chans[i].Name != wantNames[i] || chans[i].URL != wantURLs[i] {
			t.Errorf("chans[%d] = %q / %q; want %q / %q", i, chans[i].Name, chans[i].URL, wantNames[i], wantURLs[i])
		}
	}
}

func TestParsePlaylist_singleQuotedAttrs(t *testing.T) {
	m3u := "#EXTM3U\n#EXTINF:-1 tvg-id='x.y' group-title='Sports',ESPN\nhttp://example.com/espn\n"
	chans, err := ParsePlaylistBytes([]byte(m3u))
	if err != nil {
		t.Fatal(err)
	}
	if len(chans) != 1 || chans[0].GuideID != "x.y" || chans[0].Group != "Sports" {
		t.Errorf("chans = %+v", chans)
	}
}

func TestResolutionMarker(t *testing.T) {
	cases := map[string]string{
		"BBC One FHD":    "fhd",
		"ESPN 720p":      "720p",
		"Sky Sports 4K":  "4k",
		"CNN HD":         "hd",
		"Discovery":      "",
		"HDMI Showcase":  "",
		"Cinema 2160p":   "2160p",
		"Retro TV 480p":  "480p",
	}
	for in, want := range cases {
		if got := resolutionMarker(in); got != want {
			t.Errorf("resolutionMarker(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestContentTypeFromURL(t *testing.T) {
	cases := map[string]string{
		"http://h/stream.m3u8":       "hls",
		"http://h/stream.m3u8?tok=1": "hls",
		"http://h/stream.ts":         "mpegts",
		"rtmp://h/live":              "rtmp",
		"http://h/stream":            "",
	}
	for in, want := range cases {
		if got := contentTypeFromURL(in); got != want {
			t.Errorf("contentTypeFromURL(%q) = %q; want %q", in, got, want)
		}
	}
}
