package normalize

import (
	"errors"
	"strings"
	"testing"
)

const sampleGuide = `<?xml version="1.0" encoding="UTF-8"?>
<tv source-info-name="test">
  <channel id="cnn.us">
    <display-name>CNN</display-name>
    <display-name>CNN International</display-name>
    <icon src="http://logo/cnn.png"/>
  </channel>
  <channel id="">
    <display-name>No ID</display-name>
  </channel>
  <programme start="20260827060000 +0000" stop="20260827070000 +0000" channel="cnn.us">
    <title>Morning News</title>
    <desc>Headlines.</desc>
    <category>News</category>
  </programme>
  <programme start="20260827070000 +0000" stop="20260827080000 +0000" channel="cnn.us">
    <title>World Report</title>
  </programme>
</tv>
`

func TestParseGuide(t *testing.T) {
	g, err := ParseGuide(strings.NewReader(sampleGuide))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Channels) != 1 {
		t.Fatalf("expected 1 channel (empty id skipped); got %d", len(g.Channels))
	}
	ch := g.Channels[0]
	if ch.ID != "cnn.us" || len(ch.DisplayNames) != 2 || ch.LogoURL != "http://logo/cnn.png" {
		t.Errorf("channel = %+v", ch)
	}
	progs := g.Programs["cnn.us"]
	if len(progs) != 2 {
		t.Fatalf("expected 2 programmes; got %d", len(progs))
	}
	if progs[0].Title != "Morning News" || progs[0].Description != "Headlines." || progs[0].Category != "News" {
		t.Errorf("progs[0] = %+v", progs[0])
	}
	if progs[1].Title != "World Report" || progs[1].Description != "" {
		t.Errorf("progs[1] = %+v", progs[1])
	}
	if !g.HasChannel("cnn.us") {
		t.Error("HasChannel(cnn.us) = false")
	}
}

func TestParseGuide_malformed(t *testing.T) {
	_, err := ParseGuide(strings.NewReader("<tv><channel id=\"x\"><display-name>Broken</tv>"))
	if err == nil {
		t.Fatal("expected error for malformed document")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected *ParseError; got %T", err)
	}
}

func TestParseGuide_missingRoot(t *testing.T) {
	_, err := ParseGuide(strings.NewReader("<html><body>not a guide</body></html>"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError for missing <tv> root; got %v", err)
	}
}

func TestParseGuide_programmesOnlyPresenceMode(t *testing.T) {
	doc := `<tv><channel id="a.tv"><display-name>A</display-name></channel></tv>`
	g, err := ParseGuide(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Programs["a.tv"]) != 0 {
		t.Errorf("expected no programmes; got %d", len(g.Programs["a.tv"]))
	}
	if !g.HasChannel("a.tv") {
		t.Error("presence flag must hold with zero programmes")
	}
}
