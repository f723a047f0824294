package normalize

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/snapetech/chancat/internal/catalog"
)

// ParseGuide reads an XMLTV document with a token loop (guide files run to
// hundreds of MB; never slurp them through xml.Unmarshal). Channel elements
// with an empty id are skipped; a malformed document returns a *ParseError
// so the caller can skip just this source.
func ParseGuide(r io.Reader) (*catalog.GuideData, error) {
	dec := xml.NewDecoder(r)
	type displayName struct {
		Text string `xml:",chardata"`
	}
	type icon struct {
		Src string `xml:"src,attr"`
	}
	type chNode struct {
		ID           string        `xml:"id,attr"`
		DisplayNames []displayName `xml:"display-name"`
		Icons        []icon        `xml:"icon"`
	}
	type progNode struct {
		Start      string        `xml:"start,attr"`
		Stop       string        `xml:"stop,attr"`
		Channel    string        `xml:"channel,attr"`
		Titles     []displayName `xml:"title"`
		Descs      []displayName `xml:"desc"`
		Categories []displayName `xml:"category"`
	}

	out := &catalog.GuideData{Programs: make(map[string][]catalog.Program)}
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Format: "xmltv", Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "tv":
			sawRoot = true
		case "channel":
			var node chNode
			if err := dec.DecodeElement(&node, &se); err != nil {
				return nil, &ParseError{Format: "xmltv", Err: err}
			}
			id := strings.TrimSpace(node.ID)
			if id == "" {
				continue
			}
			ch := catalog.GuideChannel{ID: id}
			for _, dn := range node.DisplayNames {
				if name := strings.TrimSpace(dn.Text); name != "" {
					ch.DisplayNames = append(ch.DisplayNames, name)
				}
			}
			if len(node.Icons) > 0 {
				ch.LogoURL = strings.TrimSpace(node.Icons[0].Src)
			}
			out.Channels = append(out.Channels, ch)
		case "programme":
			var node progNode
			if err := dec.DecodeElement(&node, &se); err != nil {
				return nil, &ParseError{Format: "xmltv", Err: err}
			}
			id := strings.TrimSpace(node.Channel)
			if id == "" {
				continue
			}
			p := catalog.Program{
				Start: strings.TrimSpace(node.Start),
				Stop:  strings.TrimSpace(node.Stop),
			}
			if len(node.Titles) > 0 {
				p.Title = strings.TrimSpace(node.Titles[0].Text)
			}
			if len(node.Descs) > 0 {
				p.Description = strings.TrimSpace(node.Descs[0].Text)
			}
			if len(node.Categories) > 0 {
				p.Category = strings.TrimSpace(node.Categories[0].Text)
			}
			out.Programs[id] = append(out.Programs[id], p)
		}
	}
	if !sawRoot {
		return nil, &ParseError{Format: "xmltv", Err: errors.New("root <tv> not found")}
	}
	return out, nil
}
