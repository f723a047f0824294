package export

import (
	"encoding/xml"
	"io"

	"github.com/snapetech/chancat/internal/catalog"
)

type tvRoot struct {
	XMLName    xml.Name      `xml:"tv"`
	Source     string        `xml:"source-info-name,attr,omitempty"`
	Channels   []tvChannel   `xml:"channel"`
	Programmes []tvProgramme `xml:"programme"`
}

type tvChannel struct {
	ID      string   `xml:"id,attr"`
	Display []string `xml:"display-name"`
	Icon    *tvIcon  `xml:"icon,omitempty"`
}

type tvIcon struct {
	Src string `xml:"src,attr"`
}

// Programme sub-elements are always written, empty or not: guide readers
// index children positionally and a missing desc or category trips them up.
type tvProgramme struct {
	Start    string `xml:"start,attr"`
	Stop     string `xml:"stop,attr"`
	Channel  string `xml:"channel,attr"`
	Title    string `xml:"title"`
	Desc     string `xml:"desc"`
	Category string `xml:"category"`
}

// WriteGuide writes guide to w as an XMLTV document. Every channel carries at
// least one display-name (falling back to its id) so downstream guide readers
// never see a nameless channel.
func WriteGuide(w io.Writer, guide *catalog.GuideData) error {
	tv := &tvRoot{Source: "chancat"}
	if guide != nil {
		for _, ch := range guide.Channels {
			if ch.ID == "" {
				continue
			}
			node := tvChannel{ID: ch.ID, Display: ch.DisplayNames}
			if len(node.Display) == 0 {
				node.Display = []string{ch.ID}
			}
			if ch.LogoURL != "" {
				node.Icon = &tvIcon{Src: ch.LogoURL}
			}
			tv.Channels = append(tv.Channels, node)
		}
		for _, ch := range tv.Channels {
			for _, p := range guide.Programs[ch.ID] {
				tv.Programmes = append(tv.Programmes, tvProgramme{
					Start:    p.Start,
					Stop:     p.Stop,
					Channel:  ch.ID,
					Title:    p.Title,
					Desc:     p.Description,
					Category: p.Category,
				})
			}
		}
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
