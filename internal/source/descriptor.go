package source

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies what a source's documents parse into.
type Kind string

const (
	KindPlaylist Kind = "playlist"
	KindGuide    Kind = "guide"
)

// Descriptor configures one remote source. URLs is a fallback chain tried in
// order; for directory sources the single URL is a listing page from which
// candidate documents are discovered and ranked by size.
type Descriptor struct {
	Name         string   `yaml:"name"`
	Kind         Kind     `yaml:"kind"`
	URLs         []string `yaml:"urls"`
	Priority     int      `yaml:"priority"`
	IsDirectory  bool     `yaml:"directory"`
	FilePatterns []string `yaml:"file_patterns"`
}

type sourcesFile struct {
	Sources []Descriptor `yaml:"sources"`
}

// LoadDescriptors reads source descriptors from a YAML file and returns them
// sorted by priority (lower first, stable for equal priorities).
func LoadDescriptors(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources file: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	if err := validate(f.Sources); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	out := make([]Descriptor, len(f.Sources))
	copy(out, f.Sources)
	sortByPriority(out)
	return out, nil
}

func validate(sources []Descriptor) error {
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("source %d: empty name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("source %q: duplicate name", name)
		}
		seen[name] = struct{}{}
		if len(s.URLs) == 0 {
			return fmt.Errorf("source %q: no urls", name)
		}
		if s.Kind != KindPlaylist && s.Kind != KindGuide {
			return fmt.Errorf("source %q: unknown kind %q", name, s.Kind)
		}
		if s.IsDirectory && len(s.FilePatterns) == 0 {
			return fmt.Errorf("source %q: directory source needs file_patterns", name)
		}
	}
	return nil
}

func sortByPriority(sources []Descriptor) {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority < sources[j].Priority
	})
}

// DefaultDescriptors is the built-in source list used when no sources file is
// configured.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:     "iptv-org",
			Kind:     KindPlaylist,
			Priority: 1,
			URLs: []string{
				"https://iptv-org.github.io/iptv/index.m3u",
			},
		},
		{
			Name:     "free-tv",
			Kind:     KindPlaylist,
			Priority: 2,
			URLs: []string{
				"https://raw.githubusercontent.com/Free-TV/IPTV/master/playlist.m3u8",
			},
		},
		{
			Name:     "epgshare",
			Kind:     KindGuide,
			Priority: 1,
			URLs: []string{
				"https://epgshare01.online/epgshare01/",
			},
			IsDirectory:  true,
			FilePatterns: []string{"*.xml", "*.xml.gz"},
		},
		{
			Name:     "iptv-org-guide",
			Kind:     KindGuide,
			Priority: 2,
			URLs: []string{
				"https://iptv-org.github.io/epg/guides/us.xml",
				"https://iptv-org.github.io/epg/guides/uk.xml",
			},
		},
	}
}
