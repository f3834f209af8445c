package feeds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Podcast is one catalog entry.
type Podcast struct {
	ID       string
	Name     string
	RSS      string
	Category string
}

type catalogEntry struct {
	Name     string `json:"name"`
	RSS      string `json:"rss"`
	Category string `json:"category"`
}

// LoadCatalog reads the podcast catalog at path.
func LoadCatalog(path string) ([]Podcast, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()
	return ParseCatalog(file)
}

// ParseCatalog decodes {category: {podcast_id: {name, rss, category}}}. The
// result is sorted by group then podcast id so polling order is stable.
// Entries without an RSS URL are dropped; a missing category falls back to
// the title-cased group name.
func ParseCatalog(r io.Reader) ([]Podcast, error) {
	var raw map[string]map[string]catalogEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	groups := make([]string, 0, len(raw))
	for group := range raw {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	caser := cases.Title(language.Und)
	var out []Podcast
	for _, group := range groups {
		ids := make([]string, 0, len(raw[group]))
		for id := range raw[group] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			entry := raw[group][id]
			rss := strings.TrimSpace(entry.RSS)
			if rss == "" {
				continue
			}
			category := strings.TrimSpace(entry.Category)
			if category == "" {
				category = caser.String(strings.ReplaceAll(group, "_", " "))
			}
			name := strings.TrimSpace(entry.Name)
			if name == "" {
				name = id
			}
			out = append(out, Podcast{ID: id, Name: name, RSS: rss, Category: category})
		}
	}
	return out, nil
}
