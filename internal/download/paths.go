package download

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxLabelRunes    = 60
	defaultExtension = ".mp3"
	fallbackLabel    = "episode"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".wav":  {},
	".flac": {},
}

// Path returns the deterministic destination for label under dir. The
// extension comes from the URL when it names a known audio type.
func Path(dir, label, rawURL string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("download directory is empty")
	}
	return filepath.Join(dir, SanitizeLabel(label)+extensionFor(rawURL)), nil
}

// SanitizeLabel normalizes label to NFC, replaces path-unsafe runes with
// underscores, collapses repeats, and truncates to a bounded rune count.
func SanitizeLabel(label string) string {
	normalized := norm.NFC.String(strings.TrimSpace(label))

	var b strings.Builder
	b.Grow(len(normalized))
	lastUnderscore := false
	runes := 0
	for _, r := range normalized {
		if runes >= maxLabelRunes {
			break
		}
		if !safeRune(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
		runes++
	}

	out := strings.Trim(b.String(), "._ -")
	if out == "" {
		return fallbackLabel
	}
	return out
}

func safeRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return true
	case r == '-', r == '.', r == ' ', r == '_':
		return true
	default:
		return false
	}
}

func extensionFor(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, ok := audioExtensions[ext]; ok {
		return ext
	}
	return defaultExtension
}
