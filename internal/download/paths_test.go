package download_test

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"podigest/internal/download"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12-Simple title", "12-Simple title"},
		{"3-What/is:this?", "3-What_is_this"},
		{"4-a///b", "4-a_b"},
		{"  ../etc/passwd  ", "etc_passwd"},
		{"5-Подкаст о Go", "5-Подкаст о Go"},
		{"", "episode"},
		{"///", "episode"},
	}
	for _, tc := range tests {
		if got := download.SanitizeLabel(tc.in); got != tc.want {
			t.Fatalf("SanitizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeLabelNormalizesAndTruncates(t *testing.T) {
	decomposed := "Cafe\u0301"
	if got := download.SanitizeLabel(decomposed); got != "Caf\u00e9" {
		t.Fatalf("expected NFC form, got %q", got)
	}
	long := strings.Repeat("ж", 200)
	if got := download.SanitizeLabel(long); utf8.RuneCountInString(got) != 60 {
		t.Fatalf("expected 60 runes, got %d", utf8.RuneCountInString(got))
	}
}

func TestPathExtension(t *testing.T) {
	tests := map[string]string{
		"https://cdn.test/ep.mp3":           ".mp3",
		"https://cdn.test/ep.M4A?token=abc": ".m4a",
		"https://cdn.test/ep.ogg#t=10":      ".ogg",
		"https://cdn.test/download":         ".mp3",
		"https://cdn.test/page.html":        ".mp3",
	}
	for url, want := range tests {
		got, err := download.Path("/data", "1-x", url)
		if err != nil {
			t.Fatalf("Path(%q) returned error: %v", url, err)
		}
		if filepath.Ext(got) != want {
			t.Fatalf("Path(%q) = %q, want extension %s", url, got, want)
		}
	}
}

func TestPathIsDeterministic(t *testing.T) {
	a, _ := download.Path("/data", "9-Episode", "https://cdn.test/a.mp3")
	b, _ := download.Path("/data", "9-Episode", "https://cdn.test/a.mp3")
	if a != b || a != filepath.Join("/data", "9-Episode.mp3") {
		t.Fatalf("expected deterministic path, got %q and %q", a, b)
	}
}
