package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// id3Header is a minimal ID3v2.4 tag header with an empty tag body.
var id3Header = []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}

// FakeAudio returns an ID3-tagged payload of roughly size bytes. It is not
// decodable audio, only something that looks like an MP3 to a download check.
func FakeAudio(size int) []byte {
	if size < len(id3Header) {
		size = len(id3Header)
	}
	return append(append([]byte(nil), id3Header...), bytes.Repeat([]byte{0xFF}, size-len(id3Header))...)
}

// WriteAudio stores FakeAudio(size) at path, creating parent directories.
func WriteAudio(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, FakeAudio(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
