package testsupport

import (
	"context"
	"testing"

	"podigest/internal/config"
	"podigest/internal/episodes"
)

// MustOpenStore opens an episodes.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *episodes.Store {
	t.Helper()

	store, err := episodes.Open(cfg)
	if err != nil {
		t.Fatalf("episodes.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveEpisode inserts an episode with a podcast-scoped title and returns it.
func SaveEpisode(t testing.TB, store *episodes.Store, podcastID, title, audioURL string) *episodes.Episode {
	t.Helper()

	ctx := context.Background()
	inserted, err := store.Save(ctx, episodes.NewEpisode{
		PodcastID:   podcastID,
		PodcastName: podcastID + " show",
		Title:       title,
		Category:    "tech",
		AudioURL:    audioURL,
	})
	if err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	if !inserted {
		t.Fatalf("store.Save: %s/%s already present", podcastID, title)
	}
	list, err := store.List(ctx, episodes.ListOptions{})
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	for _, ep := range list {
		if ep.PodcastID == podcastID && ep.Title == title {
			return ep
		}
	}
	t.Fatalf("saved episode %s/%s not found", podcastID, title)
	return nil
}
