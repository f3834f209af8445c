// Package feeds discovers new podcast episodes.
//
// A catalog file groups podcasts by category. Discoverer polls each podcast's
// RSS feed in turn, pausing between feeds so hosts are not hammered, and
// saves the newest entries that carry an audio URL into the episode store.
// Entries already stored for the same podcast and title are skipped by the
// store itself. A broken feed is logged and skipped; it never aborts the pass.
package feeds
