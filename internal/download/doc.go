// Package download drives repeated fetch attempts until an episode's audio is on disk.
//
// Orchestrator runs two independent loops: an inner loop that rotates relays
// after transport failures (timeouts, refused connections, broken relays) and
// an outer loop of full retry cycles separated by a growing pause. HTTP status
// failures and unexpected errors abort both loops at once because another
// relay cannot fix them. Output paths are deterministic and derived from a
// sanitized label.
package download
