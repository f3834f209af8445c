// Package pipeline assembles podigest's long-lived components from
// configuration: the episode store, the optional relay pool, the download
// orchestrator, the episode lifecycle runner and the feed discoverer. Both
// the daemon and the one-shot CLI commands build on it.
package pipeline
