// Package scheduler runs the podigest daemon.
//
// The daemon holds a file lock so only one instance runs per data directory,
// optionally warms the relay pool at startup, and triggers the feed fetch
// and episode processing jobs on their cron schedules. Each job runs at most
// once at a time; a trigger that fires while the previous run is still busy
// is skipped. Every run gets its own run id for log correlation.
package scheduler
