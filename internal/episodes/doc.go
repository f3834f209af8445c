// Package episodes persists discovered podcast episodes in SQLite and exposes
// the selection and bookkeeping the processing lifecycle relies on.
//
// An episode stays eligible until it is published. Claim picks one eligible
// row at random and stamps it with a lease in a single statement, so two
// overlapping runs never process the same episode while the lease holds. A
// crashed run's claim expires when the lease runs out. Failures increment
// the attempt counter and record the reason; an optional cap excludes rows
// that keep failing until an operator resets them.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt a new schema.
package episodes
