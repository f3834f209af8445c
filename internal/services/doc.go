// Package services defines shared utilities consumed by the episode lifecycle
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp episode IDs, stage names, and scheduler run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so collaborators report
//     failures with a consistent shape.
//
// Use these helpers when wiring new collaborators so operational behaviour
// stays uniform across the pipeline.
package services
