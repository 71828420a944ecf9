// Package services defines shared utilities consumed by the pipeline runner
// and the external service integrations.
//
// Key responsibilities:
//   - Context helpers that stamp candidate IDs, step names, keywords, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (transient vs configuration vs timeout) consistent.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
