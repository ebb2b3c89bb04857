// Package services defines shared utilities consumed by the workflow stage
// handlers and external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - The sentinel error taxonomy plus the Wrap helper that translate
//     failures into consistent retry/fail decisions in the workflow manager.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
