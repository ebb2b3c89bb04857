// Package main hosts the clipper CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon's API: job submission, status inspection,
// cancellation, retries, health diagnostics, and configuration scaffolding.
// It centralizes configuration resolution and API client construction so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
