// Package api defines the wire types for the daemon's status HTTP API and
// the client the CLI uses to talk to it.
package api
