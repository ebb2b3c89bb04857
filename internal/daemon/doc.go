// Package daemon wires the workflow manager, orphan recovery scanner,
// pool sweeper, and status HTTP API into a single-instance background
// process guarded by a file lock.
package daemon
