// Package validation moves downloaded clips through the shared pool's
// raw, transform, validating, and approved directories, recording every
// verdict in the asset ledger. Directory transitions are single renames so
// a crash at any point leaves each clip in exactly one place, and the
// sweep reclaims whatever a dead job left behind.
package validation
